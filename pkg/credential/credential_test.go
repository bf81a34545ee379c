package credential

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-keycloak/internal/testutil"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

// ===========================================================================
// Encode
// ===========================================================================

func TestEncode_Algorithms(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		in             Hashed
		credentialData string
		secretData     string
	}{
		{
			name:           "bcrypt",
			in:             NewHashed(Bcrypt, "hash", 10, "salt"),
			credentialData: `{"algorithm":"bcrypt","hashIterations":10}`,
			secretData:     `{"value":"hash","salt":"salt"}`,
		},
		{
			name:           "argon",
			in:             NewHashed(Argon, "aGFzaA", 3, "c2FsdA"),
			credentialData: `{"algorithm":"argon","hashIterations":3}`,
			secretData:     `{"value":"aGFzaA","salt":"c2FsdA"}`,
		},
		{
			name:           "md5 without iterations or salt",
			in:             Hashed{Value: "5f4dcc3b5aa765d61d8327deb882cf99", Algorithm: MD5},
			credentialData: `{"algorithm":"md5","hashIterations":1}`,
			secretData:     `{"value":"5f4dcc3b5aa765d61d8327deb882cf99","salt":""}`,
		},
		{
			name:           "md5 ignores supplied iterations and salt",
			in:             NewHashed(MD5, "abc", 27500, "pepper"),
			credentialData: `{"algorithm":"md5","hashIterations":1}`,
			secretData:     `{"value":"abc","salt":""}`,
		},
		{
			name:           "bcrypt with zero iterations and empty salt",
			in:             NewHashed(Bcrypt, "hash", 0, ""),
			credentialData: `{"algorithm":"bcrypt","hashIterations":0}`,
			secretData:     `{"value":"hash","salt":""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, err := Encode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.credentialData, enc.CredentialData)
			assert.Equal(t, tt.secretData, enc.SecretData)
		})
	}
}

func TestEncode_EscapesValue(t *testing.T) {
	t.Parallel()
	enc, err := Encode(NewHashed(Bcrypt, `a"b\c`, 12, "s"))
	require.NoError(t, err)

	var sd map[string]string
	require.NoError(t, json.Unmarshal([]byte(enc.SecretData), &sd))
	assert.Equal(t, `a"b\c`, sd["value"])
}

func TestEncode_MissingMaterial(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    Hashed
		field string
	}{
		{"bcrypt without iterations", Hashed{Value: "h", Algorithm: Bcrypt, Salt: strPtr("s")}, "iterations"},
		{"bcrypt without salt", Hashed{Value: "h", Algorithm: Bcrypt, Iterations: intPtr(10)}, "salt"},
		{"bcrypt without value", NewHashed(Bcrypt, "", 10, "s"), "value"},
		{"argon without salt", Hashed{Value: "h", Algorithm: Argon, Iterations: intPtr(3)}, "salt"},
		{"argon without anything", Hashed{Algorithm: Argon}, "value"},
		{"md5 without value", Hashed{Algorithm: MD5}, "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Encode(tt.in)
			testutil.RequireErrorCode(t, err, sserr.CodeMissingHashMaterial)
			assert.True(t, sserr.IsCredential(err))

			e, _ := sserr.AsError(err)
			assert.Equal(t, tt.field, e.Field())
			assert.Equal(t, string(tt.in.Algorithm), e.Details["algorithm"])
		})
	}
}

func TestEncode_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()
	_, err := Encode(NewHashed("sha512", "h", 1, "s"))
	testutil.RequireErrorCode(t, err, sserr.CodeUnsupportedAlgorithm)
	assert.Contains(t, err.Error(), "sha512")
}

// ===========================================================================
// Credentials
// ===========================================================================

func TestCredentials_Hashed(t *testing.T) {
	t.Parallel()
	creds, err := Credentials(NewHashed(Bcrypt, "hash", 10, "salt"))
	require.NoError(t, err)
	require.Len(t, creds, 1)

	assert.Equal(t, Credential{
		Type:           TypePassword,
		Temporary:      false,
		CredentialData: `{"algorithm":"bcrypt","hashIterations":10}`,
		SecretData:     `{"value":"hash","salt":"salt"}`,
	}, creds[0])

	b, err := json.Marshal(creds[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "password",
		"temporary": false,
		"credentialData": "{\"algorithm\":\"bcrypt\",\"hashIterations\":10}",
		"secretData": "{\"value\":\"hash\",\"salt\":\"salt\"}"
	}`, string(b))
}

func TestCredentials_Plain(t *testing.T) {
	t.Parallel()
	creds, err := Credentials(Plain("hunter2"))
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentials_Nil(t *testing.T) {
	t.Parallel()
	_, err := Credentials(nil)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
}

func TestCredentials_EmptyPlain(t *testing.T) {
	t.Parallel()
	_, err := Credentials(Plain(""))
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
	e, _ := sserr.AsError(err)
	assert.Equal(t, "password", e.Field())
}

func TestCredentials_PropagatesEncodeError(t *testing.T) {
	t.Parallel()
	_, err := Credentials(Hashed{Value: "h", Algorithm: Bcrypt})
	testutil.RequireErrorCode(t, err, sserr.CodeMissingHashMaterial)
}

func TestPlain_StringRedacts(t *testing.T) {
	t.Parallel()
	p := Plain("hunter2")
	assert.Equal(t, "[REDACTED]", p.String())
}
