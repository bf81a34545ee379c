// Package credential encodes locally held passwords into the credential
// representation Keycloak accepts when a user is provisioned.
//
// A [Password] is either [Plain] (sent to the provider through a separate
// password reset after the user exists) or [Hashed] (encoded with [Encode]
// and attached to the user creation request). The two paths are exclusive
// by construction: Password is a sealed interface with exactly those two
// implementations.
package credential

import (
	"encoding/json"
	"fmt"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// Algorithm names a password hash algorithm known to the provider.
type Algorithm string

// Supported algorithms.
const (
	Bcrypt Algorithm = "bcrypt"
	Argon  Algorithm = "argon"
	MD5    Algorithm = "md5"
)

// TypePassword is the provider credential type for passwords.
const TypePassword = "password"

// Password is a sealed sum type implemented by [Plain] and [Hashed].
type Password interface {
	isPassword()
}

// Plain is a cleartext password.
type Plain string

func (Plain) isPassword() {}

// String redacts the password.
func (Plain) String() string { return "[REDACTED]" }

// Hashed is a password hashed by the local system. Iterations and Salt are
// optional pointers so that "absent" and "zero" stay distinguishable.
type Hashed struct {
	Value      string
	Algorithm  Algorithm
	Iterations *int
	Salt       *string
}

func (Hashed) isPassword() {}

// NewHashed builds a Hashed with both iterations and salt present.
func NewHashed(alg Algorithm, value string, iterations int, salt string) Hashed {
	return Hashed{Value: value, Algorithm: alg, Iterations: &iterations, Salt: &salt}
}

// Encoding is the provider wire form of a hashed password. Both fields hold
// JSON documents serialized as strings.
type Encoding struct {
	CredentialData string
	SecretData     string
}

type credentialData struct {
	Algorithm      Algorithm `json:"algorithm"`
	HashIterations int       `json:"hashIterations"`
}

type secretData struct {
	Value string `json:"value"`
	Salt  string `json:"salt"`
}

// Encode maps a hashed password to its provider encoding:
//
//	bcrypt, argon: credentialData {algorithm, hashIterations}, secretData {value, salt}
//	md5:           credentialData {algorithm, hashIterations: 1}, secretData {value, salt: ""}
//
// bcrypt and argon require a non-empty value plus iterations and salt;
// md5 requires only the value. Missing input fails with
// [sserr.CodeMissingHashMaterial]; any other algorithm fails with
// [sserr.CodeUnsupportedAlgorithm].
func Encode(h Hashed) (Encoding, error) {
	switch h.Algorithm {
	case Bcrypt, Argon:
		if err := h.require(h.Value != "", "value"); err != nil {
			return Encoding{}, err
		}
		if err := h.require(h.Iterations != nil, "iterations"); err != nil {
			return Encoding{}, err
		}
		if err := h.require(h.Salt != nil, "salt"); err != nil {
			return Encoding{}, err
		}
		return encode(h.Algorithm, *h.Iterations, h.Value, *h.Salt)
	case MD5:
		if err := h.require(h.Value != "", "value"); err != nil {
			return Encoding{}, err
		}
		return encode(h.Algorithm, 1, h.Value, "")
	default:
		return Encoding{}, sserr.Newf(sserr.CodeUnsupportedAlgorithm,
			"credential: unsupported hash algorithm %q", h.Algorithm).
			WithDetail("algorithm", string(h.Algorithm))
	}
}

func (h Hashed) require(present bool, field string) error {
	if present {
		return nil
	}
	return sserr.Newf(sserr.CodeMissingHashMaterial,
		"credential: %s hash requires %s", h.Algorithm, field).
		WithDetails(map[string]any{
			"algorithm":       string(h.Algorithm),
			sserr.DetailField: field,
		})
}

func encode(alg Algorithm, iterations int, value, salt string) (Encoding, error) {
	cd, err := json.Marshal(credentialData{Algorithm: alg, HashIterations: iterations})
	if err != nil {
		return Encoding{}, fmt.Errorf("credential: marshal credential data: %w", err)
	}
	sd, err := json.Marshal(secretData{Value: value, Salt: salt})
	if err != nil {
		return Encoding{}, fmt.Errorf("credential: marshal secret data: %w", err)
	}
	return Encoding{CredentialData: string(cd), SecretData: string(sd)}, nil
}

// Credential is one entry of a user representation's "credentials" list.
type Credential struct {
	Type           string `json:"type"`
	Temporary      bool   `json:"temporary"`
	CredentialData string `json:"credentialData"`
	SecretData     string `json:"secretData"`
}

// Credentials returns the credentials to attach to a user creation request.
// A hashed password yields one non-temporary password credential; a plain
// password yields none, because it is applied by a later password reset.
// A nil or empty plain password fails with [sserr.CodeValidationRequired].
func Credentials(p Password) ([]Credential, error) {
	switch p := p.(type) {
	case Plain:
		if p == "" {
			return nil, sserr.InvalidField(sserr.CodeValidationRequired, "password", "is required")
		}
		return nil, nil
	case Hashed:
		enc, err := Encode(p)
		if err != nil {
			return nil, err
		}
		return []Credential{{
			Type:           TypePassword,
			Temporary:      false,
			CredentialData: enc.CredentialData,
			SecretData:     enc.SecretData,
		}}, nil
	default:
		return nil, sserr.InvalidField(sserr.CodeValidationRequired, "password", "is required")
	}
}
