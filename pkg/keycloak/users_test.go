package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-keycloak/internal/testutil"
	"github.com/StricklySoft/stricklysoft-keycloak/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/cache"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/credential"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// ===========================================================================
// Test Helpers
// ===========================================================================

const usersPath = "/realms/" + fixtures.Realm + "/users"

var userPath = usersPath + "/" + fixtures.UserID

func testProfile() CreateUserProfile {
	return CreateUserProfile{
		Username:      fixtures.Username,
		Email:         fixtures.UserEmail,
		EmailVerified: true,
		Enabled:       true,
		FirstName:     "Jane",
		LastName:      "Doe",
		Realm:         fixtures.Realm,
	}
}

func usersBody(t *testing.T, users ...map[string]any) string {
	t.Helper()
	out, err := json.Marshal(users)
	require.NoError(t, err)
	return string(out)
}

// lastRequest returns the last recorded request for method and path.
func lastRequest(t *testing.T, rec *testutil.RecordingHandler, method, path string) testutil.RecordedRequest {
	t.Helper()
	reqs := rec.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i]
		}
	}
	t.Fatalf("no %s %s request recorded", method, path)
	return testutil.RecordedRequest{}
}

// ===========================================================================
// CreateUser
// ===========================================================================

func TestCreateUser_Plain(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("POST "+usersPath, respond(http.StatusCreated, ""))
	c, rec := newTestClient(t, mux, nil)

	err := c.CreateUser(context.Background(), CreateUserRequest{Profile: testProfile()})
	require.NoError(t, err)

	req := lastRequest(t, rec, http.MethodPost, usersPath)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{
		"username":"jane.doe","email":"jane.doe@example.com","emailVerified":true,
		"enabled":true,"firstName":"Jane","lastName":"Doe"
	}`, req.Body)
}

func TestCreateUser_HashedCredentials(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("POST "+usersPath, respond(http.StatusCreated, ""))
	c, rec := newTestClient(t, mux, nil)

	creds, err := credential.Credentials(credential.NewHashed(credential.Bcrypt, "hash", 10, "salt"))
	require.NoError(t, err)
	err = c.CreateUser(context.Background(), CreateUserRequest{Profile: testProfile(), Credentials: creds})
	require.NoError(t, err)

	var body struct {
		Username    string `json:"username"`
		Credentials []struct {
			Type           string `json:"type"`
			Temporary      bool   `json:"temporary"`
			CredentialData string `json:"credentialData"`
			SecretData     string `json:"secretData"`
		} `json:"credentials"`
	}
	require.NoError(t, json.Unmarshal([]byte(lastRequest(t, rec, http.MethodPost, usersPath).Body), &body))
	assert.Equal(t, fixtures.Username, body.Username)
	require.Len(t, body.Credentials, 1)
	assert.Equal(t, "password", body.Credentials[0].Type)
	assert.False(t, body.Credentials[0].Temporary)
	assert.JSONEq(t, `{"algorithm":"bcrypt","hashIterations":10}`, body.Credentials[0].CredentialData)
	assert.JSONEq(t, `{"value":"hash","salt":"salt"}`, body.Credentials[0].SecretData)
}

func TestCreateUser_Conflict(t *testing.T) {
	t.Parallel()
	const conflict = `{"errorMessage":"User exists with same username"}`
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("POST "+usersPath, respond(http.StatusConflict, conflict))
	c, _ := newTestClient(t, mux, nil)

	err := c.CreateUser(context.Background(), CreateUserRequest{Profile: testProfile()})
	testutil.RequireErrorCode(t, err, sserr.CodeUserCreation)
	e, _ := sserr.AsError(err)
	assert.Equal(t, http.StatusConflict, e.Details[sserr.DetailStatus])
	assert.Equal(t, conflict, e.Details[sserr.DetailBody])
}

func TestCreateUser_RequiresCreatedStatus(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("POST "+usersPath, respond(http.StatusOK, "{}"))
	c, _ := newTestClient(t, mux, nil)

	err := c.CreateUser(context.Background(), CreateUserRequest{Profile: testProfile()})
	testutil.RequireErrorCode(t, err, sserr.CodeUserCreation)
}

func TestCreateUser_InvalidProfileSkipsNetwork(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	c, rec := newTestClient(t, mux, nil)
	p := testProfile()
	p.Email = "not-an-email"

	err := c.CreateUser(context.Background(), CreateUserRequest{Profile: p})
	testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)
	assert.Empty(t, rec.Requests())
}

// ===========================================================================
// Users
// ===========================================================================

func TestUsers_Search(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("GET "+usersPath, respond(http.StatusOK, usersBody(t,
		fixtures.UserJSON(t, map[string]any{"realmRoles": []string{"user", "admin", "user"}}))))
	c, rec := newTestClient(t, mux, nil)

	email := fixtures.UserEmail
	req := NewSearchUsersRequest(fixtures.Realm)
	req.Email = &email
	req.Exact = true

	users, err := c.Users(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, uuid.MustParse(fixtures.UserID), users[0].ID)
	assert.Equal(t, []string{"user", "admin"}, users[0].Roles)
	assert.Equal(t, fixtures.IssuedAt.UTC(), users[0].CreatedAt)

	q, err := url.ParseQuery(lastRequest(t, rec, http.MethodGet, usersPath).Query)
	require.NoError(t, err)
	assert.Equal(t, fixtures.UserEmail, q.Get("email"))
	assert.Equal(t, "true", q.Get("exact"))
	assert.Equal(t, "0", q.Get("first"))
	assert.Equal(t, "20", q.Get("max"))
	assert.False(t, q.Has("username"))
}

func TestUsers_InvalidElement(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("GET "+usersPath, respond(http.StatusOK, usersBody(t,
		fixtures.UserJSON(t, nil),
		fixtures.UserJSON(t, map[string]any{"id": "not-a-uuid"}))))
	c, _ := newTestClient(t, mux, nil)

	_, err := c.Users(context.Background(), NewSearchUsersRequest(fixtures.Realm))
	testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)
	e, _ := sserr.AsError(err)
	assert.Equal(t, "users[1].id", e.Field())
}

func TestUsers_UpstreamStatus(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("GET "+usersPath, respond(http.StatusInternalServerError, "boom"))
	c, _ := newTestClient(t, mux, nil)

	_, err := c.Users(context.Background(), NewSearchUsersRequest(fixtures.Realm))
	testutil.RequireErrorCode(t, err, sserr.CodeUpstreamStatus)
	assert.True(t, sserr.IsUpstream(err))
}

// ===========================================================================
// ResetPassword / DeleteUser / UpdateUser
// ===========================================================================

func TestResetPassword(t *testing.T) {
	t.Parallel()
	path := userPath + "/reset-password"
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("PUT "+path, respond(http.StatusNoContent, ""))
	c, rec := newTestClient(t, mux, nil)

	err := c.ResetPassword(context.Background(), ResetPasswordRequest{
		Realm:  fixtures.Realm,
		UserID: uuid.MustParse(fixtures.UserID),
		Type:   CredentialPassword,
		Value:  "s3cret!",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"password","temporary":false,"value":"s3cret!"}`,
		lastRequest(t, rec, http.MethodPut, path).Body)
}

func TestResetPassword_WrongStatus(t *testing.T) {
	t.Parallel()
	path := userPath + "/reset-password"
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("PUT "+path, respond(http.StatusBadRequest, `{"error":"invalidPasswordMinLengthMessage"}`))
	c, _ := newTestClient(t, mux, nil)

	err := c.ResetPassword(context.Background(), ResetPasswordRequest{
		Realm:  fixtures.Realm,
		UserID: uuid.MustParse(fixtures.UserID),
		Type:   CredentialPassword,
		Value:  "x",
	})
	testutil.RequireErrorCode(t, err, sserr.CodeUpstreamStatus)
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("DELETE "+userPath, respond(http.StatusNoContent, ""))
	c, rec := newTestClient(t, mux, nil)

	err := c.DeleteUser(context.Background(), DeleteUserRequest{
		Realm:  fixtures.Realm,
		UserID: uuid.MustParse(fixtures.UserID),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count(http.MethodDelete, userPath))
}

func TestDeleteUser_NotFound(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("DELETE "+userPath, respond(http.StatusNotFound, `{"error":"User not found"}`))
	c, _ := newTestClient(t, mux, nil)

	err := c.DeleteUser(context.Background(), DeleteUserRequest{
		Realm:  fixtures.Realm,
		UserID: uuid.MustParse(fixtures.UserID),
	})
	testutil.RequireErrorCode(t, err, sserr.CodeUpstreamStatus)
	status, _ := sserr.UpstreamStatus(err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteUser_NilIDSkipsNetwork(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	c, rec := newTestClient(t, mux, nil)

	err := c.DeleteUser(context.Background(), DeleteUserRequest{Realm: fixtures.Realm})
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
	assert.Empty(t, rec.Requests())
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	mux.Handle("PUT "+userPath, respond(http.StatusNoContent, ""))
	c, rec := newTestClient(t, mux, nil)

	err := c.UpdateUser(context.Background(), UpdateUserRequest{
		Realm:      fixtures.Realm,
		UserID:     uuid.MustParse(fixtures.UserID),
		Attributes: map[string]any{"firstName": "Janet", "enabled": false},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"firstName":"Janet","enabled":false}`, lastRequest(t, rec, http.MethodPut, userPath).Body)
}

// ===========================================================================
// RequestToken
// ===========================================================================

func TestRequestToken_PasswordGrant(t *testing.T) {
	t.Parallel()
	const realm = "customers"
	path := "/realms/" + realm + "/protocol/openid-connect/token"
	mux := http.NewServeMux()
	mux.Handle("POST "+path, respond(http.StatusOK, fixtures.TokenResponse(t, fixtures.Token(t), 300,
		map[string]any{"refresh_token": "refresh", "refresh_expires_in": 1800, "session_state": "s1"})))
	mem := cache.NewMemory(0)
	c, rec := newTestClient(t, mux, nil, WithCache(mem))

	resp, err := c.RequestToken(context.Background(), TokenRequest{
		Realm:        realm,
		ClientID:     "frontend",
		ClientSecret: "frontend-secret",
		Username:     fixtures.Username,
		Password:     "s3cret!",
		Scope:        "openid",
	})
	require.NoError(t, err)
	assert.Equal(t, "refresh", resp.RefreshToken)
	assert.EqualValues(t, 1800, resp.RefreshExpiresIn)
	assert.Equal(t, "s1", resp.SessionState)
	assert.Equal(t, 0, mem.Len(), "user tokens are never cached")

	form, err := url.ParseQuery(lastRequest(t, rec, http.MethodPost, path).Body)
	require.NoError(t, err)
	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, "frontend", form.Get("client_id"))
	assert.Equal(t, fixtures.Username, form.Get("username"))
	assert.Equal(t, "s3cret!", form.Get("password"))
	assert.Equal(t, "openid", form.Get("scope"))
}

func TestRequestToken_RefreshGrant(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, tokenHandler(t, 300))
	c, rec := newTestClient(t, mux, nil)

	_, err := c.RequestToken(context.Background(), TokenRequest{
		Realm:        fixtures.Realm,
		ClientID:     fixtures.ClientID,
		ClientSecret: fixtures.ClientSecret,
		GrantType:    GrantRefreshToken,
		RefreshToken: "refresh",
	})
	require.NoError(t, err)

	form, err := url.ParseQuery(lastRequest(t, rec, http.MethodPost, tokenPath).Body)
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "refresh", form.Get("refresh_token"))
	assert.False(t, form.Has("password"))
}

func TestRequestToken_InvalidCredentials(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.Handle("POST "+tokenPath, respond(http.StatusUnauthorized, `{"error":"invalid_grant"}`))
	c, _ := newTestClient(t, mux, nil)

	_, err := c.RequestToken(context.Background(), TokenRequest{
		Realm:        fixtures.Realm,
		ClientID:     fixtures.ClientID,
		ClientSecret: fixtures.ClientSecret,
		Username:     fixtures.Username,
		Password:     "wrong",
	})
	testutil.RequireErrorCode(t, err, sserr.CodeTokenRequestFailed)
	status, _ := sserr.UpstreamStatus(err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequestToken_InvalidRequestSkipsNetwork(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	c, rec := newTestClient(t, mux, nil)

	_, err := c.RequestToken(context.Background(), TokenRequest{
		Realm:        fixtures.Realm,
		ClientID:     fixtures.ClientID,
		ClientSecret: fixtures.ClientSecret,
	})
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
	assert.Empty(t, rec.Requests())
}
