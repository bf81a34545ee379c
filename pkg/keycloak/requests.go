package keycloak

import (
	"encoding/json"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/credential"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// Default user search paging.
const (
	DefaultSearchFirst = 0
	DefaultSearchMax   = 20
)

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return sserr.InvalidField(sserr.CodeValidationRequired, field, "is required")
	}
	return nil
}

// CreateUserProfile is the profile part of a user creation request.
type CreateUserProfile struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Enabled       bool   `json:"enabled"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`

	// Realm is where the user is created. It is part of the URL, not the
	// body.
	Realm string `json:"-"`
}

// Validate requires every text field and a syntactically valid email.
func (p CreateUserProfile) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"username", p.Username},
		{"email", p.Email},
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"realm", p.Realm},
	} {
		if err := requireText(f.name, f.value); err != nil {
			return err
		}
	}
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return sserr.InvalidField(sserr.CodeValidationFormat, "email", "must be an email address")
	}
	return nil
}

// CreateUserRequest is a user creation request. Credentials are attached
// only on the pre-hashed path.
type CreateUserRequest struct {
	Profile     CreateUserProfile
	Credentials []credential.Credential
}

// Validate validates the profile.
func (r CreateUserRequest) Validate() error {
	return r.Profile.Validate()
}

// MarshalJSON renders the profile fields plus "credentials" when any are
// attached.
func (r CreateUserRequest) MarshalJSON() ([]byte, error) {
	type body struct {
		CreateUserProfile
		Credentials []credential.Credential `json:"credentials,omitempty"`
	}
	return json.Marshal(body{CreateUserProfile: r.Profile, Credentials: r.Credentials})
}

// SearchUsersRequest filters the user list of a realm. Nil filters are not
// sent.
type SearchUsersRequest struct {
	Realm    string
	Search   *string
	Username *string
	Email    *string

	// Attributes are matched with Keycloak's q=key:value syntax.
	Attributes map[string]string

	First int
	Max   int
	Exact bool
}

// NewSearchUsersRequest returns a request for realm with default paging.
func NewSearchUsersRequest(realm string) SearchUsersRequest {
	return SearchUsersRequest{Realm: realm, First: DefaultSearchFirst, Max: DefaultSearchMax}
}

// Validate requires a realm and non-negative paging.
func (r SearchUsersRequest) Validate() error {
	if err := requireText("realm", r.Realm); err != nil {
		return err
	}
	if r.First < 0 {
		return sserr.InvalidField(sserr.CodeValidationRange, "first", "must not be negative")
	}
	if r.Max < 0 {
		return sserr.InvalidField(sserr.CodeValidationRange, "max", "must not be negative")
	}
	return nil
}

// Query encodes the request as URL query parameters. Attributes are
// sorted by key.
func (r SearchUsersRequest) Query() url.Values {
	q := url.Values{}
	if r.Search != nil {
		q.Set("search", *r.Search)
	}
	if r.Username != nil {
		q.Set("username", *r.Username)
	}
	if r.Email != nil {
		q.Set("email", *r.Email)
	}
	q.Set("first", strconv.Itoa(r.First))
	q.Set("max", strconv.Itoa(r.Max))
	q.Set("exact", strconv.FormatBool(r.Exact))

	if len(r.Attributes) > 0 {
		keys := make([]string, 0, len(r.Attributes))
		for k := range r.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + ":" + r.Attributes[k]
		}
		q.Set("q", strings.Join(pairs, " "))
	}
	return q
}

// ResetPasswordRequest sets a user's password.
type ResetPasswordRequest struct {
	Realm     string
	UserID    uuid.UUID
	Type      CredentialType
	Value     string
	Temporary bool
}

// Validate requires realm, user id, type and value.
func (r ResetPasswordRequest) Validate() error {
	if err := requireText("realm", r.Realm); err != nil {
		return err
	}
	if r.UserID == uuid.Nil {
		return sserr.InvalidField(sserr.CodeValidationRequired, "userId", "is required")
	}
	if err := requireText("type", string(r.Type)); err != nil {
		return err
	}
	if r.Value == "" {
		return sserr.InvalidField(sserr.CodeValidationRequired, "value", "is required")
	}
	return nil
}

func (r ResetPasswordRequest) body() any {
	return struct {
		Type      CredentialType `json:"type"`
		Temporary bool           `json:"temporary"`
		Value     string         `json:"value"`
	}{r.Type, r.Temporary, r.Value}
}

// DeleteUserRequest deletes a user.
type DeleteUserRequest struct {
	Realm  string
	UserID uuid.UUID
}

// Validate requires realm and user id.
func (r DeleteUserRequest) Validate() error {
	if err := requireText("realm", r.Realm); err != nil {
		return err
	}
	if r.UserID == uuid.Nil {
		return sserr.InvalidField(sserr.CodeValidationRequired, "userId", "is required")
	}
	return nil
}

// UpdateUserRequest sends a partial user representation.
type UpdateUserRequest struct {
	Realm      string
	UserID     uuid.UUID
	Attributes map[string]any
}

// Validate requires realm, user id and at least one attribute.
func (r UpdateUserRequest) Validate() error {
	if err := requireText("realm", r.Realm); err != nil {
		return err
	}
	if r.UserID == uuid.Nil {
		return sserr.InvalidField(sserr.CodeValidationRequired, "userId", "is required")
	}
	if len(r.Attributes) == 0 {
		return sserr.InvalidField(sserr.CodeValidationRequired, "attributes", "must not be empty")
	}
	return nil
}

// TokenRequest asks the token endpoint for a user token with the password
// or refresh_token grant. An empty GrantType means password.
type TokenRequest struct {
	Realm        string
	ClientID     string
	ClientSecret string
	GrantType    GrantType

	Username     string
	Password     string
	RefreshToken string

	// Scope is optional; "openid" requests an ID token.
	Scope string
}

func (r TokenRequest) grant() GrantType {
	if r.GrantType == "" {
		return GrantPassword
	}
	return r.GrantType
}

// Validate requires realm and client credentials, then the inputs of the
// grant: username and password, or a refresh token.
func (r TokenRequest) Validate() error {
	if err := requireText("realm", r.Realm); err != nil {
		return err
	}
	if err := requireText("clientId", r.ClientID); err != nil {
		return err
	}
	if r.ClientSecret == "" {
		return sserr.InvalidField(sserr.CodeValidationRequired, "clientSecret", "is required")
	}
	switch r.grant() {
	case GrantPassword:
		if err := requireText("username", r.Username); err != nil {
			return err
		}
		if r.Password == "" {
			return sserr.InvalidField(sserr.CodeValidationRequired, "password", "is required")
		}
	case GrantRefreshToken:
		if r.RefreshToken == "" {
			return sserr.InvalidField(sserr.CodeValidationRequired, "refreshToken", "is required")
		}
	default:
		return sserr.InvalidField(sserr.CodeValidationFormat, "grantType",
			"must be password or refresh_token")
	}
	return nil
}

// Form encodes the request as token endpoint form parameters.
func (r TokenRequest) Form() url.Values {
	form := url.Values{}
	form.Set("grant_type", string(r.grant()))
	form.Set("client_id", r.ClientID)
	form.Set("client_secret", r.ClientSecret)
	switch r.grant() {
	case GrantPassword:
		form.Set("username", r.Username)
		form.Set("password", r.Password)
	case GrantRefreshToken:
		form.Set("refresh_token", r.RefreshToken)
	}
	if r.Scope != "" {
		form.Set("scope", r.Scope)
	}
	return form
}
