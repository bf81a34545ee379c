package keycloak

import (
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// CredentialType is a Keycloak credential type. Any non-blank value is
// accepted; the constants name the built-in types.
type CredentialType string

// Built-in credential types.
const (
	CredentialPassword             CredentialType = "password"
	CredentialOTP                  CredentialType = "otp"
	CredentialWebAuthn             CredentialType = "webauthn"
	CredentialWebAuthnPasswordless CredentialType = "webauthn-passwordless"
)

// ParseCredentialType accepts any non-blank string.
func ParseCredentialType(s string) (CredentialType, error) {
	if strings.TrimSpace(s) == "" {
		return "", sserr.InvalidField(sserr.CodeValidationRequired, "credentialType", "must not be blank")
	}
	return CredentialType(s), nil
}

// RequiredAction is an action Keycloak asks the user to complete at next
// login. Any non-blank value is accepted.
type RequiredAction string

// Built-in required actions.
const (
	ActionVerifyEmail                  RequiredAction = "VERIFY_EMAIL"
	ActionUpdateProfile                RequiredAction = "UPDATE_PROFILE"
	ActionUpdatePassword               RequiredAction = "UPDATE_PASSWORD"
	ActionConfigureTOTP                RequiredAction = "CONFIGURE_TOTP"
	ActionUpdateEmail                  RequiredAction = "UPDATE_EMAIL"
	ActionUpdateUserLocale             RequiredAction = "UPDATE_USER_LOCALE"
	ActionTermsAndConditions           RequiredAction = "TERMS_AND_CONDITIONS"
	ActionWebAuthnRegister             RequiredAction = "WEBAUTHN_REGISTER"
	ActionWebAuthnRegisterPasswordless RequiredAction = "WEBAUTHN_REGISTER_PASSWORDLESS"
)

// ParseRequiredAction accepts any non-blank string.
func ParseRequiredAction(s string) (RequiredAction, error) {
	if strings.TrimSpace(s) == "" {
		return "", sserr.InvalidField(sserr.CodeValidationRequired, "requiredAction", "must not be blank")
	}
	return RequiredAction(s), nil
}

// GrantType is an OAuth2 grant type sent to the token endpoint.
type GrantType string

// Supported grant types.
const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
)
