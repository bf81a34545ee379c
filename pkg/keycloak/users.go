package keycloak

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// CreateUser creates a user in req.Profile.Realm. Credentials attached to
// req are stored as-is; a plain password must be set afterwards with
// [Client.ResetPassword].
//
// Error codes returned:
//   - VAL_xxx: invalid profile
//   - UPSTREAM_003: status other than 201, with the body in details
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (err error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.CreateUser",
		trace.WithAttributes(attribute.String("keycloak.realm", req.Profile.Realm)))
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return err
	}
	_, err = c.admin(ctx, adminCall{
		name:     "create user",
		method:   http.MethodPost,
		segments: []string{"realms", req.Profile.Realm, "users"},
		payload:  req,
		want:     http.StatusCreated,
		code:     sserr.CodeUserCreation,
	})
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "keycloak: user created",
		"realm", req.Profile.Realm, "username", req.Profile.Username,
		"hashed_credentials", len(req.Credentials) > 0)
	return nil
}

// Users searches the users of req.Realm.
//
// Error codes returned:
//   - VAL_xxx: invalid request, or an element that is not a valid user
//   - UPSTREAM_002: status other than 200
//   - DEC_001: body is not a JSON array
func (c *Client) Users(ctx context.Context, req SearchUsersRequest) (users []User, err error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.Users",
		trace.WithAttributes(attribute.String("keycloak.realm", req.Realm)))
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := c.admin(ctx, adminCall{
		name:     "user search",
		method:   http.MethodGet,
		segments: []string{"realms", req.Realm, "users"},
		query:    req.Query(),
		want:     http.StatusOK,
		code:     sserr.CodeUpstreamStatus,
	})
	if err != nil {
		return nil, err
	}
	if users, err = decodeUsers(body); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("keycloak.user_count", len(users)))
	return users, nil
}

// ResetPassword sets the password of a user.
//
// Error codes returned:
//   - VAL_xxx: invalid request
//   - UPSTREAM_002: status other than 204
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (err error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.ResetPassword",
		trace.WithAttributes(attribute.String("keycloak.realm", req.Realm)))
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return err
	}
	_, err = c.admin(ctx, adminCall{
		name:     "reset password",
		method:   http.MethodPut,
		segments: []string{"realms", req.Realm, "users", req.UserID.String(), "reset-password"},
		payload:  req.body(),
		want:     http.StatusNoContent,
		code:     sserr.CodeUpstreamStatus,
	})
	return err
}

// DeleteUser deletes a user.
//
// Error codes returned:
//   - VAL_xxx: invalid request
//   - UPSTREAM_002: status other than 204
func (c *Client) DeleteUser(ctx context.Context, req DeleteUserRequest) (err error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.DeleteUser",
		trace.WithAttributes(attribute.String("keycloak.realm", req.Realm)))
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return err
	}
	_, err = c.admin(ctx, adminCall{
		name:     "delete user",
		method:   http.MethodDelete,
		segments: []string{"realms", req.Realm, "users", req.UserID.String()},
		want:     http.StatusNoContent,
		code:     sserr.CodeUpstreamStatus,
	})
	if err == nil {
		c.logger.InfoContext(ctx, "keycloak: user deleted", "realm", req.Realm, "user_id", req.UserID)
	}
	return err
}

// UpdateUser sends req.Attributes as a partial user representation.
//
// Error codes returned:
//   - VAL_xxx: invalid request
//   - UPSTREAM_002: status other than 204
func (c *Client) UpdateUser(ctx context.Context, req UpdateUserRequest) (err error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.UpdateUser",
		trace.WithAttributes(attribute.String("keycloak.realm", req.Realm)))
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return err
	}
	_, err = c.admin(ctx, adminCall{
		name:     "update user",
		method:   http.MethodPut,
		segments: []string{"realms", req.Realm, "users", req.UserID.String()},
		payload:  req.Attributes,
		want:     http.StatusNoContent,
		code:     sserr.CodeUpstreamStatus,
	})
	return err
}

// RequestToken exchanges user credentials or a refresh token for a token
// response. The result is never cached.
//
// Error codes returned:
//   - VAL_xxx: invalid request or response
//   - UPSTREAM_001: status outside 2xx, with status and body in details
//   - DEC_001, TOKEN_001: response is not a valid token response
func (c *Client) RequestToken(ctx context.Context, req TokenRequest) (resp *TokenResponse, err error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.RequestToken",
		trace.WithAttributes(
			attribute.String("keycloak.realm", req.Realm),
			attribute.String("keycloak.grant_type", string(req.grant())),
		))
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	status, body, err := c.api.postForm(ctx, req.Realm, req.Form())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status < 200 || status >= 300 {
		return nil, tokenRequestFailed(status, body)
	}
	return ParseTokenResponse(body)
}
