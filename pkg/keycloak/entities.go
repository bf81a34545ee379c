package keycloak

import (
	"time"

	"github.com/google/uuid"

	"github.com/StricklySoft/stricklysoft-keycloak/internal/jsonobj"
)

// Realm is one entry of the realm list.
type Realm struct {
	Name            string     `json:"realm"`
	ID              *uuid.UUID `json:"id,omitempty"`
	DisplayName     *string    `json:"displayName,omitempty"`
	DisplayNameHTML *string    `json:"displayNameHtml,omitempty"`
	Enabled         *bool      `json:"enabled,omitempty"`
}

func realmFromObject(o jsonobj.Object) (Realm, error) {
	var (
		r   Realm
		err error
	)
	if r.Name, err = o.NonBlank("realm"); err != nil {
		return Realm{}, err
	}
	if r.ID, err = o.OptUUIDPtr("id"); err != nil {
		return Realm{}, err
	}
	if r.DisplayName, err = o.OptStrPtr("displayName"); err != nil {
		return Realm{}, err
	}
	if r.DisplayNameHTML, err = o.OptStrPtr("displayNameHtml"); err != nil {
		return Realm{}, err
	}
	if r.Enabled, err = o.OptBoolPtr("enabled"); err != nil {
		return Realm{}, err
	}
	return r, nil
}

// decodeRealms decodes a realm list body. Every element is validated; the
// first invalid element fails the whole list.
func decodeRealms(body []byte) ([]Realm, error) {
	objs, err := decodeArray(body, "realms")
	if err != nil {
		return nil, err
	}
	realms := make([]Realm, 0, len(objs))
	for _, o := range objs {
		r, err := realmFromObject(o)
		if err != nil {
			return nil, err
		}
		realms = append(realms, r)
	}
	return realms, nil
}

// UserAccess lists what the calling client may do with a user.
type UserAccess struct {
	ManageGroupMembership bool `json:"manageGroupMembership"`
	View                  bool `json:"view"`
	MapRoles              bool `json:"mapRoles"`
	Impersonate           bool `json:"impersonate"`
	Manage                bool `json:"manage"`
}

func accessFromObject(o jsonobj.Object) (UserAccess, error) {
	var a UserAccess
	for _, f := range []struct {
		key string
		dst *bool
	}{
		{"manageGroupMembership", &a.ManageGroupMembership},
		{"view", &a.View},
		{"mapRoles", &a.MapRoles},
		{"impersonate", &a.Impersonate},
		{"manage", &a.Manage},
	} {
		v, err := o.Bool(f.key)
		if err != nil {
			return UserAccess{}, err
		}
		*f.dst = v
	}
	return a, nil
}

// User is a Keycloak user representation.
type User struct {
	ID                         uuid.UUID        `json:"id"`
	Username                   string           `json:"username"`
	FirstName                  string           `json:"firstName"`
	LastName                   string           `json:"lastName"`
	Email                      string           `json:"email"`
	EmailVerified              bool             `json:"emailVerified"`
	CreatedAt                  time.Time        `json:"-"`
	Enabled                    bool             `json:"enabled"`
	TOTP                       bool             `json:"totp"`
	DisableableCredentialTypes []CredentialType `json:"disableableCredentialTypes"`
	RequiredActions            []RequiredAction `json:"requiredActions"`
	NotBefore                  int64            `json:"notBefore"`
	Access                     UserAccess       `json:"access"`
	Roles                      []string         `json:"realmRoles"`
}

// userFromObject validates a user representation. id, username and
// createdTimestamp are required; every other field takes its zero value
// when absent or null. Roles come from realmRoles, falling back to roles,
// with duplicates removed.
func userFromObject(o jsonobj.Object) (User, error) {
	var (
		u   User
		err error
	)
	if u.ID, err = o.UUID("id"); err != nil {
		return User{}, err
	}
	if u.Username, err = o.NonBlank("username"); err != nil {
		return User{}, err
	}
	created, err := o.NonNegative("createdTimestamp")
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.UnixMilli(created).UTC()

	if u.FirstName, err = o.OptStr("firstName", ""); err != nil {
		return User{}, err
	}
	if u.LastName, err = o.OptStr("lastName", ""); err != nil {
		return User{}, err
	}
	if u.Email, err = o.OptStr("email", ""); err != nil {
		return User{}, err
	}
	if u.EmailVerified, err = o.OptBool("emailVerified", false); err != nil {
		return User{}, err
	}
	if u.Enabled, err = o.OptBool("enabled", false); err != nil {
		return User{}, err
	}
	if u.TOTP, err = o.OptBool("totp", false); err != nil {
		return User{}, err
	}
	if u.NotBefore, err = o.OptInt("notBefore", 0); err != nil {
		return User{}, err
	}

	types, err := o.StringList("disableableCredentialTypes")
	if err != nil {
		return User{}, err
	}
	for _, t := range types {
		u.DisableableCredentialTypes = append(u.DisableableCredentialTypes, CredentialType(t))
	}
	actions, err := o.StringList("requiredActions")
	if err != nil {
		return User{}, err
	}
	for _, a := range actions {
		u.RequiredActions = append(u.RequiredActions, RequiredAction(a))
	}

	access, ok, err := o.Child("access")
	if err != nil {
		return User{}, err
	}
	if ok {
		if u.Access, err = accessFromObject(access); err != nil {
			return User{}, err
		}
	}

	rolesKey := "realmRoles"
	if _, ok := o.Lookup(rolesKey); !ok {
		rolesKey = "roles"
	}
	roles, err := o.StringList(rolesKey)
	if err != nil {
		return User{}, err
	}
	u.Roles = dedupe(roles)
	return u, nil
}

func decodeUsers(body []byte) ([]User, error) {
	objs, err := decodeArray(body, "users")
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(objs))
	for _, o := range objs {
		u, err := userFromObject(o)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
