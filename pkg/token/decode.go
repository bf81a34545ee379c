package token

import (
	"encoding/json"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/StricklySoft/stricklysoft-keycloak/internal/jsonobj"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// segmentParser pads segments with '=' to a multiple of four and decodes
// them with the strict base64url alphabet.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed(), jwt.WithStrictDecoding())

// Decode parses raw into a [BearerToken]. It fails with
// [sserr.CodeMalformedToken] when raw does not have exactly three non-empty
// dot-separated segments, when the header or payload segment is not
// base64url-encoded JSON object, or when a required header parameter or
// claim is missing or has the wrong shape. Checks run header first
// (alg, typ, kid), then payload in claim order, and the first failure is
// reported with its name in the "field" detail.
//
// Decode is pure and safe for concurrent use.
func Decode(raw string) (*BearerToken, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, sserr.MalformedToken(nil, "token: expected 3 segments, got "+strconv.Itoa(len(parts)))
	}
	for i, p := range parts {
		if p == "" {
			return nil, sserr.MalformedToken(nil, "token: segment "+strconv.Itoa(i)+" is empty")
		}
	}

	headerJSON, headerClaims, err := decodeObject(parts[0], "header")
	if err != nil {
		return nil, err
	}
	payloadJSON, payloadClaims, err := decodeObject(parts[1], "payload")
	if err != nil {
		return nil, err
	}

	header, err := parseHeader(headerClaims)
	if err != nil {
		return nil, sserr.MalformedToken(err, "token: invalid header")
	}
	payload, err := parsePayload(payloadClaims)
	if err != nil {
		return nil, sserr.MalformedToken(err, "token: invalid payload")
	}

	return &BearerToken{
		Raw:         raw,
		Header:      header,
		Payload:     payload,
		Signature:   parts[2],
		headerJSON:  headerJSON,
		payloadJSON: payloadJSON,
	}, nil
}

func decodeObject(segment, name string) ([]byte, jsonobj.Object, error) {
	data, err := segmentParser.DecodeSegment(segment)
	if err != nil {
		return nil, jsonobj.Object{}, sserr.MalformedToken(err, "token: "+name+" is not valid base64url")
	}

	var obj map[string]any
	if err := jsonobj.Decode(data, &obj); err != nil {
		return nil, jsonobj.Object{}, sserr.MalformedToken(err, "token: "+name+" is not a JSON object")
	}
	if obj == nil {
		return nil, jsonobj.Object{}, sserr.MalformedToken(nil, "token: "+name+" is not a JSON object")
	}
	return data, jsonobj.New(obj), nil
}

func parseHeader(c jsonobj.Object) (Header, error) {
	var (
		h   Header
		err error
	)
	if h.Alg, err = c.NonBlank("alg"); err != nil {
		return h, err
	}
	if h.Typ, err = c.NonBlank("typ"); err != nil {
		return h, err
	}
	if h.Typ != HeaderType {
		return h, c.Malformed("typ", "must be "+strconv.Quote(HeaderType))
	}
	if h.Kid, err = c.NonBlank("kid"); err != nil {
		return h, err
	}
	return h, nil
}

func parsePayload(c jsonobj.Object) (Payload, error) {
	var (
		p   Payload
		err error
	)
	steps := []func() error{
		func() error { p.ExpiresAt, err = unixTime(c, "exp"); return err },
		func() error { p.IssuedAt, err = unixTime(c, "iat"); return err },
		func() error { p.ID, err = c.UUID("jti"); return err },
		func() error { p.Issuer, err = absoluteURL(c, "iss"); return err },
		func() error { p.Audience, err = audience(c, "aud"); return err },
		func() error { p.Subject, err = c.UUID("sub"); return err },
		func() error { p.Type, err = c.NonBlank("typ"); return err },
		func() error { p.AuthorizedParty, err = c.NonBlank("azp"); return err },
		func() error { p.AuthContextClass, err = integer(c, "acr"); return err },
		func() error { p.RealmAccess, err = roles(c, "realm_access"); return err },
		func() error { p.ResourceAccess, err = resourceAccess(c, "resource_access"); return err },
		func() error { p.Scope, err = c.Str("scope"); return err },
		func() error { p.EmailVerified, err = c.Bool("email_verified"); return err },
		func() error { p.ClientHost, err = ipAddr(c, "clientHost"); return err },
		func() error { p.PreferredUsername, err = c.NonBlank("preferred_username"); return err },
		func() error { p.ClientAddress, err = ipAddr(c, "clientAddress"); return err },
		func() error { p.ClientID, err = c.NonBlank("client_id"); return err },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Payload{}, err
		}
	}
	return p, nil
}

func unixTime(c jsonobj.Object, name string) (time.Time, error) {
	v, err := c.Require(name)
	if err != nil {
		return time.Time{}, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return time.Time{}, c.Malformed(name, "must be a number")
	}
	secs, err := n.Int64()
	if err != nil || secs < 0 {
		return time.Time{}, c.Malformed(name, "must be a non-negative integer")
	}
	return time.Unix(secs, 0), nil
}

// integer accepts a JSON integer or a string holding one; Keycloak emits
// acr as "1".
func integer(c jsonobj.Object, name string) (int, error) {
	v, err := c.Require(name)
	if err != nil {
		return 0, err
	}
	var text string
	switch x := v.(type) {
	case json.Number:
		text = x.String()
	case string:
		text = x
	default:
		return 0, c.Malformed(name, "must be numeric")
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, c.Malformed(name, "must be numeric")
	}
	return n, nil
}

func absoluteURL(c jsonobj.Object, name string) (string, error) {
	s, err := c.Str(name)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", c.Malformed(name, "must be an absolute URL")
	}
	return s, nil
}

func ipAddr(c jsonobj.Object, name string) (netip.Addr, error) {
	s, err := c.Str(name)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, c.Malformed(name, "must be an IP address")
	}
	return addr, nil
}

func audience(c jsonobj.Object, name string) ([]string, error) {
	v, err := c.Require(name)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return nil, c.Malformed(name, "must not be empty")
		}
		return []string{x}, nil
	case []any:
		out, ok := jsonobj.Strings(x)
		if !ok || len(out) == 0 {
			return nil, c.Malformed(name, "must be a non-empty list of strings")
		}
		return out, nil
	default:
		return nil, c.Malformed(name, "must be a string or a list of strings")
	}
}

func roles(c jsonobj.Object, name string) (Roles, error) {
	v, err := c.Require(name)
	if err != nil {
		return Roles{}, err
	}
	return toRoles(c.Field(name), v)
}

func resourceAccess(c jsonobj.Object, name string) (map[string]Roles, error) {
	v, err := c.Require(name)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, c.Malformed(name, "must be an object")
	}
	out := make(map[string]Roles, len(obj))
	for client, entry := range obj {
		r, err := toRoles(c.Field(name)+"."+client, entry)
		if err != nil {
			return nil, err
		}
		out[client] = r
	}
	return out, nil
}

func toRoles(field string, v any) (Roles, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Roles{}, jsonobj.Malformed(field, "must be an object")
	}
	raw, ok := obj["roles"].([]any)
	if !ok {
		return Roles{}, jsonobj.Malformed(field+".roles", "must be a list of strings")
	}
	names, ok := jsonobj.Strings(raw)
	if !ok {
		return Roles{}, jsonobj.Malformed(field+".roles", "must be a list of strings")
	}
	return Roles{Roles: names}, nil
}
