// Package jsonobj reads loosely typed JSON objects field by field.
//
// Bodies are decoded with numbers kept as [json.Number] so integers survive
// without float rounding. Accessors on [Object] report a missing or
// ill-shaped field as an [sserr.Error] with a VAL code and the field name,
// qualified by the object's position in the document (for example
// "users[1].id").
package jsonobj

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// ErrTrailingData is returned by [Decode] when a value is followed by more
// JSON.
var ErrTrailingData = errors.New("jsonobj: trailing data after value")

// Decode decodes data into v with numbers kept as json.Number.
func Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}

// Index returns name[i].
func Index(name string, i int) string {
	return name + "[" + strconv.Itoa(i) + "]"
}

// Missing reports an absent required field.
func Missing(field string) error {
	return sserr.InvalidField(sserr.CodeValidationRequired, field, "is required")
}

// Malformed reports a field with the wrong shape.
func Malformed(field, reason string) error {
	return sserr.InvalidField(sserr.CodeValidationFormat, field, reason)
}

// Object is a decoded JSON object. JSON null counts as absent everywhere.
type Object struct {
	prefix string
	m      map[string]any
}

// New wraps a top-level object.
func New(m map[string]any) Object {
	return Object{m: m}
}

// At wraps an object found at name; its field errors read "name.key".
func At(name string, m map[string]any) Object {
	return Object{prefix: name + ".", m: m}
}

// Field returns the qualified name of key.
func (o Object) Field(key string) string { return o.prefix + key }

// Missing reports key as absent.
func (o Object) Missing(key string) error { return Missing(o.Field(key)) }

// Malformed reports key as ill-shaped.
func (o Object) Malformed(key, reason string) error { return Malformed(o.Field(key), reason) }

// Lookup returns the value at key and whether it is present and non-null.
func (o Object) Lookup(key string) (any, bool) {
	v, ok := o.m[key]
	return v, ok && v != nil
}

// Require returns the value at key or a missing-field error.
func (o Object) Require(key string) (any, error) {
	v, ok := o.Lookup(key)
	if !ok {
		return nil, o.Missing(key)
	}
	return v, nil
}

func (o Object) Str(key string) (string, error) {
	v, err := o.Require(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", o.Malformed(key, "must be a string")
	}
	return s, nil
}

func (o Object) NonBlank(key string) (string, error) {
	s, err := o.Str(key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", o.Malformed(key, "must not be blank")
	}
	return s, nil
}

func (o Object) Bool(key string) (bool, error) {
	v, err := o.Require(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, o.Malformed(key, "must be a boolean")
	}
	return b, nil
}

func (o Object) Int(key string) (int64, error) {
	v, err := o.Require(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, o.Malformed(key, "must be an integer")
	}
	i, err := n.Int64()
	if err != nil {
		return 0, o.Malformed(key, "must be an integer")
	}
	return i, nil
}

// NonNegative is [Object.Int] with negative values failing with
// [sserr.CodeValidationRange].
func (o Object) NonNegative(key string) (int64, error) {
	i, err := o.Int(key)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, sserr.InvalidField(sserr.CodeValidationRange, o.Field(key), "must not be negative")
	}
	return i, nil
}

// UUID accepts only the canonical 8-4-4-4-12 hex form.
func (o Object) UUID(key string) (uuid.UUID, error) {
	s, err := o.Str(key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := ParseUUID(s)
	if err != nil {
		return uuid.Nil, o.Malformed(key, "must be a UUID")
	}
	return id, nil
}

// ParseUUID parses s in canonical form. [uuid.Parse] also takes the
// urn:uuid:, braced and undashed spellings; those are rejected here.
func ParseUUID(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, errors.New("jsonobj: invalid UUID length " + strconv.Itoa(len(s)))
	}
	return uuid.Parse(s)
}

// OptStr returns def when key is absent.
func (o Object) OptStr(key, def string) (string, error) {
	if _, ok := o.Lookup(key); !ok {
		return def, nil
	}
	return o.Str(key)
}

func (o Object) OptBool(key string, def bool) (bool, error) {
	if _, ok := o.Lookup(key); !ok {
		return def, nil
	}
	return o.Bool(key)
}

func (o Object) OptInt(key string, def int64) (int64, error) {
	if _, ok := o.Lookup(key); !ok {
		return def, nil
	}
	return o.Int(key)
}

// OptStrPtr returns nil when key is absent.
func (o Object) OptStrPtr(key string) (*string, error) {
	if _, ok := o.Lookup(key); !ok {
		return nil, nil
	}
	s, err := o.Str(key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (o Object) OptBoolPtr(key string) (*bool, error) {
	if _, ok := o.Lookup(key); !ok {
		return nil, nil
	}
	b, err := o.Bool(key)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (o Object) OptUUIDPtr(key string) (*uuid.UUID, error) {
	if _, ok := o.Lookup(key); !ok {
		return nil, nil
	}
	id, err := o.UUID(key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// StringList returns the non-blank strings at key, or nil when absent.
func (o Object) StringList(key string) ([]string, error) {
	v, ok := o.Lookup(key)
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, o.Malformed(key, "must be a list of strings")
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		s, ok := el.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, o.Malformed(key, "must be a list of non-blank strings")
		}
		out = append(out, s)
	}
	return out, nil
}

// Child returns the nested object at key, or ok == false when absent.
func (o Object) Child(key string) (Object, bool, error) {
	v, ok := o.Lookup(key)
	if !ok {
		return Object{}, false, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Object{}, false, o.Malformed(key, "must be an object")
	}
	return At(o.Field(key), m), true, nil
}

// Strings converts a JSON array whose elements are all strings.
func Strings(in []any) ([]string, bool) {
	out := make([]string, 0, len(in))
	for _, v := range in {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
