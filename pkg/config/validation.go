package config

import (
	"reflect"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// Validator is implemented by configuration structs that need checks beyond
// the `required` tag. Validate runs after required-field validation.
// A returned [*sserr.Error] passes through unchanged; any other error is
// wrapped with [sserr.CodeValidation].
//
// Example:
//
//	func (c *Config) Validate() error {
//	    if c.RealmListTTL < 0 {
//	        return sserr.New(sserr.CodeValidationRange,
//	            "keycloak: realm list TTL must not be negative")
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	if _, structured := sserr.AsError(err); structured {
		return err
	}
	return sserr.Wrap(err, sserr.CodeValidation, "config: custom validation failed")
}

// validateRequired walks the struct and reports the first field tagged
// `required:"true"` that is still zero, using its dotted path
// (e.g. "Redis.Addr").
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if !isLeaf(field) {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}
		if sf.Tag.Get("required") == "true" && field.IsZero() {
			return sserr.InvalidField(sserr.CodeValidationRequired, fieldPath, "is required").
				WithDetail("source", "config")
		}
	}
	return nil
}
