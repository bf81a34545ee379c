// Package config loads bridge configuration from struct tag defaults, an
// optional YAML/JSON file and the process environment. Values are resolved
// in priority order:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file
//	Environment variables   (highest priority)
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` maps the field to an environment variable. On a
//     nested struct the tag becomes a prefix for the child fields.
//   - `envDefault:"value"` sets a default when the field is zero-valued.
//   - `required:"true"` fails validation if the field is still zero.
//
// Fields also need `yaml` or `json` tags for file-based loading.
//
// # Usage
//
//	cfg := config.MustLoad[keycloak.Config](
//	    config.New().WithEnvPrefix("BRIDGE").WithFile("bridge.yaml"),
//	)
package config

import (
	"encoding"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// LookupFunc resolves an environment variable. It has the signature of
// os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Loader resolves configuration into a struct. Use [New] and the With*
// methods to configure it, then call [Loader.Load].
//
// Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookup    LookupFunc
}

// New creates a [Loader] that reads the process environment with no prefix
// and no file.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix prepends prefix and an underscore to every environment
// variable name. The prefix is uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of a .yaml, .yml or .json configuration file.
// A missing file is not an error. Paths containing ".." are rejected.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces the environment source. Tests use it to supply a
// fixed environment without mutating the process.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn != nil {
		l.lookup = fn
	}
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, then
// validates required fields and, when cfg implements [Validator], calls
// Validate.
//
// Loading failures carry [sserr.CodeInternalConfiguration]; missing
// required fields carry [sserr.CodeValidationRequired].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	if err := l.applyEnv(rv, l.envPrefix); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// MustLoad loads a T and panics on failure. Intended for func main.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to parse file %q", l.filePath)
	}
	return nil
}

// isLeaf reports whether a struct-kinded field should be set as a single
// value rather than traversed.
func isLeaf(field reflect.Value) bool {
	if field.Kind() != reflect.Struct {
		return true
	}
	return field.Type() == durationType || field.Addr().Type().Implements(textUnmarshalerType)
}

func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		if !isLeaf(field) {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag, ok := sf.Tag.Lookup("envDefault")
		if !ok || !field.IsZero() {
			continue
		}
		if err := setField(field, tag); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}
	return nil
}

func (l *Loader) applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		envTag := sf.Tag.Get("env")

		if !isLeaf(field) {
			if err := l.applyEnv(field, joinPrefix(prefix, envTag)); err != nil {
				return err
			}
			continue
		}
		if envTag == "" {
			continue
		}

		key := joinPrefix(prefix, envTag)
		val, ok := l.lookup(key)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
	}
	return nil
}

func joinPrefix(prefix, name string) string {
	switch {
	case name == "":
		return prefix
	case prefix == "":
		return name
	default:
		return prefix + "_" + name
	}
}

// setField parses value into field. Supported: encoding.TextUnmarshaler,
// time.Duration, string kinds, bool, signed and unsigned integers, float64
// and comma-separated []string.
func setField(field reflect.Value, value string) error {
	if field.CanAddr() && field.Addr().Type().Implements(textUnmarshalerType) {
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
	}
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse unsigned integer %q: %w", value, err)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse float %q: %w", value, err)
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
