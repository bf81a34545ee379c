package config

// Secret is a string that redacts itself when printed or serialized. It is
// used for the Keycloak client secret and backend passwords. Use
// [Secret.Value] to read the real value.
type Secret string

const redacted = "[REDACTED]"

// String returns "[REDACTED]".
func (s Secret) String() string {
	return redacted
}

// GoString returns "[REDACTED]" so %#v does not leak the value.
func (s Secret) GoString() string {
	return redacted
}

// Value returns the actual secret string.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText returns "[REDACTED]" so JSON, YAML and slog text output never
// carry the value.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalText stores text verbatim. Without it, decoding a JSON config
// file would fail because MarshalText makes the type a text marshaler.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
