package keycloak

import (
	"errors"

	"github.com/StricklySoft/stricklysoft-keycloak/internal/jsonobj"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// decodeJSON decodes body into v with numbers kept as json.Number. Non-JSON
// input and trailing data fail with CodeDecoding.
func decodeJSON(body []byte, v any, what string) error {
	err := jsonobj.Decode(body, v)
	switch {
	case errors.Is(err, jsonobj.ErrTrailingData):
		return sserr.New(sserr.CodeDecoding, "keycloak: "+what+" has trailing data")
	case err != nil:
		return sserr.Wrap(err, sserr.CodeDecoding, "keycloak: "+what+" is not valid JSON")
	}
	return nil
}

// decodeObject decodes a single JSON object.
func decodeObject(body []byte, what string) (jsonobj.Object, error) {
	var m map[string]any
	if err := decodeJSON(body, &m, what); err != nil {
		return jsonobj.Object{}, err
	}
	if m == nil {
		return jsonobj.Object{}, sserr.New(sserr.CodeDecoding, "keycloak: "+what+" is not a JSON object")
	}
	return jsonobj.New(m), nil
}

// decodeArray decodes a JSON array of objects. Each element's field errors
// are prefixed with "<what>[i].".
func decodeArray(body []byte, what string) ([]jsonobj.Object, error) {
	var raw []any
	if err := decodeJSON(body, &raw, what); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, sserr.New(sserr.CodeDecoding, "keycloak: "+what+" is not a JSON array")
	}
	out := make([]jsonobj.Object, len(raw))
	for i, el := range raw {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, jsonobj.Malformed(jsonobj.Index(what, i), "must be an object")
		}
		out[i] = jsonobj.At(jsonobj.Index(what, i), m)
	}
	return out, nil
}
