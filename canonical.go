package condfilter

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// map keys are sorted so equal values always serialize identically
var jsoniterCanonical = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

func canonicalKey(v Value) (string, error) {
	var target any
	switch v.kind {
	case KindNull:
		return "null", nil
	case KindRange:
		target = v.bounds
	default:
		target = v.Interface()
	}
	s, err := jsoniterCanonical.MarshalToString(target)
	if err != nil {
		return "", errors.Wrap(err, "serialize rule value")
	}
	return s, nil
}

// mustCanonicalKey falls back to a kind-tagged Go representation for values
// that cannot be serialized, so they still compare deterministically.
func mustCanonicalKey(v Value) string {
	key, err := canonicalKey(v)
	if err != nil {
		return fmt.Sprintf("%s:%#v", v.kind, v.Interface())
	}
	return key
}

func ruleKey(r Rule) string {
	return r.Field + "\x00" + string(r.Operator) + "\x00" + mustCanonicalKey(r.Value)
}

// ToMap converts any JSON-serializable value to a map[string]any.
func ToMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := jsoniterCanonical.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal item")
	}
	var m map[string]any
	if err := jsoniterCanonical.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal item to map")
	}
	return m, nil
}
