package condfilter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindScalar
	KindList
	KindRange
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Bounds is the value of a range rule. A nil bound is open.
type Bounds struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether n lies within the bounds (inclusive).
func (b Bounds) Contains(n float64) bool {
	if b.Min != nil && n < *b.Min {
		return false
	}
	if b.Max != nil && n > *b.Max {
		return false
	}
	return true
}

// Value is the operand of a rule: a scalar, a list of scalars or range bounds.
// The zero Value is null.
type Value struct {
	kind   ValueKind
	scalar any
	list   []any
	bounds Bounds
}

func Null() Value {
	return Value{}
}

func Scalar(v any) Value {
	if v == nil {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: v}
}

func List(vs ...any) Value {
	list := make([]any, len(vs))
	copy(list, vs)
	return Value{kind: KindList, list: list}
}

// Between builds range bounds; either side may be nil.
func Between(min, max *float64) Value {
	return Value{kind: KindRange, bounds: Bounds{Min: min, Max: max}}
}

func AtLeast(min float64) Value {
	return Between(lo.ToPtr(min), nil)
}

func AtMost(max float64) Value {
	return Between(nil, lo.ToPtr(max))
}

// ValueOf classifies an untyped value, typically decoded from JSON.
// Slices become lists, objects holding nothing but numeric min/max become ranges,
// everything else is a scalar.
func ValueOf(v any) Value {
	switch vv := v.(type) {
	case nil:
		return Value{}
	case Value:
		return vv
	case Bounds:
		return Between(vv.Min, vv.Max)
	case []any:
		return List(vv...)
	case []string:
		return List(lo.ToAnySlice(vv)...)
	case []int:
		return List(lo.ToAnySlice(vv)...)
	case []int64:
		return List(lo.ToAnySlice(vv)...)
	case []float64:
		return List(lo.ToAnySlice(vv)...)
	case []bool:
		return List(lo.ToAnySlice(vv)...)
	case map[string]any:
		if b, ok := boundsFromMap(vv); ok {
			return Between(b.Min, b.Max)
		}
	}
	return Scalar(v)
}

// boundsFromMap accepts {}, {"min": n}, {"max": n} and {"min": n, "max": m}.
// A null bound is open.
func boundsFromMap(m map[string]any) (Bounds, bool) {
	var b Bounds
	for key, raw := range m {
		if key != "min" && key != "max" {
			return Bounds{}, false
		}
		if raw == nil {
			continue
		}
		n, ok := toNumber(raw)
		if !ok {
			return Bounds{}, false
		}
		if key == "min" {
			b.Min = lo.ToPtr(n)
		} else {
			b.Max = lo.ToPtr(n)
		}
	}
	return b, true
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) Scalar() (any, bool) {
	return v.scalar, v.kind == KindScalar
}

// List returns a copy of the list items.
func (v Value) List() ([]any, bool) {
	if v.kind != KindList {
		return nil, false
	}
	list := make([]any, len(v.list))
	copy(list, v.list)
	return list, true
}

func (v Value) Bounds() (Bounds, bool) {
	return v.bounds, v.kind == KindRange
}

// Interface returns the plain Go form of the value.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		list, _ := v.List()
		return list
	case KindRange:
		m := map[string]any{}
		if v.bounds.Min != nil {
			m["min"] = *v.bounds.Min
		}
		if v.bounds.Max != nil {
			m["max"] = *v.bounds.Max
		}
		return m
	default:
		return nil
	}
}

func (v Value) String() string {
	key, err := canonicalKey(v)
	if err != nil {
		return fmt.Sprint(v.Interface())
	}
	return key
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindRange:
		return jsoniterStd.Marshal(v.bounds)
	default:
		return jsoniterStd.Marshal(v.Interface())
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := jsoniterStd.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "unmarshal rule value")
	}
	*v = ValueOf(raw)
	return nil
}

// toNumber coerces numeric kinds and numeric strings to float64.
func toNumber(v any) (float64, bool) {
	if f, ok := asFloat64(v); ok {
		return f, true
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	if u, ok := asUint64(v); ok {
		return float64(u), true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
