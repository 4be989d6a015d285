// Package props defines property bags produced by rule declarations and
// returned by resolution.
package props

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Kind is a type of value stored in a property bag.
type Kind int

const (
	KindInvalid Kind = iota // zero Value
	KindString
	KindNumber
	KindBool
	KindBag
	KindList
)

// String returns name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindBag:
		return "bag"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a single property value. Exactly one payload is meaningful,
// selected by Kind.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	bag  Bag
	list []string
}

// Bag maps property names to values. Bags returned from resolution must be
// treated as read-only, use Clone before modifying.
type Bag map[string]Value

// Constructors for each kind of value.
func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Object(b Bag) Value     { return Value{kind: KindBag, bag: b} }
func List(s ...string) Value { return Value{kind: KindList, list: s} }

// Kind returns kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsValid is false for zero Value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Str returns string payload.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns numeric payload.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Boolean returns boolean payload.
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Bag returns nested bag payload. Returned bag is shared with the value.
func (v Value) Bag() (Bag, bool) {
	return v.bag, v.kind == KindBag
}

// Strings returns list payload. Returned slice is shared with the value.
func (v Value) Strings() ([]string, bool) {
	return v.list, v.kind == KindList
}

// ClassTokens returns value as a space separated class string. Strings are
// returned trimmed, lists are joined. Other kinds do not represent classes.
func (v Value) ClassTokens() (string, bool) {
	switch v.kind {
	case KindString:
		s := strings.TrimSpace(v.str)
		return s, len(s) > 0
	case KindList:
		s := strings.Join(strings.Fields(strings.Join(v.list, " ")), " ")
		return s, len(s) > 0
	}
	return "", false
}

// Clone returns deep copy of the value.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBag:
		return Object(v.bag.Clone())
	case KindList:
		return List(slices.Clone(v.list)...)
	}
	return v
}

// Equal reports whether two values are deeply equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindBag:
		return v.bag.Equal(o.bag)
	case KindList:
		return slices.Equal(v.list, o.list)
	}
	return true
}

// Interface converts value to plain Go types: string, float64, bool,
// map[string]any and []string.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindBag:
		return v.bag.Map()
	case KindList:
		return slices.Clone(v.list)
	}
	return nil
}

// String formats value for logs and traces.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindBag:
		return v.bag.String()
	case KindList:
		return "[" + strings.Join(v.list, ", ") + "]"
	}
	return "<invalid>"
}

// FromAny converts plain Go value into Value. Supported are strings, bools,
// all integer and float types, []string, []any of strings and maps with string keys.
func FromAny(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return String(""), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float32:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case []string:
		return List(slices.Clone(t)...), nil
	case []any:
		list := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("list element %d: unsupported type %T", i, item)
			}
			list = append(list, s)
		}
		return List(list...), nil
	case Bag:
		return Object(t), nil
	case map[string]any:
		b, err := FromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Object(b), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", in)
}

// FromMap converts plain Go map into Bag.
func FromMap(m map[string]any) (Bag, error) {
	b := make(Bag, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		b[k] = v
	}
	return b, nil
}

// Clone returns deep copy of the bag. Nil bag stays nil.
func (b Bag) Clone() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports whether two bags hold deeply equal values. Nil and empty bags
// are equal.
func (b Bag) Equal(o Bag) bool {
	if len(b) != len(o) {
		return false
	}
	for k, v := range b {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Map converts bag to plain Go map.
func (b Bag) Map() map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v.Interface()
	}
	return out
}

// Keys returns sorted property names.
func (b Bag) Keys() []string {
	keys := slices.Collect(maps.Keys(b))
	sort.Strings(keys)
	return keys
}

// String formats bag with sorted keys.
func (b Bag) String() string {
	if len(b) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(b))
	for _, k := range b.Keys() {
		parts = append(parts, k+": "+b[k].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
