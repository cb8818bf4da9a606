// Package document models guild configuration as a tagged union of values and
// implements the merge and prune rules used to apply partial edits.
package document

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one node of a configuration document. The zero Value is Null.
//
// Scalars hold a string, a bool or a json.Number; other Go numeric types are
// normalized to json.Number on construction so equality and encoding do not
// depend on how a number entered the system.
type Value struct {
	kind   Kind
	scalar any
	list   []Value
	m      Map
}

// Map is a nested configuration object.
type Map map[string]Value

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindScalar, scalar: s} }

func Bool(b bool) Value { return Value{kind: KindScalar, scalar: b} }

func Number(n json.Number) Value { return Value{kind: KindScalar, scalar: n} }

func Int(n int64) Value { return Number(json.Number(strconv.FormatInt(n, 10))) }

func Float(f float64) Value {
	return Number(json.Number(strconv.FormatFloat(f, 'f', -1, 64)))
}

// List builds a list value. Lists are replaced wholesale by merges.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Strings builds a list of string scalars, the usual shape for role and channel ID lists.
func Strings(items ...string) Value {
	vals := make([]Value, len(items))
	for i, s := range items {
		vals[i] = String(s)
	}
	return Value{kind: KindList, list: vals}
}

// Object wraps m as a map value. A nil m becomes an empty map.
func Object(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsMap() bool  { return v.kind == KindMap }
func (v Value) IsList() bool { return v.kind == KindList }

// Scalar returns the raw scalar (string, bool or json.Number).
func (v Value) Scalar() (any, bool) {
	if v.kind != KindScalar {
		return nil, false
	}
	return v.scalar, true
}

func (v Value) AsString() (string, bool) {
	s, ok := v.scalar.(string)
	return s, ok && v.kind == KindScalar
}

func (v Value) AsBool() (bool, bool) {
	b, ok := v.scalar.(bool)
	return b, ok && v.kind == KindScalar
}

func (v Value) AsNumber() (json.Number, bool) {
	n, ok := v.scalar.(json.Number)
	return n, ok && v.kind == KindScalar
}

// AsList returns the list items. The slice is shared; use Clone before mutating.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsMap returns the nested map. The map is shared; use Clone before mutating.
func (v Value) AsMap() (Map, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// StringSlice returns the string items of a list, skipping non-string entries.
func (v Value) StringSlice() []string {
	if v.kind != KindList {
		return nil
	}
	out := make([]string, 0, len(v.list))
	for _, item := range v.list {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Text renders a scalar for display; lists are comma joined and maps show their size.
func (v Value) Text() string {
	switch v.kind {
	case KindScalar:
		switch x := v.scalar.(type) {
		case string:
			return x
		case bool:
			return strconv.FormatBool(x)
		case json.Number:
			return x.String()
		}
	case KindList:
		out := ""
		for i, item := range v.list {
			if i > 0 {
				out += ", "
			}
			out += item.Text()
		}
		return out
	case KindMap:
		return fmt.Sprintf("{%d keys}", len(v.m))
	}
	return ""
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		cp := make([]Value, len(v.list))
		for i, item := range v.list {
			cp[i] = item.Clone()
		}
		return Value{kind: KindList, list: cp}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	default:
		return v
	}
}

// Clone returns a deep copy of m. Clone of a nil map is an empty map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether m has no keys.
func (m Map) IsEmpty() bool { return len(m) == 0 }

// Equal reports deep equality. Numbers compare by numeric value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindScalar:
		an, aNum := a.scalar.(json.Number)
		bn, bNum := b.scalar.(json.Number)
		if aNum && bNum {
			if an == bn {
				return true
			}
			return numbersEqual(an, bn)
		}
		return a.scalar == b.scalar
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return MapsEqual(a.m, b.m)
	}
	return false
}

// numbersEqual compares exactly, so IDs above 2^53 never collapse.
func numbersEqual(a, b json.Number) bool {
	ar, okA := new(big.Rat).SetString(a.String())
	br, okB := new(big.Rat).SetString(b.String())
	return okA && okB && ar.Cmp(br) == 0
}

func MapsEqual(a, b Map) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// FromAny converts decoded JSON (or hand-built Go values) into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t.Clone(), nil
	case Map:
		return Object(t.Clone()), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		return Number(json.Number(strconv.FormatUint(t, 10))), nil
	case float32:
		return fromFloat(float64(t))
	case float64:
		return fromFloat(t)
	case []string:
		return Strings(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		m, err := MapFromAny(t)
		if err != nil {
			return Value{}, err
		}
		return Object(m), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("non-finite number %v", f)
	}
	return Float(f), nil
}

// MapFromAny converts a decoded JSON object into a Map.
func MapFromAny(raw map[string]any) (Map, error) {
	m := make(Map, len(raw))
	for k, item := range raw {
		v, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		m[k] = v
	}
	return m, nil
}

// Any converts v back into plain Go values (map[string]any, []any, scalars, nil).
func (v Value) Any() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		return v.m.Any()
	default:
		return nil
	}
}

func (m Map) Any() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}
