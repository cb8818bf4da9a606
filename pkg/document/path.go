package document

import (
	"fmt"
	"strings"
)

// Path addresses a leaf by its keys from the document root.
type Path []string

// ParsePath splits a dotted path such as "logging.modLogs.channelId".
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("path %q: empty segment at %d", s, i)
		}
	}
	return Path(parts), nil
}

// MustPath is ParsePath for compile-time constants.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return strings.Join(p, ".") }

// Parent returns the path without its last key.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Leaf returns the last key.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Lookup walks m along p.
func (m Map) Lookup(p Path) (Value, bool) {
	if len(p) == 0 {
		return Object(m), true
	}
	cur := m
	for i, key := range p {
		v, ok := cur[key]
		if !ok {
			return Value{}, false
		}
		if i == len(p)-1 {
			return v, true
		}
		next, ok := v.AsMap()
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return Value{}, false
}

// LookupString is Lookup for string leaves.
func (m Map) LookupString(p Path) string {
	v, ok := m.Lookup(p)
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return s
}

// PatchAt builds the nested single-leaf patch {p[0]: {p[1]: ... v}}.
func PatchAt(p Path, v Value) Map {
	if len(p) == 0 {
		if m, ok := v.AsMap(); ok {
			return m.Clone()
		}
		return Map{}
	}
	leaf := Map{p[len(p)-1]: v.Clone()}
	for i := len(p) - 2; i >= 0; i-- {
		leaf = Map{p[i]: Object(leaf)}
	}
	return leaf
}

// Without returns a copy of m with the leaf at p removed. Parents are kept
// even when they end up empty. A missing path returns an unchanged copy.
func (m Map) Without(p Path) Map {
	out := m.Clone()
	if len(p) == 0 {
		return out
	}
	cur := out
	for _, key := range p.Parent() {
		next, ok := cur[key].AsMap()
		if !ok {
			return out
		}
		cur = next
	}
	delete(cur, p.Leaf())
	return out
}
