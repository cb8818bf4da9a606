package interactions

import (
	"fmt"
	"strings"
)

// Matcher decides whether a route accepts a custom ID.
type Matcher interface {
	Match(customID string) bool
}

// MatchFunc adapts a function to Matcher.
type MatchFunc func(customID string) bool

func (f MatchFunc) Match(customID string) bool { return f(customID) }

func (f MatchFunc) String() string { return "func" }

type exact string

func (e exact) Match(customID string) bool { return customID == string(e) }
func (e exact) String() string             { return fmt.Sprintf("exact(%s)", string(e)) }

type prefix string

func (p prefix) Match(customID string) bool { return strings.HasPrefix(customID, string(p)) }
func (p prefix) String() string             { return fmt.Sprintf("prefix(%s)", string(p)) }

type oneOf map[string]struct{}

func (o oneOf) Match(customID string) bool {
	_, ok := o[customID]
	return ok
}

func (o oneOf) String() string { return fmt.Sprintf("oneOf(%d)", len(o)) }

// Exact matches one custom ID.
func Exact(id string) Matcher { return exact(id) }

// Prefix matches every custom ID starting with p. A prefix route shadows
// every later route whose IDs share that prefix.
func Prefix(p string) Matcher { return prefix(p) }

// OneOf matches any of ids.
func OneOf(ids ...string) Matcher {
	set := make(oneOf, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
