package files

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/small-frappuccino/guildpanel/pkg/document"
)

// Backend persists one configuration document per scope (guild ID).
// Load returns ErrNotFound for a scope that has never been saved.
type Backend interface {
	Name() string
	Load(ctx context.Context, scope string) (document.Map, error)
	Save(ctx context.Context, scope string, doc document.Map) error
	Close() error
}

// Lister is implemented by backends that can enumerate stored scopes.
type Lister interface {
	Scopes(ctx context.Context) ([]string, error)
}

var scopePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateScope accepts guild snowflakes and short slug-like names.
func ValidateScope(scope string) error {
	if !scopePattern.MatchString(scope) {
		return NewConfigError("validate", scope, ErrInvalidScope)
	}
	return nil
}

// MemoryBackend keeps documents in process memory. It backs tests and
// dry runs, and can be told to fail saves.
type MemoryBackend struct {
	mu      sync.Mutex
	docs    map[string]document.Map
	saveErr error
	saves   int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]document.Map)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Load(ctx context.Context, scope string) (document.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[scope]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (b *MemoryBackend) Save(ctx context.Context, scope string, doc document.Map) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.docs[scope] = doc.Clone()
	b.saves++
	return nil
}

func (b *MemoryBackend) Scopes(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.docs))
	for k := range b.docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// FailSaves makes every following Save return err until called with nil.
func (b *MemoryBackend) FailSaves(err error) {
	b.mu.Lock()
	b.saveErr = err
	b.mu.Unlock()
}

// Saves returns how many writes succeeded.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *MemoryBackend) Close() error { return nil }
