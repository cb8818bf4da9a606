package files

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// ConfigChange describes one committed write.
type ConfigChange struct {
	Scope    string
	Patch    document.Map
	Document document.Map
	At       time.Time
}

// ChangeHook observes committed writes. Hooks run while the scope's writer
// lock is held, in commit order, so they must hand slow work off.
type ChangeHook func(ConfigChange)

// ApplyResult is the outcome of a successful Apply or Mutate.
type ApplyResult struct {
	Changed  bool
	Document document.Map
}

type StoreOption func(*ConfigStore)

func WithChangeHook(h ChangeHook) StoreOption {
	return func(s *ConfigStore) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *ConfigStore) {
		if now != nil {
			s.now = now
		}
	}
}

// ConfigStore owns the committed configuration documents. All writes to a
// scope are serialized and merged against the latest committed document, so
// two administrators editing different fields never lose each other's work.
// Readers get deep copies and only ever observe committed state.
type ConfigStore struct {
	backend Backend
	hooks   []ChangeHook
	now     func() time.Time

	mu   sync.RWMutex
	docs map[string]document.Map

	writersMu sync.Mutex
	writers   map[string]*sync.Mutex
}

func NewConfigStore(backend Backend, opts ...StoreOption) *ConfigStore {
	s := &ConfigStore{
		backend: backend,
		now:     time.Now,
		docs:    make(map[string]document.Map),
		writers: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddChangeHook registers h for every later commit.
func (s *ConfigStore) AddChangeHook(h ChangeHook) {
	if h == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

func (s *ConfigStore) Backend() Backend { return s.backend }

func (s *ConfigStore) writer(scope string) *sync.Mutex {
	s.writersMu.Lock()
	defer s.writersMu.Unlock()
	w, ok := s.writers[scope]
	if !ok {
		w = &sync.Mutex{}
		s.writers[scope] = w
	}
	return w
}

func (s *ConfigStore) cached(scope string) (document.Map, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[scope]
	return doc, ok
}

// current returns the committed document, loading it on first use.
// Callers must hold the scope's writer lock.
func (s *ConfigStore) current(ctx context.Context, scope string) (document.Map, error) {
	if doc, ok := s.cached(scope); ok {
		return doc, nil
	}
	doc, err := s.backend.Load(ctx, scope)
	if errors.Is(err, ErrNotFound) {
		doc, err = document.Map{}, nil
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.docs[scope] = doc
	s.mu.Unlock()
	return doc, nil
}

// Get returns a copy of the committed document for scope.
func (s *ConfigStore) Get(ctx context.Context, scope string) (document.Map, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}
	if doc, ok := s.cached(scope); ok {
		return doc.Clone(), nil
	}

	w := s.writer(scope)
	w.Lock()
	defer w.Unlock()
	doc, err := s.current(ctx, scope)
	if err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// Lookup reads a single dotted path, e.g. "tickets.supportRole".
func (s *ConfigStore) Lookup(ctx context.Context, scope, path string) (document.Value, bool, error) {
	p, err := document.ParsePath(path)
	if err != nil {
		return document.Value{}, false, err
	}
	doc, err := s.Get(ctx, scope)
	if err != nil {
		return document.Value{}, false, err
	}
	v, ok := doc.Lookup(p)
	return v, ok, nil
}

// Apply prunes nulls from patch, merges it into the committed document and
// persists the result. An all-null patch returns ErrPatchRejected; a patch
// that changes nothing returns Changed=false without touching the backend.
func (s *ConfigStore) Apply(ctx context.Context, scope string, patch document.Map) (ApplyResult, error) {
	pruned := document.PruneNulls(patch)
	if pruned.IsEmpty() {
		return ApplyResult{}, ErrPatchRejected
	}
	return s.write(ctx, scope, "apply", func(cur document.Map) (document.Map, document.Map, error) {
		return document.DeepMerge(cur, pruned), pruned, nil
	})
}

// Mutate computes the next document from the committed one under the scope's
// writer lock. fn receives a copy it may modify and return.
func (s *ConfigStore) Mutate(ctx context.Context, scope string, fn func(document.Map) (document.Map, error)) (ApplyResult, error) {
	return s.write(ctx, scope, "mutate", func(cur document.Map) (document.Map, document.Map, error) {
		next, err := fn(cur.Clone())
		if err != nil {
			return nil, nil, err
		}
		return next, next, nil
	})
}

// Replace overwrites the whole document for scope.
func (s *ConfigStore) Replace(ctx context.Context, scope string, doc document.Map) (ApplyResult, error) {
	next := document.PruneNulls(doc)
	return s.write(ctx, scope, "replace", func(document.Map) (document.Map, document.Map, error) {
		return next, next, nil
	})
}

func (s *ConfigStore) write(ctx context.Context, scope, op string, next func(document.Map) (document.Map, document.Map, error)) (ApplyResult, error) {
	if err := ValidateScope(scope); err != nil {
		return ApplyResult{}, err
	}

	w := s.writer(scope)
	w.Lock()
	defer w.Unlock()

	cur, err := s.current(ctx, scope)
	if err != nil {
		return ApplyResult{}, NewConfigError("load", scope, err)
	}
	updated, patch, err := next(cur)
	if err != nil {
		return ApplyResult{}, err
	}
	if updated == nil {
		updated = document.Map{}
	}
	if document.MapsEqual(cur, updated) {
		return ApplyResult{Changed: false, Document: cur.Clone()}, nil
	}
	if err := ctx.Err(); err != nil {
		return ApplyResult{}, err
	}

	if err := s.backend.Save(ctx, scope, updated); err != nil {
		log.ErrorLoggerRaw().Error("Config save failed", "scope", scope, "operation", op, "backend", s.backend.Name(), "err", err)
		return ApplyResult{}, &PersistenceError{Scope: scope, Backend: s.backend.Name(), Cause: err}
	}

	s.mu.Lock()
	s.docs[scope] = updated
	hooks := append([]ChangeHook(nil), s.hooks...)
	s.mu.Unlock()

	log.ApplicationLogger().Debug("Config committed", "scope", scope, "operation", op, "backend", s.backend.Name())

	change := ConfigChange{Scope: scope, Patch: patch.Clone(), Document: updated.Clone(), At: s.now()}
	for _, h := range hooks {
		h(change)
	}
	return ApplyResult{Changed: true, Document: updated.Clone()}, nil
}

// Scopes lists stored scopes when the backend supports it.
func (s *ConfigStore) Scopes(ctx context.Context) ([]string, error) {
	l, ok := s.backend.(Lister)
	if !ok {
		return nil, errors.New("backend " + s.backend.Name() + " cannot list scopes")
	}
	return l.Scopes(ctx)
}

// Invalidate drops the cached document so the next read reloads it.
func (s *ConfigStore) Invalidate(scope string) {
	s.mu.Lock()
	delete(s.docs, scope)
	s.mu.Unlock()
}

func (s *ConfigStore) Close() error {
	return s.backend.Close()
}
