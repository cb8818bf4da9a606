package files

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/errutil"
	"github.com/small-frappuccino/guildpanel/pkg/util"
)

// JSONBackend stores each scope as <dir>/<scope>.json.
type JSONBackend struct {
	dir      string
	mu       sync.Mutex
	managers map[string]*util.JSONManager
}

func NewJSONBackend(dir string) (*JSONBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errutil.HandleConfigError("init", dir, func() error { return err })
	}
	return &JSONBackend{dir: dir, managers: make(map[string]*util.JSONManager)}, nil
}

func (b *JSONBackend) Name() string { return "json" }

func (b *JSONBackend) Dir() string { return b.dir }

func (b *JSONBackend) manager(scope string) (*util.JSONManager, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.managers[scope]; ok {
		return m, nil
	}
	path, err := util.SafeJoin(b.dir, scope+".json")
	if err != nil {
		return nil, NewConfigError("resolve", scope, err)
	}
	m := util.NewJSONManager(path)
	b.managers[scope] = m
	return m, nil
}

func (b *JSONBackend) Load(ctx context.Context, scope string) (document.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := b.manager(scope)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := m.Load(&raw); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errutil.HandleConfigError("read", m.Path(), func() error { return err })
	}
	doc, err := document.MapFromAny(raw)
	if err != nil {
		return nil, NewConfigError("decode", m.Path(), err)
	}
	return doc, nil
}

func (b *JSONBackend) Save(ctx context.Context, scope string, doc document.Map) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := b.manager(scope)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = document.Map{}
	}
	return errutil.HandleConfigError("write", m.Path(), func() error { return m.Save(doc) })
}

func (b *JSONBackend) Scopes(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, NewConfigError("list", b.dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		scope := strings.TrimSuffix(name, filepath.Ext(name))
		if ValidateScope(scope) == nil {
			out = append(out, scope)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *JSONBackend) Close() error { return nil }
