package util

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONManagerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "guild.json")
	m := NewJSONManager(path)

	in := map[string]any{"general": map[string]any{"prefix": "!"}, "count": 3}
	if err := m.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out map[string]any
	if err := m.Load(&out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if out["count"] != json.Number("3") {
		t.Fatalf("expected json.Number 3, got %#v", out["count"])
	}
	general, _ := out["general"].(map[string]any)
	if general["prefix"] != "!" {
		t.Fatalf("unexpected general section: %#v", out["general"])
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file after save, got %d entries", len(entries))
	}
}

func TestJSONManagerLoadMissing(t *testing.T) {
	m := NewJSONManager(filepath.Join(t.TempDir(), "absent.json"))
	var out map[string]any
	err := m.Load(&out)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()
	if _, err := SafeJoin(base, "g1.json"); err != nil {
		t.Fatalf("expected valid join: %v", err)
	}
	if _, err := SafeJoin(base, "../escape.json"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestResolvePathsOverride(t *testing.T) {
	p := ResolvePaths("guildpanel", "/srv/panel")
	if p.ConfigDir != filepath.Join("/srv/panel", "config") || p.LogDir != filepath.Join("/srv/panel", "logs") {
		t.Fatalf("unexpected paths: %+v", p)
	}
	if got := sanitizeAppName(" a/b:c "); got != "a-b-c" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}
