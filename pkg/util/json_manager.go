package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONManager reads and writes one JSON file. Writes go to a temp file in the
// same directory followed by a rename, so readers never observe a torn file.
type JSONManager struct {
	filePath string
	mu       sync.RWMutex
}

func NewJSONManager(filePath string) *JSONManager {
	return &JSONManager{filePath: filePath}
}

func (m *JSONManager) Path() string { return m.filePath }

// Load unmarshals the file into data. A missing file leaves data untouched and
// returns os.ErrNotExist wrapped so callers can tell "empty" from "broken".
func (m *JSONManager) Load(data any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := os.ReadFile(m.filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", m.filePath, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("unmarshal %s: %w", m.filePath, err)
	}
	return nil
}

// Save marshals data with indentation and replaces the file atomically.
func (m *JSONManager) Save(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.filePath, err)
	}
	raw = append(raw, '\n')

	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.filePath); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", m.filePath, err)
	}
	return nil
}

// SafeJoin joins rel onto base and refuses results that escape base.
func SafeJoin(base, rel string) (string, error) {
	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, rel)
	r, err := filepath.Rel(cleanBase, joined)
	if err != nil || r == ".." || len(r) >= 3 && r[:3] == ".."+string(filepath.Separator) || filepath.IsAbs(r) {
		return "", fmt.Errorf("invalid path: %s", rel)
	}
	return joined, nil
}
