package app

import (
	"context"
	"fmt"

	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/storage"
)

// OpenBackend opens the persistence backend selected by s.Store. The SQL
// backends migrate their schema before returning.
func OpenBackend(ctx context.Context, s Settings) (files.Backend, error) {
	switch s.Store {
	case StoreMemory:
		return files.NewMemoryBackend(), nil
	case StoreSQLite:
		if err := s.Paths().Ensure(); err != nil {
			return nil, fmt.Errorf("create data directories: %w", err)
		}
		b, err := storage.NewSQLiteBackend(s.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return b, nil
	case StorePostgres:
		b, err := storage.NewPostgresBackend(ctx, s.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres backend: %w", err)
		}
		return b, nil
	case StoreJSON, "":
		if err := s.Paths().Ensure(); err != nil {
			return nil, fmt.Errorf("create data directories: %w", err)
		}
		b, err := files.NewJSONBackend(s.Paths().ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("open json backend: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown store %q", s.Store)
	}
}

// MigrationTarget returns the dialect and DSN the migrate command works on.
func MigrationTarget(s Settings) (storage.Dialect, string, error) {
	switch s.Store {
	case StoreSQLite:
		if err := s.Paths().Ensure(); err != nil {
			return "", "", fmt.Errorf("create data directories: %w", err)
		}
		return storage.DialectSQLite, s.SQLitePath(), nil
	case StorePostgres:
		return storage.DialectPostgres, s.DatabaseURL, nil
	default:
		return "", "", fmt.Errorf("store %q has no schema to migrate", s.Store)
	}
}
