package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// SQLiteBackend keeps guild documents in an embedded SQLite database through
// modernc.org/sqlite, so builds stay CGO-free. Every save also appends the
// new revision to guild_config_history.
type SQLiteBackend struct {
	dbPath string
	db     *sql.DB
	now    func() time.Time
}

// NewSQLiteBackend opens dbPath, applies pragmas and runs migrations.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := MigrateUp(DialectSQLite, dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA synchronous=NORMAL;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	// A single writer connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	log.DatabaseLogger().Info("SQLite config backend ready", "path", dbPath)
	return &SQLiteBackend{dbPath: dbPath, db: db, now: time.Now}, nil
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Load(ctx context.Context, scope string) (document.Map, error) {
	var raw string
	err := b.db.QueryRowContext(ctx, `SELECT document FROM guild_configs WHERE scope = ?`, scope).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, files.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select config %s: %w", scope, err)
	}
	doc, err := document.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", scope, err)
	}
	return doc, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, scope string, doc document.Map) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", scope, err)
	}
	now := b.now().UTC()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var revision int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO guild_configs (scope, document, revision, updated_at)
         VALUES (?, ?, 1, ?)
         ON CONFLICT(scope) DO UPDATE SET
           document=excluded.document,
           revision=guild_configs.revision + 1,
           updated_at=excluded.updated_at
         RETURNING revision`,
		scope, string(raw), now,
	).Scan(&revision)
	if err != nil {
		return fmt.Errorf("upsert config %s: %w", scope, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO guild_config_history (scope, revision, document, saved_at) VALUES (?, ?, ?, ?)`,
		scope, revision, string(raw), now,
	); err != nil {
		return fmt.Errorf("append history %s: %w", scope, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit config %s: %w", scope, err)
	}
	return nil
}

func (b *SQLiteBackend) Scopes(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT scope FROM guild_configs ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Revision is one historical version of a scope's document.
type Revision struct {
	Revision int64
	Document document.Map
	SavedAt  time.Time
}

// History returns up to limit revisions for scope, newest first.
func (b *SQLiteBackend) History(ctx context.Context, scope string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT revision, document, saved_at FROM guild_config_history
         WHERE scope = ? ORDER BY revision DESC LIMIT ?`, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", scope, err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var (
			rev Revision
			raw string
		)
		if err := rows.Scan(&rev.Revision, &raw, &rev.SavedAt); err != nil {
			return nil, err
		}
		if rev.Document, err = document.Parse([]byte(raw)); err != nil {
			return nil, fmt.Errorf("decode history %s@%d: %w", scope, rev.Revision, err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
