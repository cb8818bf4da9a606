package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// PostgresBackend stores guild documents as JSONB rows behind a pgx pool.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend migrates the schema and opens a connection pool.
func NewPostgresBackend(ctx context.Context, databaseURL string) (*PostgresBackend, error) {
	if err := MigrateUp(DialectPostgres, databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.DatabaseLogger().Info("Postgres config backend ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) Name() string { return "postgres" }

func (b *PostgresBackend) Load(ctx context.Context, scope string) (document.Map, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx, `SELECT document FROM guild_configs WHERE scope = $1`, scope).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, files.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select config %s: %w", scope, err)
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", scope, err)
	}
	return doc, nil
}

func (b *PostgresBackend) Save(ctx context.Context, scope string, doc document.Map) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", scope, err)
	}

	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		var revision int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO guild_configs (scope, document, revision, updated_at)
             VALUES ($1, $2::jsonb, 1, NOW())
             ON CONFLICT (scope) DO UPDATE SET
               document = EXCLUDED.document,
               revision = guild_configs.revision + 1,
               updated_at = NOW()
             RETURNING revision`,
			scope, string(raw),
		).Scan(&revision); err != nil {
			return fmt.Errorf("upsert config %s: %w", scope, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO guild_config_history (scope, revision, document) VALUES ($1, $2, $3::jsonb)`,
			scope, revision, string(raw),
		); err != nil {
			return fmt.Errorf("append history %s: %w", scope, err)
		}
		return nil
	})
}

func (b *PostgresBackend) Scopes(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT scope FROM guild_configs ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
