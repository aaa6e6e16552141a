// Package postgres implements the storage contracts on top of a
// pgxpool connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carscout/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
    id              BIGSERIAL PRIMARY KEY,
    source          TEXT NOT NULL,
    external_id     TEXT NOT NULL,
    url             TEXT NOT NULL,
    make            TEXT NOT NULL DEFAULT 'Unknown',
    model           TEXT NOT NULL DEFAULT 'Unknown',
    grade           TEXT,
    color           TEXT,
    year            INT,
    price_jpy       BIGINT,
    price_rub       BIGINT,
    total_price_jpy BIGINT,
    total_price_rub BIGINT,
    mileage_km      BIGINT,
    prefecture      TEXT,
    shop_name       TEXT,
    shop_address    TEXT,
    shop_phone      TEXT,
    transmission    TEXT,
    drive_type      TEXT,
    fuel            TEXT,
    steering        TEXT,
    body_type       TEXT,
    engine_cc       BIGINT,
    scraped_at      TIMESTAMPTZ,
    last_seen_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    deleted_at      TIMESTAMPTZ,
    UNIQUE (source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_active    ON listings (source, is_active);
CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings (source, last_seen_at);

CREATE TABLE IF NOT EXISTS parse_failures (
    id            BIGSERIAL PRIMARY KEY,
    url           TEXT NOT NULL,
    external_id   TEXT,
    error_type    TEXT NOT NULL,
    message       TEXT,
    status_code   INT,
    debug_snippet TEXT,
    unavailable   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Connect opens a pool, verifies connectivity and ensures the schema.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return pool, nil
}

func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
