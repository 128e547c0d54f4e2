package db

import (
	"context"
	"fmt"

	"github.com/rogerio-castellano/stock-ledger/internal/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'guest' CHECK (role IN ('admin', 'guest')),
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT users_username_key UNIQUE (username)
);

CREATE TABLE IF NOT EXISTS products (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    unit        TEXT NOT NULL,
    min_stock   BIGINT NOT NULL DEFAULT 0 CHECK (min_stock >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stock_movements (
    id         BIGSERIAL PRIMARY KEY,
    product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
    type       TEXT NOT NULL CHECK (type IN ('in', 'out')),
    quantity   BIGINT NOT NULL CHECK (quantity > 0),
    date       TIMESTAMPTZ NOT NULL DEFAULT now(),
    notes      TEXT NOT NULL DEFAULT '',
    created_by BIGINT NOT NULL REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_stock_movements_product ON stock_movements(product_id);
CREATE INDEX IF NOT EXISTS idx_stock_movements_date ON stock_movements(date);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'guest' CHECK (role IN ('admin', 'guest')),
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    unit        TEXT NOT NULL,
    min_stock   INTEGER NOT NULL DEFAULT 0 CHECK (min_stock >= 0),
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_movements (
    id         INTEGER PRIMARY KEY,
    product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
    type       TEXT NOT NULL CHECK (type IN ('in', 'out')),
    quantity   INTEGER NOT NULL CHECK (quantity > 0),
    date       DATETIME NOT NULL,
    notes      TEXT NOT NULL DEFAULT '',
    created_by INTEGER NOT NULL REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_stock_movements_product ON stock_movements(product_id);
CREATE INDEX IF NOT EXISTS idx_stock_movements_date ON stock_movements(date);
`

// Migrate creates every table and index that does not exist yet. It is safe
// to run on each start.
func Migrate(ctx context.Context, d *DB) error {
	schema := sqliteSchema
	if d.Driver == config.DriverPostgres {
		schema = postgresSchema
	}
	if _, err := d.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
