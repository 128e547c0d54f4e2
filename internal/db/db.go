package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/rogerio-castellano/stock-ledger/internal/config"
)

// DB is a database handle that remembers which SQL dialect it speaks.
type DB struct {
	*sql.DB
	Driver string

	// QueryTimeout bounds every single statement issued by the stores.
	QueryTimeout time.Duration
}

// Connect opens the configured database and verifies the connection.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		sqlDB, err = sql.Open("pgx", cfg.URL)
	case config.DriverSQLite:
		sqlDB, err = sql.Open("sqlite", sqliteDSN(cfg.URL))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: sqlDB, Driver: cfg.Driver, QueryTimeout: cfg.Timeout}, nil
}

// sqliteDSN adds the per-connection pragmas. They go into the DSN rather
// than a one-off Exec so that every pooled connection gets them.
func sqliteDSN(path string) string {
	params := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_time_format=sqlite&_txlock=immediate"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + params
}

// WithTimeout derives a context bounded by QueryTimeout.
func (d *DB) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.QueryTimeout)
}

// Rebind rewrites ? placeholders into the $n form postgres expects. Queries
// in this module never contain literal question marks.
func (d *DB) Rebind(query string) string {
	if d.Driver != config.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
