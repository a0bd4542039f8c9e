package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects the backend and pool sizing.
type Options struct {
	Driver          string
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	// SkipMigrations leaves the schema untouched on open.
	SkipMigrations bool
}

// Store owns the database handle and hands out repositories.
type Store struct {
	repos
	db   *sql.DB
	drv  *entsql.Driver
	pool *pgxpool.Pool
}

// Open connects to the configured backend and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var (
		s   = &Store{}
		err error
	)
	switch opts.Driver {
	case "", DriverSQLite:
		s.db, err = openSQLite(opts.DSN)
		if err != nil {
			return nil, err
		}
		s.drv = entsql.OpenDB(dialect.SQLite, s.db)
	case DriverPostgres:
		s.pool, err = openPool(ctx, opts)
		if err != nil {
			return nil, err
		}
		s.db = stdlib.OpenDBFromPool(s.pool)
		s.drv = entsql.OpenDB(dialect.Postgres, s.db)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	s.repos = repos{c: conn{eq: s.drv, dialect: s.drv.Dialect(), drv: s.drv}}

	if !opts.SkipMigrations {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps pragmas in effect and avoids shared-cache
	// table locks on in-memory databases.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return db, nil
}

func openPool(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.ConnMaxLifetime
	}
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.BeforeAcquire = func(ctx context.Context, c *pgx.Conn) bool {
		if err := c.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Unhealthy connection detected")
			return false
		}
		return true
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name of the backend.
func (s *Store) Dialect() string {
	return s.drv.Dialect()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	err := s.drv.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// Tx exposes the same repositories bound to a single transaction.
type Tx struct {
	repos
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.c.withTx(ctx, func(c conn) error {
		return fn(&Tx{repos: repos{c: c}})
	})
}

// applyPragmas configures SQLite for a single-writer workload.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite file path in priority order:
// 1. IGCSE_DB environment variable
// 2. $XDG_DATA_HOME/igcseprep/igcseprep.db
// 3. ~/.local/share/igcseprep/igcseprep.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("IGCSE_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "igcseprep", "igcseprep.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || isNotFound(err)
}
