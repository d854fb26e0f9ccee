package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"

	"github.com/roach88/rollbook/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// driverName is go-sqlite3 with the fold() function registered on every connection.
const driverName = "sqlite3_rollbook"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", foldText, true)
		},
	})
}

// foldText is the Go side of the fold() SQL function.
func foldText(s string) string {
	return cases.Fold().String(s)
}

// Store provides durable storage for students, users and edit requests.
type Store struct {
	db    *sql.DB
	clock record.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to derive ages on insert and update.
// Default: record.SystemClock.
func WithClock(c record.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas, the schema and additive column migrations.
//
// Every failure is returned as a record.Error with ErrCodeStorageInit.
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, record.WrapError(record.ErrCodeStorageInit, "open database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, record.WrapError(record.ErrCodeStorageInit, "connect to database", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, record.WrapError(record.ErrCodeStorageInit, "apply pragmas", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, record.WrapError(record.ErrCodeStorageInit, "apply schema", err)
	}

	s := &Store{db: db, clock: record.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Clock returns the clock the store derives ages with.
func (s *Store) Clock() record.Clock {
	return s.clock
}

// querier is the subset of *sql.DB and *sql.Tx the statement helpers need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
