package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Store provides connections to one database.
type Store struct {
	db     *sqlx.DB
	dict   sql.Dictionary
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDictionary overrides the dictionary chosen from the driver.
func WithDictionary(d sql.Dictionary) Option {
	return func(s *Store) { s.dict = d }
}

// Open creates or opens a SQLite database at path. ":memory:" opens a
// private in-memory database shared by the store's connections.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	return OpenDriver("sqlite3", sqliteDSN(path), opts...)
}

// OpenDriver opens a database through any registered driver ("sqlite3" or
// "postgres"). The dictionary defaults to the driver's dialect.
func OpenDriver(driver, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.dict == nil {
		if s.dict, err = DictionaryFor(driver); err != nil {
			db.Close()
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// DictionaryFor returns the dialect of a driver name.
func DictionaryFor(driver string) (sql.Dictionary, error) {
	switch strings.ToLower(driver) {
	case "sqlite3", "sqlite":
		return sql.NewSQLiteDictionary(), nil
	case "postgres", "postgresql", "pq":
		return sql.NewPostgresDictionary(), nil
	case "generic":
		return sql.NewBaseDictionary(), nil
	}
	return nil, fmt.Errorf("no dictionary for driver %q", driver)
}

// sqliteDSN applies the required pragmas through connection parameters so
// every pooled connection gets them.
func sqliteDSN(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "1")
	if path == ":memory:" {
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "file:openjpa-" + uuid.NewString() + "?" + params.Encode()
	}
	return "file:" + path + "?" + params.Encode()
}

// Close closes the database handle.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle for direct queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dictionary returns the store's dialect.
func (s *Store) Dictionary() sql.Dictionary {
	return s.dict
}

// Connect checks out a connection. The caller, usually a result, closes it.
func (s *Store) Connect(ctx context.Context) (sql.Conn, error) {
	c, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &conn{c: c}, nil
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.Get(&value, fmt.Sprintf("PRAGMA %s", name)); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !strings.EqualFold(value, expected) {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

type conn struct {
	c *sqlx.Conn
}

func (c *conn) Prepare(ctx context.Context, query string) (sql.Stmt, error) {
	st, err := c.c.PreparexContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stmt{st: st}, nil
}

func (c *conn) Close() error { return c.c.Close() }

type stmt struct {
	st *sqlx.Stmt
}

func (s *stmt) Query(ctx context.Context, args ...any) (sql.RowSet, error) {
	rows, err := s.st.QueryxContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	return sql.NewRowsRowSet(rows.Rows)
}

func (s *stmt) Close() error { return s.st.Close() }

var _ sql.Store = (*Store)(nil)
