// Package store persists candidates, jobs and applications in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite is the default embedded driver
	DriverSQLite = "sqlite"
	// DriverPostgres selects github.com/lib/pq
	DriverPostgres = "postgres"

	schemaVersion = 1

	defaultListLimit = 100
	maxListLimit     = 1000

	pqUniqueViolation = "23505"
)

var (
	//go:embed sql/*
	f embed.FS

	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record violates a uniqueness constraint
	ErrConflict = errors.New("conflict")

	errDBNotInitialized = errors.New("database not initialized")
)

// Store wraps the database handle
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
	now    func() time.Time
}

// ListOptions pages list queries
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Open connects to the database and applies the schema. Opening an existing database is a no-op migration.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if dsn == "" {
		return nil, errors.New("database dsn not specified")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps writes serialized and :memory: databases shared
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	if s.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	b, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("failed to read the schema creation file: %w", err)
	}

	for _, stmt := range strings.Split(string(b), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create database schema: %w", err)
		}
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version < schemaVersion {
		if _, err := s.exec(ctx, "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", schemaVersion, formatTime(s.now())); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		s.logger.Debug("db schema created", zap.String("driver", s.driver), zap.Int("version", schemaVersion))
	}
	return nil
}

// rebind converts ? placeholders to $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.execOn(ctx, s.db, query, args...)
}

func (s *Store) execOn(ctx context.Context, e execer, query string, args ...any) (sql.Result, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	res, err := e.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// expectOne turns an update or delete that touched nothing into ErrNotFound
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func rollbackTransaction(tx *sql.Tx, logger *zap.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("failed to rollback transaction", zap.Error(err))
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}
