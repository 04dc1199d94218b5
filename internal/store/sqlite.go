// ABOUTME: SQLite implementation of the entity store using database/sql
// ABOUTME: Handles open, schema creation, migrations, pool access and shared helpers

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/2389/reqstore/internal/bodystore"
	"github.com/2389/reqstore/internal/metrics"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// timeLayout is fixed-width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// BodyRemover deletes response body files by the path stored on the response.
type BodyRemover interface {
	Remove(ctx context.Context, path string) error
}

// SQLiteStore persists every entity kind in one SQLite database.
type SQLiteStore struct {
	// mu guards db and last. Operations hold it only long enough to
	// take the pool handle, so the engine still sees concurrent callers.
	mu   sync.Mutex
	db   *sql.DB
	last time.Time

	logger   *slog.Logger
	notifier Notifier
	bodies   BodyRemover
	metrics  *metrics.Metrics
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithNotifier sets where committed mutations are published.
func WithNotifier(n Notifier) Option {
	return func(s *SQLiteStore) { s.notifier = n }
}

// WithBodyRemover sets how response body files are cleaned up.
func WithBodyRemover(r BodyRemover) Option {
	return func(s *SQLiteStore) { s.bodies = r }
}

// WithMetrics records operation outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SQLiteStore) { s.metrics = m }
}

// WithLogger overrides the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l.With("component", "store") }
}

// NewSQLiteStore opens the database at path with the pure Go driver.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	return Open(DriverModernc, path, opts...)
}

// Open opens the database at path with the named driver.
// The schema is created if it doesn't exist and pending migrations are applied.
// Parent directories are created if needed.
func Open(driver, path string, opts ...Option) (*SQLiteStore, error) {
	dsn, err := buildDSN(driver, path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		logger:   slog.Default().With("component", "store"),
		notifier: nopNotifier{},
		bodies:   bodystore.FS{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// buildDSN sets WAL, foreign keys and a busy timeout on every pooled
// connection. The two drivers spell these differently.
func buildDSN(driver, path string) (string, error) {
	switch driver {
	case DriverModernc:
		return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	case DriverMattn:
		return "file:" + path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			variables TEXT NOT NULL DEFAULT '[]',
			setting_validate_certificates INTEGER NOT NULL DEFAULT 1,
			setting_follow_redirects INTEGER NOT NULL DEFAULT 1,
			setting_request_timeout INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS environments (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			name TEXT NOT NULL,
			variables TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_environments_workspace ON environments(workspace_id);

		CREATE TABLE IF NOT EXISTS cookie_jars (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			name TEXT NOT NULL,
			cookies TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_cookie_jars_workspace ON cookie_jars(workspace_id);

		CREATE TABLE IF NOT EXISTS folders (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			folder_id TEXT REFERENCES folders(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_priority REAL NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_folders_workspace ON folders(workspace_id);
		CREATE INDEX IF NOT EXISTS idx_folders_folder ON folders(folder_id);

		CREATE TABLE IF NOT EXISTS http_requests (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			folder_id TEXT REFERENCES folders(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_priority REAL NOT NULL DEFAULT 0,
			url TEXT NOT NULL,
			url_parameters TEXT NOT NULL DEFAULT '[]',
			method TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '{}',
			body_type TEXT,
			authentication TEXT NOT NULL DEFAULT '{}',
			authentication_type TEXT,
			headers TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_http_requests_workspace ON http_requests(workspace_id);
		CREATE INDEX IF NOT EXISTS idx_http_requests_folder ON http_requests(folder_id);

		CREATE TABLE IF NOT EXISTS http_responses (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			request_id TEXT NOT NULL REFERENCES http_requests(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			error TEXT,
			url TEXT NOT NULL,
			content_length INTEGER,
			version TEXT,
			elapsed INTEGER NOT NULL DEFAULT 0,
			elapsed_headers INTEGER NOT NULL DEFAULT 0,
			remote_addr TEXT,
			status INTEGER NOT NULL DEFAULT 0,
			status_reason TEXT,
			body_path TEXT,
			headers TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_http_responses_request ON http_responses(request_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_http_responses_workspace ON http_responses(workspace_id);

		CREATE TABLE IF NOT EXISTS grpc_requests (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			folder_id TEXT REFERENCES folders(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_priority REAL NOT NULL DEFAULT 0,
			url TEXT NOT NULL,
			service TEXT,
			method TEXT,
			message TEXT NOT NULL DEFAULT '',
			proto_files TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_grpc_requests_workspace ON grpc_requests(workspace_id);
		CREATE INDEX IF NOT EXISTS idx_grpc_requests_folder ON grpc_requests(folder_id);

		CREATE TABLE IF NOT EXISTS grpc_connections (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			request_id TEXT NOT NULL REFERENCES grpc_requests(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			service TEXT NOT NULL,
			method TEXT NOT NULL,
			elapsed INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_grpc_connections_request ON grpc_connections(request_id, created_at);

		CREATE TABLE IF NOT EXISTS grpc_messages (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			request_id TEXT NOT NULL REFERENCES grpc_requests(id) ON DELETE CASCADE,
			connection_id TEXT NOT NULL REFERENCES grpc_connections(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			message TEXT NOT NULL,
			is_server INTEGER NOT NULL DEFAULT 0,
			is_info INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_grpc_messages_connection ON grpc_messages(connection_id, created_at);

		CREATE TABLE IF NOT EXISTS settings (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			theme TEXT NOT NULL DEFAULT 'system',
			appearance TEXT NOT NULL DEFAULT 'system',
			update_channel TEXT NOT NULL DEFAULT 'stable'
		);

		CREATE TABLE IF NOT EXISTS key_values (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies additive schema changes to databases created by
// older builds. These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{"workspaces", "setting_request_timeout", `ALTER TABLE workspaces ADD COLUMN setting_request_timeout INTEGER NOT NULL DEFAULT 0`},
		{"workspaces", "setting_follow_redirects", `ALTER TABLE workspaces ADD COLUMN setting_follow_redirects INTEGER NOT NULL DEFAULT 1`},
		{"workspaces", "setting_validate_certificates", `ALTER TABLE workspaces ADD COLUMN setting_validate_certificates INTEGER NOT NULL DEFAULT 1`},
		{"http_requests", "authentication_type", `ALTER TABLE http_requests ADD COLUMN authentication_type TEXT`},
		{"http_requests", "url_parameters", `ALTER TABLE http_requests ADD COLUMN url_parameters TEXT NOT NULL DEFAULT '[]'`},
		{"http_responses", "elapsed_headers", `ALTER TABLE http_responses ADD COLUMN elapsed_headers INTEGER NOT NULL DEFAULT 0`},
		{"http_responses", "remote_addr", `ALTER TABLE http_responses ADD COLUMN remote_addr TEXT`},
		{"http_responses", "version", `ALTER TABLE http_responses ADD COLUMN version TEXT`},
		{"settings", "update_channel", `ALTER TABLE settings ADD COLUMN update_channel TEXT NOT NULL DEFAULT 'stable'`},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking column %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", m.table, m.column, err)
		}
		s.logger.Info("applied migration", "table", m.table, "column", m.column)
	}

	return nil
}

// Close closes the database connection. Later operations fail with ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.logger.Info("SQLite store closed")
	return err
}

// pool returns the shared connection pool.
func (s *SQLiteStore) pool() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// now returns a strictly increasing UTC timestamp so updatedAt always
// advances, even for writes inside the same clock tick.
func (s *SQLiteStore) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, query, args...)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// getOne runs a single-row query and maps sql.ErrNoRows to ErrNotFound.
func getOne[T any](ctx context.Context, s *SQLiteStore, what string, scan func(scanner) (T, error), query string, args ...any) (T, error) {
	var zero T
	db, err := s.pool()
	if err != nil {
		return zero, err
	}
	v, err := scan(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("getting %s: %w", what, err)
	}
	return v, nil
}

// listAll runs a multi-row query and scans every row.
func listAll[T any](ctx context.Context, s *SQLiteStore, what string, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", what, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", what, err)
	}
	return out, nil
}

// deleteRow removes a single row by id.
func (s *SQLiteStore) deleteRow(ctx context.Context, table, id string) error {
	if _, err := s.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) upserted(m Model) {
	s.logger.Debug("upserted model", "model", m.ModelKind(), "id", m.ModelID())
	s.metrics.EventPublished(ChannelUpserted, m.ModelKind())
	s.notifier.NotifyUpserted(m)
}

func (s *SQLiteStore) deleted(m Model) {
	s.logger.Debug("deleted model", "model", m.ModelKind(), "id", m.ModelID())
	s.metrics.EventPublished(ChannelDeleted, m.ModelKind())
	s.notifier.NotifyDeleted(m)
}

// observe records an operation's latency and outcome. Call it deferred
// with a pointer to the named error result.
func (s *SQLiteStore) observe(kind, op string, start time.Time, err *error) {
	s.metrics.ObserveOp(kind, op, *err, time.Since(start))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// Rows written by SQLite's CURRENT_TIMESTAMP default.
		t, err = time.Parse(time.DateTime, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", v, err)
		}
	}
	return t.UTC(), nil
}

// stamps parses a created/updated pair.
func stamps(created, updated string) (time.Time, time.Time, error) {
	c, err := parseTime(created)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	u, err := parseTime(updated)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return c, u, nil
}

// encodeJSON serializes a composite column. Nil slices are stored as [].
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json column: %w", err)
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

// decodeList reads a JSON array column. Empty arrays decode to nil.
func decodeList[T any](raw string) ([]T, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding json column: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
