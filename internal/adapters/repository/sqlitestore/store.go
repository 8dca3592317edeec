// Package sqlitestore is a plan store backed by a single SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tapdin/planner/internal/adapters/repository"
	"github.com/tapdin/planner/internal/adapters/repository/sqlitestore/migrations"
	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
)

// Store persists plans in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock replaces the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	const op = "sqlitestore.open"
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errs.WrapKind(op, errs.ErrStore, fmt.Errorf("creating data directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrStore, fmt.Errorf("opening database: %w", err))
	}

	s := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, errs.WrapKind(op, errs.ErrStore, fmt.Errorf("running migrations: %w", err))
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies every NNN_*.up.sql file newer than the recorded version.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Create inserts a plan under a fresh UUID.
func (s *Store) Create(ctx context.Context, rec model.EventRecord, meta model.Meta) (string, error) {
	const op = "sqlitestore.create"
	id := uuid.NewString()
	created := s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, title, datetime, location_name, location_address,
			description, type, source, source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, rec.Title, formatNullableTime(rec.Datetime), rec.Location.Name,
		nullString(rec.Location.Address), rec.Description, string(rec.Type),
		nullString(string(meta.Source)), nullString(meta.SourceURL), created.UnixNano())
	if err != nil {
		return "", errs.WrapKind(op, errs.ErrStore, err)
	}
	return id, nil
}

// List returns every plan, newest first.
func (s *Store) List(ctx context.Context) ([]model.Plan, error) {
	const op = "sqlitestore.list"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, datetime, location_name, location_address,
			description, type, source, source_url, created_at
		FROM plans
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrStore, err)
	}
	defer rows.Close()

	plans := []model.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, errs.WrapKind(op, errs.ErrStore, err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.WrapKind(op, errs.ErrStore, err)
	}
	return plans, nil
}

// Delete removes the plan with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "sqlitestore.delete"
	key, err := repository.ParseID(op, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM plans WHERE id = ?", key.String())
	if err != nil {
		return errs.WrapKind(op, errs.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.WrapKind(op, errs.ErrStore, err)
	}
	if n == 0 {
		return errs.NewKind(op, errs.ErrNotFound)
	}
	return nil
}

// Count returns the number of stored plans.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans").Scan(&n); err != nil {
		return 0, errs.WrapKind("sqlitestore.count", errs.ErrStore, err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.WrapKind("sqlitestore.ping", errs.ErrStore, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

func scanPlan(rows *sql.Rows) (model.Plan, error) {
	var (
		p                 model.Plan
		datetime, address sql.NullString
		source, sourceURL sql.NullString
		eventType         string
		createdAt         int64
	)
	err := rows.Scan(&p.ID, &p.Event.Title, &datetime, &p.Event.Location.Name, &address,
		&p.Event.Description, &eventType, &source, &sourceURL, &createdAt)
	if err != nil {
		return model.Plan{}, err
	}
	p.Event.Datetime = parseNullableTime(datetime)
	p.Event.Location.Address = address.String
	p.Event.Type = model.ParseEventType(eventType)
	p.Meta = model.Meta{Source: model.Source(source.String), SourceURL: sourceURL.String}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return p, nil
}

// formatNullableTime formats a time as RFC3339 with nanoseconds, or nil.
func formatNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseNullableTime parses a nullable RFC3339 column. Unreadable values
// read back as nil, like an unparseable datetime on the way in.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
