// Package state persists which services are starting or started, and in
// which runtime each service runs, in an embedded SQLite database.
//
// Every CLI invocation is its own process, so the database is the only
// shared state between them; SQLite transactions provide the isolation.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"devctl/pkg/logging"
)

// Table is one of the service state tables.
type Table string

const (
	StartingServices Table = "starting_services"
	StartedServices  Table = "started_services"
)

// Tables lists every service state table.
var Tables = []Table{StartingServices, StartedServices}

func (t Table) valid() bool {
	return t == StartingServices || t == StartedServices
}

// ServiceRuntime says whether a service runs in containers or from its own checkout.
type ServiceRuntime string

const (
	RuntimeLocal         ServiceRuntime = "local"
	RuntimeContainerized ServiceRuntime = "containerized"
)

// ParseRuntime validates a runtime name.
func ParseRuntime(s string) (ServiceRuntime, error) {
	switch ServiceRuntime(s) {
	case RuntimeLocal, RuntimeContainerized:
		return ServiceRuntime(s), nil
	}
	return "", fmt.Errorf("invalid runtime %q: must be %q or %q", s, RuntimeLocal, RuntimeContainerized)
}

// ErrInvalidTable is returned for a table name outside Tables.
var ErrInvalidTable = errors.New("invalid state table")

const schema = `
CREATE TABLE IF NOT EXISTS starting_services (
	service_name TEXT NOT NULL,
	mode TEXT NOT NULL,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (service_name, mode)
);
CREATE TABLE IF NOT EXISTS started_services (
	service_name TEXT NOT NULL,
	mode TEXT NOT NULL,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (service_name, mode)
);
CREATE TABLE IF NOT EXISTS service_runtime (
	service_name TEXT PRIMARY KEY,
	runtime TEXT NOT NULL
);
`

// Store is the handle on the state database. One Store is opened per process
// and passed to everything that needs it.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state database %s: %w", path, err)
	}
	logging.Debug("State", "Opened state database %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpdateServiceEntry records (service, mode) in table. Recording an existing pair is a no-op.
func (s *Store) UpdateServiceEntry(ctx context.Context, service, mode string, table Table) error {
	if !table.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidTable, table)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+string(table)+" (service_name, mode) VALUES (?, ?)", service, mode)
	if err != nil {
		return fmt.Errorf("failed to record %s/%s in %s: %w", service, mode, table, err)
	}
	return nil
}

// RemoveServiceEntry deletes every mode of service from table.
func (s *Store) RemoveServiceEntry(ctx context.Context, service string, table Table) error {
	if !table.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidTable, table)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+string(table)+" WHERE service_name = ?", service); err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", service, table, err)
	}
	return nil
}

// GetServiceEntries returns the distinct service names in table, oldest first.
func (s *Store) GetServiceEntries(ctx context.Context, table Table) ([]string, error) {
	if !table.valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTable, table)
	}
	return s.queryStrings(ctx,
		"SELECT service_name FROM "+string(table)+" GROUP BY service_name ORDER BY MIN(rowid)")
}

// GetActiveModesForService returns the modes of service recorded in table, oldest first.
func (s *Store) GetActiveModesForService(ctx context.Context, service string, table Table) ([]string, error) {
	if !table.valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTable, table)
	}
	return s.queryStrings(ctx,
		"SELECT mode FROM "+string(table)+" WHERE service_name = ? ORDER BY rowid", service)
}

// GetServiceRuntime returns the runtime of service, containerized when none was set.
func (s *Store) GetServiceRuntime(ctx context.Context, service string) (ServiceRuntime, error) {
	var runtime string
	err := s.db.QueryRowContext(ctx,
		"SELECT runtime FROM service_runtime WHERE service_name = ?", service).Scan(&runtime)
	if errors.Is(err, sql.ErrNoRows) {
		return RuntimeContainerized, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read runtime of %s: %w", service, err)
	}
	return ServiceRuntime(runtime), nil
}

// UpdateServiceRuntime stores the runtime of service.
func (s *Store) UpdateServiceRuntime(ctx context.Context, service string, runtime ServiceRuntime) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO service_runtime (service_name, runtime) VALUES (?, ?)
		 ON CONFLICT(service_name) DO UPDATE SET runtime = excluded.runtime`, service, string(runtime))
	if err != nil {
		return fmt.Errorf("failed to set runtime of %s: %w", service, err)
	}
	return nil
}

// GetServicesByRuntime returns the services explicitly set to runtime.
func (s *Store) GetServicesByRuntime(ctx context.Context, runtime ServiceRuntime) ([]string, error) {
	return s.queryStrings(ctx,
		"SELECT service_name FROM service_runtime WHERE runtime = ? ORDER BY service_name", string(runtime))
}

// ClearState empties every table.
func (s *Store) ClearState(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		"DELETE FROM starting_services",
		"DELETE FROM started_services",
		"DELETE FROM service_runtime",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear state: %w", err)
		}
	}
	return tx.Commit()
}

// Destroy closes the store and removes the database file with its WAL companions.
func (s *Store) Destroy() error {
	if err := s.db.Close(); err != nil {
		logging.Warn("State", "closing state database before removal: %v", err)
	}
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	logging.Info("State", "Removed state database %s", s.path)
	return nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("state query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("state query failed: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
