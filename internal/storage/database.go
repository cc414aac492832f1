package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite" // pure-Go SQLite driver ("sqlite")
	_ "github.com/mattn/go-sqlite3"   // cgo SQLite driver ("sqlite3")
)

// Driver names a registered SQLite driver.
type Driver string

const (
	DriverCgo  Driver = "sqlite3"
	DriverPure Driver = "sqlite"
)

// Database handles all database operations.
type Database struct {
	db     *sql.DB
	driver Driver
	mu     sync.RWMutex
}

// NewDatabase opens a database file with the given driver.
func NewDatabase(driver Driver, path string) (*Database, error) {
	var dsn string
	switch driver {
	case DriverCgo:
		dsn = fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	case DriverPure:
		dsn = path
	default:
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &Database{db: db, driver: driver}, nil
}

// Initialize creates tables.
func (d *Database) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.driver == DriverPure {
		if _, err := d.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to set journal mode: %w", err)
		}
	}

	if _, err := d.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// LoadResponses retrieves every stored response.
func (d *Database) LoadResponses() ([]*StoredResponse, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`SELECT fingerprint, status_line, status_code, headers_json, body, stored_at FROM responses`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoredResponse
	for rows.Next() {
		var (
			r        StoredResponse
			storedAt int64
		)
		if err := rows.Scan(&r.Fingerprint, &r.StatusLine, &r.StatusCode, &r.HeadersJSON, &r.Body, &storedAt); err != nil {
			return nil, err
		}
		r.StoredAt = time.Unix(0, storedAt).UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ReplaceResponses rewrites the whole table in one transaction.
func (d *Database) ReplaceResponses(responses []*StoredResponse) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM responses`); err != nil {
		return fmt.Errorf("failed to clear responses: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO responses (fingerprint, status_line, status_code, headers_json, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range responses {
		if _, err := stmt.Exec(r.Fingerprint, r.StatusLine, r.StatusCode, r.HeadersJSON, r.Body, r.StoredAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert %s: %w", r.Fingerprint, err)
		}
	}

	return tx.Commit()
}

// CountResponses returns the number of stored responses.
func (d *Database) CountResponses() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&n)
	return n, err
}
