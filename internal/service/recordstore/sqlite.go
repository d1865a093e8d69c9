package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
)

const backendSQLite = "sqlite"

// SQLiteStore is a local append-only table with the same semantics as the
// spreadsheet: rows come back in insertion order and are never updated.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenSQLite opens (or creates) the database file and runs migrations.
func OpenSQLite(path string, timeout time.Duration) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, timeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	// single writer keeps insertion order equal to seq order
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	store := &SQLiteStore{db: db, timeout: timeout}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL,
		appended_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// FetchAll returns every row in append order.
func (s *SQLiteStore) FetchAll(ctx context.Context) (records []helpdesk.Record, err error) {
	started := time.Now()
	defer func() { observe(backendSQLite, "fetch_all", started, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		var rec helpdesk.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("%w: row payload: %v", ErrStoreFormat, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

// Append inserts one row.
func (s *SQLiteStore) Append(ctx context.Context, record helpdesk.Record) (err error) {
	started := time.Now()
	defer func() { observe(backendSQLite, "append", started, err) }()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (payload, appended_at) VALUES (?, ?)`,
		string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStoreUnavailable, err)
	}
	return nil
}
