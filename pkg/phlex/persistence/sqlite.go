package persistence

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists products to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db       *sql.DB
	mu       sync.Mutex
	pending  map[string]map[string]record // creator -> label -> buffered write
	selected map[OutputItem]bool
	closed   bool
}

// NewSQLiteStore creates a new SQLite persistence backend.
// The path should be a file path (e.g., "./products.db") or ":memory:"
// for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS containers (
			creator TEXT NOT NULL,
			label TEXT NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (creator, label)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create containers table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			creator TEXT NOT NULL,
			label TEXT NOT NULL,
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (creator, label, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_creator_id
		ON records(creator, id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		pending: make(map[string]map[string]record),
	}, nil
}

// ConfigureTechSettings implements Persistence. The sqlite backend
// takes its path at construction; settings are accepted and ignored.
func (s *SQLiteStore) ConfigureTechSettings(TechSettings) error {
	return nil
}

// ConfigureOutputItems implements Persistence.
func (s *SQLiteStore) ConfigureOutputItems(items []OutputItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) == 0 {
		s.selected = nil
		return nil
	}
	s.selected = make(map[OutputItem]bool, len(items))
	for _, it := range items {
		s.selected[it] = true
	}
	return nil
}

// CreateContainers implements Persistence.
func (s *SQLiteStore) CreateContainers(creator string, products map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for label, typeName := range products {
		if _, err := s.db.Exec(`
			INSERT INTO containers (creator, label, type)
			VALUES (?, ?, ?)
			ON CONFLICT(creator, label) DO UPDATE SET type = excluded.type
		`, creator, label, typeName); err != nil {
			return fmt.Errorf("create container: %w", err)
		}
	}
	return nil
}

// RegisterWrite implements Persistence. Writes buffer in memory until
// CommitOutput flushes them in one transaction.
func (s *SQLiteStore) RegisterWrite(creator, label string, data []byte, typeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM containers WHERE creator = ? AND label = ?)
	`, creator, label).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check container: %w", err)
	}
	if !exists {
		return ErrNoContainer
	}
	if s.selected != nil && !s.selected[OutputItem{Creator: creator, Label: label}] {
		return nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	if s.pending[creator] == nil {
		s.pending[creator] = make(map[string]record)
	}
	s.pending[creator][label] = record{data: buf, typeName: typeName}
	return nil
}

// CommitOutput implements Persistence.
func (s *SQLiteStore) CommitOutput(creator, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	writes := s.pending[creator]
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for label, rec := range writes {
		if _, err := tx.Exec(`
			INSERT INTO records (creator, label, id, type, timestamp, data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(creator, label, id) DO UPDATE SET
				type = excluded.type,
				timestamp = excluded.timestamp,
				data = excluded.data
		`, creator, label, id, rec.typeName, now, rec.data); err != nil {
			tx.Rollback()
			return fmt.Errorf("commit output: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit output: %w", err)
	}

	delete(s.pending, creator)
	return nil
}

// Read implements Persistence.
func (s *SQLiteStore) Read(creator, label, id string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, "", ErrClosed
	}

	var data []byte
	var typeName string
	err := s.db.QueryRow(`
		SELECT data, type FROM records
		WHERE creator = ? AND label = ? AND id = ?
	`, creator, label, id).Scan(&data, &typeName)

	if err == sql.ErrNoRows {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("read record: %w", err)
	}
	return data, typeName, nil
}

// Close implements Persistence.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
