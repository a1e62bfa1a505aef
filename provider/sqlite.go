package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/gridsoup/renderer"
)

// SQLiteStore keeps genomes in a SQLite table. As a provider it cycles
// through stored genomes in insertion order; as a sink it stores the
// genomes a run found worth keeping.
type SQLiteStore struct {
	path string

	mu      sync.RWMutex
	db      *sql.DB
	lastID  int64
	current string
}

// NewSQLiteStore creates a store for the database at path. Call Init before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the genomes table.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS genomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			digits TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		_ = db.Close()
		return fmt.Errorf("creating genomes table: %w", err)
	}

	s.db = db
	return nil
}

// SaveGenomes appends genomes in one transaction.
func (s *SQLiteStore) SaveGenomes(ctx context.Context, genomes []string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO genomes (digits) VALUES (?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range genomes {
		if _, err := stmt.ExecContext(ctx, g); err != nil {
			return fmt.Errorf("inserting genome: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored genomes.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM genomes`).Scan(&n)
	return n, err
}

// RequestNewData loads the genome after the current one, wrapping to the
// first. It returns ErrNoData when the table is empty.
func (s *SQLiteStore) RequestNewData(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, digits, err := nextGenome(ctx, db, s.lastID)
	if errors.Is(err, sql.ErrNoRows) && s.lastID > 0 {
		id, digits, err = nextGenome(ctx, db, 0)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoData
	}
	if err != nil {
		return fmt.Errorf("loading genome: %w", err)
	}
	s.lastID, s.current = id, digits
	return nil
}

func nextGenome(ctx context.Context, db *sql.DB, after int64) (int64, string, error) {
	var id int64
	var digits string
	err := db.QueryRowContext(ctx,
		`SELECT id, digits FROM genomes WHERE id > ? ORDER BY id LIMIT 1`, after,
	).Scan(&id, &digits)
	return id, digits, err
}

// RawData returns the genome loaded by the last RequestNewData.
func (s *SQLiteStore) RawData() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return "", ErrNoData
	}
	return s.current, nil
}

// PreparedData returns the loaded genome as a color.
func (s *SQLiteStore) PreparedData() (renderer.RGB, error) {
	raw, err := s.RawData()
	if err != nil {
		return renderer.RGB{}, err
	}
	return tripleFromDigits(raw)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}
