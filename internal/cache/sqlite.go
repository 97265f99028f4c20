package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps wrappers in a single table:
//
//	wrappers(program_name TEXT PRIMARY KEY, wrapper BLOB)
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite creates or opens the wrapper database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("wrapper database path is empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: path,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS wrappers (
		program_name TEXT PRIMARY KEY,
		wrapper BLOB
	)`)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) Get(ctx context.Context, program string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT wrapper FROM wrappers WHERE program_name = ?`, program,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", program, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wrapper: %w", err)
	}

	return blob, nil
}

func (s *SQLiteStore) Put(ctx context.Context, program string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wrappers (program_name, wrapper) VALUES (?, ?)
		ON CONFLICT(program_name) DO UPDATE SET wrapper = excluded.wrapper`,
		program, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to store wrapper: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, program string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wrappers WHERE program_name = ?`, program)
	if err != nil {
		return fmt.Errorf("failed to delete wrapper: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", program, ErrNotFound)
	}

	return nil
}

// List returns every entry sorted by program name. The table has no
// timestamps so Entry.Timestamp is zero.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT program_name, wrapper FROM wrappers ORDER BY program_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list wrappers: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			name string
			blob []byte
		)
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Program: name,
			Hash:    HashBytes(blob),
			Size:    int64(len(blob)),
		})
	}

	return entries, rows.Err()
}

// Clear removes every wrapper
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM wrappers`); err != nil {
		return fmt.Errorf("failed to clear wrappers: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Stats() (int, int64, error) {
	var (
		count int
		size  int64
	)

	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(wrapper)), 0) FROM wrappers`)
	if err := row.Scan(&count, &size); err != nil {
		return 0, 0, fmt.Errorf("failed to read wrapper stats: %w", err)
	}

	return count, size, nil
}
