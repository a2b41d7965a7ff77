package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mockify/interviewstats/internal/metrics"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a KV backed by a SQLite file. It manages a write
// connection and a read-only pool.
type SQLite struct {
	path   string
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex // serializes writes
}

// makeDSN builds a SQLite connection string with shared pragmas.
func makeDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_cache_size", "-16000")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// OpenSQLite creates or opens the store at path.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	writer, err := sql.Open("sqlite3", makeDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	s := &SQLite{path: path, writer: writer}
	if err := s.init(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	// The reader is opened after the schema exists; a read-only
	// connection cannot create the file.
	reader, err := sql.Open("sqlite3", makeDSN(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	s.reader = reader
	return s, nil
}

func (s *SQLite) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer.Exec(schemaSQL)
	return err
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes both writer and reader connections.
func (s *SQLite) Close() error {
	return errors.Join(s.writer.Close(), s.reader.Close())
}

// Update executes fn within a write lock and transaction.
// The transaction is committed if fn returns nil, rolled back
// otherwise.
func (s *SQLite) Update(
	ctx context.Context, fn func(tx *sql.Tx) error,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Get returns the value stored under key.
func (s *SQLite) Get(
	ctx context.Context, key string,
) (value string, ok bool, err error) {
	done := metrics.ObserveStoreOp("get", key)
	defer func() { done(err) }()

	err = s.reader.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

// Set replaces the value stored under key.
func (s *SQLite) Set(ctx context.Context, key, value string) (err error) {
	done := metrics.ObserveStoreOp("set", key)
	defer func() { done(err) }()

	return s.Update(ctx, func(tx *sql.Tx) error {
		return setTx(ctx, tx, key, value)
	})
}

// SetMany writes every pair in one transaction.
func (s *SQLite) SetMany(
	ctx context.Context, pairs map[string]string,
) (err error) {
	done := metrics.ObserveStoreOp("set_many", "")
	defer func() { done(err) }()

	return s.Update(ctx, func(tx *sql.Tx) error {
		for k, v := range pairs {
			if err := setTx(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func setTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, key string) (err error) {
	done := metrics.ObserveStoreOp("delete", key)
	defer func() { done(err) }()

	return s.Update(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM kv WHERE key = ?", key,
		); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
		return nil
	})
}
