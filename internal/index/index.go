// Package index persists the hash -> path table that backs a cstfs root.
//
// The hash is the identity: the schema keeps at most one path per hash, and
// every operation that could end up with more than one treats it as
// corruption. All mutations run inside a caller-owned transaction; the store
// itself never commits, so a whole build is atomic.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
)

// FileName is the store's fixed name inside the indexed root. The scanner
// skips it.
const FileName = "cstfs.db"

// Entry is one persisted (path, hash) pair.
type Entry struct {
	Path string // root-relative, forward slashes
	Hash string // 16 lowercase hex chars
}

// Path returns the store location for an indexed root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

const schema = `
CREATE TABLE IF NOT EXISTS files (
    path TEXT NOT NULL,
    hash TEXT NOT NULL PRIMARY KEY
)`

// Store is a handle to the SQLite-backed index.
type Store struct {
	db *sql.DB
}

// Open opens or creates the backing store at dbPath and ensures the schema
// exists. Schema creation is idempotent; its failure is reported as a
// *MigrationError, distinct from an open failure.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", dbPath, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// SQLite wants a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &MigrationError{Err: err}
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts the exclusive transaction that scopes a whole batch of
// mutations. The caller owns commit and rollback.
func (s *Store) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning index transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// ScanAll dumps the persisted snapshot, ordered by path.
func (s *Store) ScanAll(ctx context.Context) ([]Entry, error) {
	return scanAll(ctx, s.db)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx wraps one index transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Insert adds a (path, hash) entry. If the hash is already bound it returns
// a *DuplicateInsertionError and writes nothing.
func (t *Tx) Insert(ctx context.Context, path, hash string) error {
	var existing string
	err := t.tx.QueryRowContext(ctx, "SELECT path FROM files WHERE hash = ?", hash).Scan(&existing)
	switch {
	case err == nil:
		return &DuplicateInsertionError{Hash: hash, ExistingPath: existing, NewPath: path}
	case err != sql.ErrNoRows:
		return fmt.Errorf("querying hash %s: %w", hash, err)
	}

	res, err := t.tx.ExecContext(ctx, "INSERT INTO files (path, hash) VALUES (?, ?)", path, hash)
	if err != nil {
		return fmt.Errorf("inserting %q: %w", path, err)
	}
	return assertOneRow("insert", res)
}

// RebindPath points an existing hash at newPath. It fails with
// ErrHashNotFound when the hash is absent and with a *DuplicatePathsError
// when the hash is bound more than once, which violates the uniqueness
// invariant and is never a normal runtime path.
func (t *Tx) RebindPath(ctx context.Context, newPath, hash string) error {
	rows, err := t.tx.QueryContext(ctx, "SELECT path FROM files WHERE hash = ?", hash)
	if err != nil {
		return fmt.Errorf("querying hash %s: %w", hash, err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("reading paths for hash %s: %w", hash, err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading paths for hash %s: %w", hash, err)
	}

	switch len(paths) {
	case 0:
		return fmt.Errorf("rebinding hash %s: %w", hash, ErrHashNotFound)
	case 1:
	default:
		return &DuplicatePathsError{Hash: hash, Paths: paths}
	}

	res, err := t.tx.ExecContext(ctx, "UPDATE files SET path = ? WHERE hash = ?", newPath, hash)
	if err != nil {
		return fmt.Errorf("updating path for hash %s: %w", hash, err)
	}
	return assertOneRow("update", res)
}

// Remove deletes the entry for hash. Part of the storage contract; the
// build and refresh paths never call it.
func (t *Tx) Remove(ctx context.Context, hash string) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM files WHERE hash = ?", hash)
	if err != nil {
		return fmt.Errorf("deleting hash %s: %w", hash, err)
	}
	return assertOneRow("delete", res)
}

// ScanAll dumps the snapshot as seen by this transaction.
func (t *Tx) ScanAll(ctx context.Context) ([]Entry, error) {
	return scanAll(ctx, t.tx)
}

func scanAll(ctx context.Context, q querier) ([]Entry, error) {
	rows, err := q.QueryContext(ctx, "SELECT path, hash FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("scanning index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Hash); err != nil {
			return nil, fmt.Errorf("reading index entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// assertOneRow is a defensive invariant check: every mutation here targets
// exactly one row, and anything else means a logic bug.
func assertOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected by %s: %w", op, err)
	}
	if n != 1 {
		return &RowCountError{Op: op, Affected: n}
	}
	return nil
}
