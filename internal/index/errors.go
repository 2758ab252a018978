package index

import (
	"errors"
	"fmt"
)

// ErrHashNotFound is returned by RebindPath when no entry carries the
// requested hash.
var ErrHashNotFound = errors.New("hash does not exist in index")

// DuplicateInsertionError reports an Insert whose hash is already bound to
// another path. This is an expected condition during a build, not a fatal
// one: callers resolve it interactively and carry on.
type DuplicateInsertionError struct {
	Hash         string
	ExistingPath string
	NewPath      string
}

func (e *DuplicateInsertionError) Error() string {
	return fmt.Sprintf("hash %s already indexed at %q (new path %q)",
		e.Hash, e.ExistingPath, e.NewPath)
}

// DuplicatePathsError reports more than one entry for a single hash. The
// schema's primary key makes this unreachable short of store corruption, so
// it is always fatal.
type DuplicatePathsError struct {
	Hash  string
	Paths []string
}

func (e *DuplicatePathsError) Error() string {
	return fmt.Sprintf("index corrupt: hash %s bound to %d paths %q",
		e.Hash, len(e.Paths), e.Paths)
}

// RowCountError reports a mutation that affected a number of rows other than
// exactly one. It indicates a logic bug, never operator error, and must
// abort the run.
type RowCountError struct {
	Op       string
	Affected int64
}

func (e *RowCountError) Error() string {
	if e.Affected < 1 {
		return fmt.Sprintf("%s affected too few rows (%d, want 1)", e.Op, e.Affected)
	}
	return fmt.Sprintf("%s affected too many rows (%d, want 1)", e.Op, e.Affected)
}

// MigrationError distinguishes a schema-creation failure from a plain open
// failure.
type MigrationError struct {
	Err error
}

func (e *MigrationError) Error() string {
	return "creating index schema: " + e.Err.Error()
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
