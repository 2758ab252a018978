// Package indexer coordinates the reconciliation pipeline for one indexed
// root: scan -> hash -> store for a build, scan -> hash -> diff for a
// refresh.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gooseboi/cstfs/internal/diff"
	"github.com/gooseboi/cstfs/internal/hasher"
	"github.com/gooseboi/cstfs/internal/index"
	"github.com/gooseboi/cstfs/internal/scanner"
)

// Resolver decides what happens to a duplicate insertion during a build.
// resolve.Resolver is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, tx *index.Tx, dup *index.DuplicateInsertionError) error
}

// Indexer ties the scanner, hasher and store together for one root.
type Indexer struct {
	Root     string
	Store    *index.Store
	Scanner  *scanner.Scanner
	Resolver Resolver
	// Workers bounds concurrent digest computation; defaults to NumCPU.
	Workers int
	// Out receives progress lines; defaults to stdout.
	Out io.Writer
}

// Statistics summarizes one build.
type Statistics struct {
	FilesIndexed int
	Duplicates   int
	BytesHashed  int64
	Duration     time.Duration
}

// Build performs the full-scan run: walk the tree, digest every eligible
// file and insert all entries inside a single transaction, committed only
// at the very end. A duplicate hash hands control to the Resolver; any
// other failure before commit rolls everything back and leaves a previously
// persisted index untouched.
func (ix *Indexer) Build(ctx context.Context) (*Statistics, error) {
	start := time.Now()

	entries, err := ix.Scanner.Scan()
	if err != nil {
		return nil, err
	}

	files, bytesHashed, err := ix.hashAll(ctx, entries)
	if err != nil {
		return nil, err
	}

	tx, err := ix.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stats := &Statistics{BytesHashed: bytesHashed}
	total := len(files)
	for i, f := range files {
		fmt.Fprintf(ix.out(), "\rAdding file %d/%d...", i+1, total)

		err := tx.Insert(ctx, f.Path, f.Hash)
		var dup *index.DuplicateInsertionError
		if errors.As(err, &dup) {
			fmt.Fprintln(ix.out())
			if err := ix.Resolver.Resolve(ctx, tx, dup); err != nil {
				return nil, fmt.Errorf("resolving duplicate of %q: %w", dup.ExistingPath, err)
			}
			stats.Duplicates++
			continue
		}
		if err != nil {
			return nil, err
		}
		stats.FilesIndexed++
	}
	if total > 0 {
		fmt.Fprintln(ix.out())
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing build transaction: %w", err)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// Refresh compares the live tree against the last committed snapshot and
// returns the coalesced diff records. The index is never written.
func (ix *Indexer) Refresh(ctx context.Context) ([]diff.Record, error) {
	persisted, err := ix.Store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := ix.Scanner.Scan()
	if err != nil {
		return nil, err
	}
	live, _, err := ix.hashAll(ctx, entries)
	if err != nil {
		return nil, err
	}

	records := diff.Generate(live, persisted)
	return diff.Coalesce(records, persisted), nil
}

// hashAll digests the scanned files with a bounded worker group. Each
// worker writes only its own slot, so the result keeps scan order and no
// digest state is shared.
func (ix *Indexer) hashAll(ctx context.Context, entries []scanner.Entry) ([]diff.File, int64, error) {
	workers := ix.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	files := make([]diff.File, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := hasher.Sum(e.AbsPath)
			if err != nil {
				return fmt.Errorf("hashing %s: %w", e.Path, err)
			}
			files[i] = diff.File{Path: e.Path, Hash: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var bytesHashed int64
	for _, e := range entries {
		bytesHashed += e.Size
	}
	return files, bytesHashed, nil
}

func (ix *Indexer) out() io.Writer {
	if ix.Out != nil {
		return ix.Out
	}
	return os.Stdout
}
