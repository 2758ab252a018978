package indexer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gooseboi/cstfs/internal/diff"
	"github.com/gooseboi/cstfs/internal/hasher"
	"github.com/gooseboi/cstfs/internal/index"
	"github.com/gooseboi/cstfs/internal/resolve"
	"github.com/gooseboi/cstfs/internal/scanner"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	store, err := index.Open(context.Background(), index.Path(root))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &Indexer{
		Root:  root,
		Store: store,
		Scanner: &scanner.Scanner{
			Root:      root,
			IndexFile: index.FileName,
		},
		Out: io.Discard,
	}
}

func TestBuild_IndexesTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.jpg":     "alpha",
		"sub/b.png": "beta",
		"notes.txt": "not media, not indexed",
	})

	ix := newTestIndexer(t, root)
	stats, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 0, stats.Duplicates)
	assert.Equal(t, int64(len("alpha")+len("beta")), stats.BytesHashed)

	entries, err := ix.Store.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.jpg", entries[0].Path)
	assert.Equal(t, "sub/b.png", entries[1].Path)
	for _, e := range entries {
		assert.Len(t, e.Hash, hasher.HexLen)
	}
}

func TestBuild_DuplicateResolvedInteractively(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.jpg": "same bytes",
		"z.jpg": "same bytes",
	})

	ix := newTestIndexer(t, root)
	// Scripted operator: remove the new file
	ix.Resolver = &resolve.Resolver{In: strings.NewReader("y\n"), Out: io.Discard, Root: root}

	stats, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.Duplicates)

	// a.jpg scanned first, so it owns the hash; z.jpg was deleted
	entries, err := ix.Store.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.jpg", entries[0].Path)
	assert.NoFileExists(t, filepath.Join(root, "z.jpg"))
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, *index.Tx, *index.DuplicateInsertionError) error {
	return resolve.ErrAborted
}

func TestBuild_AbortRollsBackEverything(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.jpg": "same bytes",
		"z.jpg": "same bytes",
	})

	ix := newTestIndexer(t, root)
	ix.Resolver = failingResolver{}

	_, err := ix.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolve.ErrAborted))

	// The aborted build must not have persisted a single entry
	entries, err := ix.Store.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRefresh_UpToDate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.jpg": "alpha", "b.jpg": "beta"})

	ix := newTestIndexer(t, root)
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	records, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRefresh_MoveReportedOnce(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.jpg": "alpha", "b.jpg": "beta"})

	ix := newTestIndexer(t, root)
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	// a.jpg vanishes, c.jpg appears with identical content
	require.NoError(t, os.Remove(filepath.Join(root, "a.jpg")))
	writeTree(t, root, map[string]string{"c.jpg": "alpha"})

	records, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, diff.Moved, records[0].Kind)
	assert.Equal(t, "c.jpg", records[0].Path)
	assert.Equal(t, "a.jpg", records[0].OrigPath)
}

func TestRefresh_DuplicateReported(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.jpg": "alpha", "b.jpg": "beta"})

	ix := newTestIndexer(t, root)
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	// d.jpg appears with a.jpg's content while a.jpg stays put
	writeTree(t, root, map[string]string{"d.jpg": "alpha"})

	records, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, diff.Duplicate, records[0].Kind)
	assert.Equal(t, "d.jpg", records[0].Path)
	assert.Equal(t, "a.jpg", records[0].OrigPath)
}

func TestRefresh_ChangedContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.jpg": "alpha"})

	ix := newTestIndexer(t, root)
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	prev, err := hasher.Sum(filepath.Join(root, "a.jpg"))
	require.NoError(t, err)
	writeTree(t, root, map[string]string{"a.jpg": "rewritten"})

	records, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, diff.Changed, records[0].Kind)
	assert.Equal(t, "a.jpg", records[0].Path)
	assert.Equal(t, prev, records[0].PrevHash)
}

func TestRefresh_NewAndRemoved(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.jpg": "alpha", "b.jpg": "beta"})

	ix := newTestIndexer(t, root)
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.jpg")))
	writeTree(t, root, map[string]string{"e.jpg": "entirely new content"})

	records, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	kinds := map[diff.Kind]string{}
	for _, r := range records {
		kinds[r.Kind] = r.Path
	}
	assert.Equal(t, "e.jpg", kinds[diff.New])
	assert.Equal(t, "b.jpg", kinds[diff.Removed])
}

func TestRefresh_DoesNotMutateIndex(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.jpg": "alpha"})

	ix := newTestIndexer(t, root)
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	before, err := ix.Store.ScanAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "a.jpg")))
	writeTree(t, root, map[string]string{"moved.jpg": "alpha", "x.jpg": "fresh"})

	_, err = ix.Refresh(context.Background())
	require.NoError(t, err)

	after, err := ix.Store.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
