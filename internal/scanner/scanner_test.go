package scanner

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func relPaths(entries []Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}

func TestScan_MediaFilesOnly(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.jpg":        "aaa",
		"sub/b.png":    "bbbb",
		"sub/notes":    "no extension",
		"readme.txt":   "not media",
		"sub/CLIP.MP4": "uppercase extension still counts",
	})

	s := &Scanner{Root: root}
	entries, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "sub/CLIP.MP4", "sub/b.png"}, relPaths(entries))
}

func TestScan_SkipsIndexFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.jpg":    "aaa",
		"cstfs.db": "pretend this is the store",
	})

	s := &Scanner{Root: root, IndexFile: "cstfs.db"}
	entries, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, relPaths(entries))
}

func TestScan_EntryFields(t *testing.T) {
	root := writeTree(t, map[string]string{"sub/a.jpg": "12345"})

	s := &Scanner{Root: root}
	entries, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "sub/a.jpg", entries[0].Path)
	assert.Equal(t, filepath.Join(root, "sub", "a.jpg"), entries[0].AbsPath)
	assert.Equal(t, int64(5), entries[0].Size)
}

func TestScan_ExtensionOverride(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.jpg": "media by default",
		"b.raw": "media only when configured",
	})

	s := &Scanner{Root: root, Extensions: map[string]bool{".raw": true}}
	entries, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.raw"}, relPaths(entries))
}

func TestScan_LogsExclusions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.jpg":      "kept",
		"readme.txt": "skipped",
	})

	var buf bytes.Buffer
	s := &Scanner{Root: root, Log: log.New(&buf, "", 0)}
	_, err := s.Scan()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "readme.txt is not a media file")
	assert.NotContains(t, buf.String(), "a.jpg")
}

func TestScan_MissingRoot(t *testing.T) {
	s := &Scanner{Root: filepath.Join(t.TempDir(), "nope")}
	_, err := s.Scan()
	assert.Error(t, err)
}
