// Package scanner enumerates indexable media files under a root.
package scanner

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
)

// mediaExtensions is the built-in allow-list of recognized image, audio and
// video extensions. Files with any other extension, or none at all, are
// skipped with a notice and never an error.
var mediaExtensions = map[string]bool{
	".avif": true,
	".avi":  true,
	".bmp":  true,
	".flac": true,
	".gif":  true,
	".jpeg": true,
	".jpg":  true,
	".m4a":  true,
	".m4v":  true,
	".mkv":  true,
	".mov":  true,
	".mp3":  true,
	".mp4":  true,
	".ogg":  true,
	".opus": true,
	".png":  true,
	".tiff": true,
	".wav":  true,
	".webm": true,
	".webp": true,
}

// Entry is one eligible file found during a walk.
type Entry struct {
	// Path is root-relative with forward slashes, the form stored in the
	// index.
	Path string
	// AbsPath locates the file on disk for hashing and removal.
	AbsPath string
	// Size in bytes, from the walk metadata.
	Size int64
}

// Scanner walks one root. Root is required; the other fields default to the
// production behavior when zero.
type Scanner struct {
	Root string
	// IndexFile is the base name of the persisted store to skip,
	// index.FileName in production.
	IndexFile string
	// Extensions replaces the built-in media allow-list when non-nil.
	Extensions map[string]bool
	// Log receives skip notices; nil silences them.
	Log *log.Logger
}

// Scan returns every eligible file under Root in lexical walk order. The
// result is a fully materialized slice, so callers can iterate it as many
// times as they like. Any directory or metadata read error aborts the whole
// scan; nothing is silently dropped.
func (s *Scanner) Scan() ([]Entry, error) {
	exts := s.Extensions
	if exts == nil {
		exts = mediaExtensions
	}

	var entries []Entry
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if name == s.IndexFile {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" || !exts[ext] {
			s.logf("excluded: %s is not a media file", path)
			return nil
		}

		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return fmt.Errorf("relativizing %s against %s: %w", path, s.Root, err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("reading metadata of %s: %w", path, err)
		}

		entries = append(entries, Entry{
			Path:    filepath.ToSlash(rel),
			AbsPath: path,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.Root, err)
	}
	return entries, nil
}

func (s *Scanner) logf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}
