// Package config loads the optional per-root cstfs.ini.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-ini/ini"

	"github.com/gooseboi/cstfs/internal/index"
)

// FileName is the optional configuration file looked up inside the indexed
// root.
const FileName = "cstfs.ini"

// Config carries the per-root knobs. Defaults apply field by field when the
// file or a key is absent.
type Config struct {
	// IndexFile is the base name of the index store inside the root.
	IndexFile string
	// Extensions replaces the scanner's media allow-list when non-nil.
	Extensions map[string]bool
	// Workers bounds concurrent digest computation.
	Workers int
}

// Load reads root/cstfs.ini. A missing file yields the defaults; a present
// but unreadable or malformed one is an error.
func Load(root string) (*Config, error) {
	cfg := &Config{
		IndexFile: index.FileName,
		Workers:   runtime.NumCPU(),
	}

	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if s := f.Section("index"); s.HasKey("file") {
		cfg.IndexFile = s.Key("file").String()
	}

	scan := f.Section("scan")
	if scan.HasKey("extensions") {
		exts := make(map[string]bool)
		for _, e := range scan.Key("extensions").Strings(",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts[e] = true
		}
		cfg.Extensions = exts
	}
	if scan.HasKey("workers") {
		n, err := scan.Key("workers").Int()
		if err != nil {
			return nil, fmt.Errorf("parsing scan.workers in %s: %w", path, err)
		}
		if n > 0 {
			cfg.Workers = n
		}
	}

	return cfg, nil
}
