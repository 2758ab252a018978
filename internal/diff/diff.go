// Package diff compares a live directory scan against the persisted index
// snapshot and rewrites the raw observations into semantic events.
package diff

import (
	"fmt"

	"github.com/gooseboi/cstfs/internal/index"
)

// Kind classifies one diff record.
type Kind int

const (
	// New is a live path absent from the persisted snapshot.
	New Kind = iota
	// Changed is a path present on both sides with differing digests.
	Changed
	// Removed is a persisted path absent from the live tree.
	Removed
	// Duplicate is a new path whose digest is already indexed at a path
	// that is still live. Produced only by Coalesce.
	Duplicate
	// Moved is a new path whose digest is indexed at a path no longer
	// live. Produced only by Coalesce.
	Moved
)

func (k Kind) String() string {
	switch k {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	case Duplicate:
		return "duplicate"
	case Moved:
		return "moved"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Record is one observation about a single file.
type Record struct {
	Path string
	Hash string
	Kind Kind

	// PrevHash is the previously indexed digest. Set for Changed only.
	PrevHash string
	// OrigPath is the previously indexed path for a matched hash. Set for
	// Duplicate and Moved only.
	OrigPath string
}

func (r Record) String() string {
	switch r.Kind {
	case Changed:
		return fmt.Sprintf("changed: %s (%s -> %s)", r.Path, r.PrevHash, r.Hash)
	case Duplicate:
		return fmt.Sprintf("duplicate: %s (original at %s)", r.Path, r.OrigPath)
	case Moved:
		return fmt.Sprintf("moved: %s -> %s", r.OrigPath, r.Path)
	default:
		return fmt.Sprintf("%s: %s", r.Kind, r.Path)
	}
}

// File is one hashed live file, as produced by the scan pass.
type File struct {
	Path string
	Hash string
}

// Generate builds the elementary diff set: one pass over the live files in
// scan order, then one pass over the persisted snapshot. A path present on
// both sides with an equal digest produces no record, so the output
// partitions exactly into New, Changed and Removed with at most one record
// per file.
func Generate(live []File, persisted []index.Entry) []Record {
	persistedByPath := make(map[string]string, len(persisted))
	for _, e := range persisted {
		persistedByPath[e.Path] = e.Hash
	}

	livePaths := make(map[string]bool, len(live))
	records := make([]Record, 0)
	for _, f := range live {
		livePaths[f.Path] = true
		prev, ok := persistedByPath[f.Path]
		switch {
		case !ok:
			records = append(records, Record{Path: f.Path, Hash: f.Hash, Kind: New})
		case prev != f.Hash:
			records = append(records, Record{Path: f.Path, Hash: f.Hash, Kind: Changed, PrevHash: prev})
		}
	}

	for _, e := range persisted {
		if !livePaths[e.Path] {
			records = append(records, Record{Path: e.Path, Hash: e.Hash, Kind: Removed})
		}
	}
	return records
}
