package diff

import "github.com/gooseboi/cstfs/internal/index"

// Coalesce rewrites elementary records into semantic events. A New record
// whose digest already lives in the persisted snapshot is really half of a
// rename or the appearance of a duplicate, never a genuinely new file.
//
// Each pass scans for the first such New record. A Removed record with the
// same digest means the file was relocated: the pair collapses into one
// Moved record carrying the old path. With no matching Removed the original
// is still present elsewhere, so the New becomes a Duplicate of the indexed
// path. One rewrite per pass keeps re-entry trivial; the outer loop repeats
// until a pass rewrites nothing. Every rewrite consumes a New record, so
// the loop terminates.
//
// Changed records and unmatched Removed records pass through untouched. A
// persisted snapshot with two entries for one digest violates the index's
// uniqueness invariant upstream and is not detected here.
func Coalesce(records []Record, persisted []index.Entry) []Record {
	persistedByHash := make(map[string]string, len(persisted))
	for _, e := range persisted {
		persistedByHash[e.Hash] = e.Path
	}

	for {
		merged := false
		for i, r := range records {
			if r.Kind != New {
				continue
			}
			origPath, ok := persistedByHash[r.Hash]
			if !ok {
				continue
			}

			if j := findRemoved(records, r.Hash); j >= 0 {
				moved := Record{Path: r.Path, Hash: r.Hash, Kind: Moved, OrigPath: records[j].Path}
				records = append(dropTwo(records, i, j), moved)
			} else {
				records[i] = Record{Path: r.Path, Hash: r.Hash, Kind: Duplicate, OrigPath: origPath}
			}
			merged = true
			break
		}
		if !merged {
			return records
		}
	}
}

// findRemoved returns the position of the first Removed record with the
// given hash, or -1.
func findRemoved(records []Record, hash string) int {
	for i, r := range records {
		if r.Kind == Removed && r.Hash == hash {
			return i
		}
	}
	return -1
}

// dropTwo removes the records at positions i and j, preserving the order of
// the rest.
func dropTwo(records []Record, i, j int) []Record {
	if i > j {
		i, j = j, i
	}
	out := make([]Record, 0, len(records)-2)
	out = append(out, records[:i]...)
	out = append(out, records[i+1:j]...)
	out = append(out, records[j+1:]...)
	return out
}
