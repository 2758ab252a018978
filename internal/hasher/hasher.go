// Package hasher computes content digests for indexed files.
//
// Digests are 64-bit XXH3 sums rendered as 16 lowercase hex characters.
// XXH3 is a throughput hash, not a cryptographic one: a collision between
// unrelated files is theoretically possible but numerically vanishing, and
// bulk scan speed is worth that trade. Do not swap in a cryptographic hash
// here without revisiting the scan time budget.
package hasher

import (
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/mmap"
)

// HexLen is the width of every digest string.
const HexLen = 16

// chunkSize bounds how much of the mapped region is fed to the digest at a
// time, so a multi-gigabyte file never lands in the heap wholesale.
const chunkSize = 1 << 20

// Sum digests the full contents of the file at path via a memory-mapped
// read. It fails when the file cannot be opened or mapped, for example when
// it vanished between enumeration and hashing.
func Sum(path string) (string, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return "", fmt.Errorf("mapping %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()

	h := xxh3.New()
	buf := make([]byte, chunkSize)
	size := int64(r.Len())
	for off := int64(0); off < size; off += chunkSize {
		n, err := r.ReadAt(buf, off)
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading %s at offset %d: %w", path, off, err)
		}
		_, _ = h.Write(buf[:n]) // never fails
	}

	return fmt.Sprintf("%0*x", HexLen, h.Sum64()), nil
}
