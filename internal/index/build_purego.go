//go:build !cgosqlite
// +build !cgosqlite

package index

// This file is compiled when building without the cgosqlite tag.
// It uses a pure Go SQLite implementation.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// The pure Go implementation requires no C compiler and cross-compiles
// everywhere; hashing, not the store, dominates scan time anyway.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
