// Package resolve implements the interactive decision loop for duplicate
// insertions during an index build.
//
// The grammar is a fixed command alphabet applied to one line of operator
// input per duplicate. Decide is the pure mapping from input to action, so
// the grammar is testable without a console; Resolver adds the blocking
// prompt loop and the filesystem/index effects.
package resolve

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gooseboi/cstfs/internal/index"
)

// ErrAborted is returned when the operator answers n: the whole run stops.
var ErrAborted = errors.New("aborted by operator")

// ErrIgnoreList marks the s command, reserved for a future ignore-list
// mechanism. Invoking it fails loudly rather than silently skipping.
var ErrIgnoreList = errors.New("ignore list is not implemented")

const validCommands = "Y/n/s/o/?"

// Action is the operator's decision about one duplicate.
type Action int

const (
	// RemoveNew deletes the newly scanned file and leaves the index alone.
	RemoveNew Action = iota
	// Abort stops the entire run with a non-zero exit.
	Abort
	// Skip would add the file to an ignore list; unimplemented.
	Skip
	// RemoveOld deletes the previously indexed file and rebinds the hash
	// to the new path.
	RemoveOld
	// Help prints the command grammar and re-prompts.
	Help
	// Invalid prints a notice and re-prompts.
	Invalid
)

// Decide maps one line of operator input to an Action. An empty line means
// yes; matching is case-insensitive.
func Decide(input string) Action {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "y":
		return RemoveNew
	case "n":
		return Abort
	case "s":
		return Skip
	case "o":
		return RemoveOld
	case "?":
		return Help
	default:
		return Invalid
	}
}

// Resolver runs the blocking prompt loop for one indexed root. In and Out
// default to the process console; tests substitute buffers.
type Resolver struct {
	In  io.Reader
	Out io.Writer
	// Root resolves the index's relative paths for removal.
	Root string

	br *bufio.Reader
}

// New returns a Resolver speaking to the process console.
func New(root string) *Resolver {
	return &Resolver{In: os.Stdin, Out: os.Stdout, Root: root}
}

// Resolve handles one duplicate insertion, blocking for operator input until
// a terminal action is chosen. EOF or a read failure on the input stream is
// fatal for the run. This is the only place the index is mutated outside
// the initial insert path.
func (r *Resolver) Resolve(ctx context.Context, tx *index.Tx, dup *index.DuplicateInsertionError) error {
	if r.br == nil {
		r.br = bufio.NewReader(r.In)
	}

	fmt.Fprintf(r.Out, "Found path %q, duplicate of %q, would you like to remove it? (%s): ",
		dup.NewPath, dup.ExistingPath, validCommands)

	for {
		line, err := r.br.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return fmt.Errorf("reading operator input: %w", err)
		}

		switch Decide(line) {
		case RemoveNew:
			if err := RemoveFile(r.abs(dup.NewPath)); err != nil {
				return fmt.Errorf("removing %s: %w", dup.NewPath, err)
			}
			fmt.Fprintf(r.Out, "Removed file %s\n", dup.NewPath)
			return nil

		case Abort:
			fmt.Fprintln(r.Out, "Quitting...")
			return ErrAborted

		case Skip:
			return ErrIgnoreList

		case RemoveOld:
			if err := RemoveFile(r.abs(dup.ExistingPath)); err != nil {
				return fmt.Errorf("removing %s: %w", dup.ExistingPath, err)
			}
			fmt.Fprintf(r.Out, "Removed file %s\n", dup.ExistingPath)
			if err := tx.RebindPath(ctx, dup.NewPath, dup.Hash); err != nil {
				return fmt.Errorf("updating index with %s: %w", dup.NewPath, err)
			}
			fmt.Fprintf(r.Out, "Updated index with %s\n", dup.NewPath)
			return nil

		case Help:
			fmt.Fprintln(r.Out, "y(Yes)  - Remove the new file")
			fmt.Fprintln(r.Out, "n(No)   - Do not remove the file and quit the program")
			fmt.Fprintln(r.Out, "s(Skip) - Skip the file and add it to the ignorelist")
			fmt.Fprintln(r.Out, "o(Old)  - Remove the old file and keep the new one")
			fmt.Fprintln(r.Out, "?(Help) - Print this message")

		default:
			fmt.Fprintf(r.Out, "Invalid command, valid ones are (%s)\n", validCommands)
		}
	}
}

func (r *Resolver) abs(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// RemoveFile deletes path best-effort: an already missing file counts as
// success, any other failure is surfaced.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
