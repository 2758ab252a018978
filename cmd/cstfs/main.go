// Command cstfs maintains a content-addressed index of a media directory
// tree and reports what changed between scans.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/gooseboi/cstfs/internal/config"
	"github.com/gooseboi/cstfs/internal/diff"
	"github.com/gooseboi/cstfs/internal/index"
	"github.com/gooseboi/cstfs/internal/indexer"
	"github.com/gooseboi/cstfs/internal/resolve"
	"github.com/gooseboi/cstfs/internal/scanner"
)

var version = "dev"

const usage = `cstfs - content-addressed index for a media directory tree

Usage:
  cstfs [flags] init      build the index from scratch
  cstfs [flags] refresh   report changes since the last committed index

Flags:
`

func main() {
	// Diagnostics go to stderr; stdout carries progress and reports
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	flags := flag.NewFlagSet("cstfs", flag.ExitOnError)
	dataDir := flags.StringP("data-dir", "d", ".", "data store directory (where the files are)")
	force := flags.Bool("force", false, "with init: replace an existing index")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:]) // ExitOnError

	if *showVersion {
		fmt.Printf("cstfs %s (%s build, sqlite driver %q)\n", version, index.BuildMode, index.DriverName)
		return
	}

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	if err := run(flags.Arg(0), *dataDir, *force); err != nil {
		if errors.Is(err, resolve.ErrAborted) {
			os.Exit(1)
		}
		log.Fatalf("cstfs: %v", err)
	}
}

func run(command, root string, force bool) error {
	ctx := context.Background()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	dbPath := filepath.Join(root, cfg.IndexFile)

	switch command {
	case "init":
		return runInit(ctx, root, dbPath, cfg, force)
	case "refresh":
		return runRefresh(ctx, root, dbPath, cfg)
	default:
		return fmt.Errorf("unknown command %q, expected init or refresh", command)
	}
}

func newIndexer(root string, cfg *config.Config, store *index.Store) *indexer.Indexer {
	return &indexer.Indexer{
		Root:  root,
		Store: store,
		Scanner: &scanner.Scanner{
			Root:       root,
			IndexFile:  cfg.IndexFile,
			Extensions: cfg.Extensions,
			Log:        log.Default(),
		},
		Resolver: resolve.New(root),
		Workers:  cfg.Workers,
	}
}

func runInit(ctx context.Context, root, dbPath string, cfg *config.Config, force bool) error {
	switch _, err := os.Stat(dbPath); {
	case err == nil:
		if !force {
			return fmt.Errorf("cannot initialize an index that already exists at %s", dbPath)
		}
		fmt.Println("Regenerating index")
		if err := os.Remove(dbPath); err != nil {
			return fmt.Errorf("removing old index: %w", err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("checking index existence: %w", err)
	}

	store, err := index.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fmt.Printf("Starting index generation at %q\n", root)
	stats, err := newIndexer(root, cfg, store).Build(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Done generating index at %q. %d files (%s) in %s\n",
		root, stats.FilesIndexed,
		humanize.Bytes(uint64(stats.BytesHashed)),
		stats.Duration.Round(time.Millisecond))
	if stats.Duplicates > 0 {
		fmt.Printf("Resolved %d duplicate files\n", stats.Duplicates)
	}
	return nil
}

func runRefresh(ctx context.Context, root, dbPath string, cfg *config.Config) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no index at %s, run init first", dbPath)
	}

	store, err := index.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fmt.Printf("Starting refresh of %q\n", root)
	start := time.Now()
	records, err := newIndexer(root, cfg, store).Refresh(ctx)
	if err != nil {
		return err
	}

	printReport(records)
	fmt.Printf("Done refreshing %q. Took %s\n", root, time.Since(start).Round(time.Millisecond))
	return nil
}

var kindColors = map[diff.Kind]*color.Color{
	diff.New:       color.New(color.FgGreen),
	diff.Changed:   color.New(color.FgYellow),
	diff.Removed:   color.New(color.FgRed),
	diff.Duplicate: color.New(color.FgMagenta),
	diff.Moved:     color.New(color.FgCyan),
}

func printReport(records []diff.Record) {
	if len(records) == 0 {
		fmt.Println("Index is up to date")
		return
	}

	counts := map[diff.Kind]int{}
	for _, r := range records {
		counts[r.Kind]++
		if c, ok := kindColors[r.Kind]; ok {
			c.Println(r.String())
		} else {
			fmt.Println(r.String())
		}
	}

	fmt.Printf("%d new, %d changed, %d removed, %d moved, %d duplicate\n",
		counts[diff.New], counts[diff.Changed], counts[diff.Removed],
		counts[diff.Moved], counts[diff.Duplicate])
}
