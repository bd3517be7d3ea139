// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/sift/internal/errors"
	"github.com/kraklabs/sift/internal/ui"
	"github.com/kraklabs/sift/pkg/ingestion"
	"github.com/kraklabs/sift/pkg/walker"
)

// runLocal executes the 'local' command: walk a directory tree and store
// every admitted file as a record.
//
// Examples:
//
//	sift local                    Ingest the home directory
//	sift local ~/notes --emit     Ingest ~/notes and print records as NDJSON
func runLocal(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("local", flag.ExitOnError)
	var sf sinkFlags
	addSinkFlags(fs, &sf)
	walkWorkers := fs.Int("walk-workers", 0, "Concurrent directory reads (default: number of CPUs)")
	includeHidden := fs.Bool("include-hidden", false, "Include files and directories starting with a dot")
	noGitIgnore := fs.Bool("no-gitignore", false, "Do not honor .gitignore files")
	noGlobalExcludes := fs.Bool("no-global-excludes", false, "Do not honor the user and system git excludes files")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sift local [dir] [options]

Walks dir (default: your home directory) and stores every file that is not
hidden, ignored or excluded as a record in the configured collection.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() > 1 {
		errors.FatalError(errors.NewInputError("Too many arguments", "local takes at most one directory", "sift local [dir]"), globals.JSON)
	}

	cfg := loadConfigOrDie(globals)
	sf.apply(cfg)
	logger := newLogger(globals)

	home, err := os.UserHomeDir()
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot find home directory", err.Error(), "Set HOME", err), globals.JSON)
	}
	root := home
	if fs.NArg() == 1 {
		root = fs.Arg(0)
	}
	if root, err = expandHome(root); err == nil {
		root, err = filepath.Abs(root)
	}
	if err != nil {
		errors.FatalError(errors.NewInputError("Invalid directory", err.Error(), "Pass an existing directory"), globals.JSON)
	}
	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		errors.FatalError(errors.NewNotFoundError(
			fmt.Sprintf("Directory not found: %s", root),
			"The path does not exist or is not a directory",
			"Pass an existing directory",
		), globals.JSON)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()
	startMetrics(ctx, globals.MetricsAddr, logger)

	backend := openBackend(cfg, logger, globals)
	defer func() { _ = backend.Close() }()

	progress := NewProgressConfig(globals)
	spinner := NewSpinner(progress, "Ingesting "+root)

	policy := buildPolicy(cfg, home)
	pipeline := newPipeline(cfg, sf, policy, backend, func(ingestion.ContentRecord) { advance(spinner) }, logger, globals)

	summary, stats, err := pipeline.RunLocal(ctx, walker.Config{
		Root:             root,
		Policy:           policy,
		Workers:          *walkWorkers,
		IncludeHidden:    *includeHidden,
		NoGitIgnore:      *noGitIgnore,
		NoGlobalExcludes: *noGlobalExcludes,
	})
	finish(spinner)
	if err != nil && summary == nil {
		errors.FatalError(errors.NewStorageError("Ingestion failed", err.Error(), "Check the storage configuration", err), globals.JSON)
	}

	extra := [][2]string{
		{"Directories", fmt.Sprintf("%d walked, %d unreadable", stats.Dirs, stats.Errors)},
	}
	printSummary(summary, extra, globals, sf.emit)

	if stderrors.Is(err, context.Canceled) {
		if !globals.JSON {
			ui.NewPrinter(os.Stderr).Warningf("Interrupted; the summary covers the work completed before the signal")
		}
		os.Exit(errors.ExitInterrupted)
	}
}

func addSinkFlags(fs *flag.FlagSet, sf *sinkFlags) {
	fs.StringVar(&sf.engine, "engine", "", "Storage engine: sqlite, badger or memory")
	fs.StringVar(&sf.dataDir, "data-dir", "", "Storage directory (default: ~/.sift/data)")
	fs.StringVarP(&sf.collection, "collection", "c", "", "Collection to store records in")
	fs.IntVarP(&sf.workers, "workers", "w", 0, "Pipeline workers (default: number of CPUs)")
	fs.IntVar(&sf.batchSize, "batch-size", 0, "Records per sink call")
	fs.BoolVar(&sf.noCheckpoint, "no-checkpoint", false, "Restart ids at 0 instead of continuing the last run")
	fs.BoolVar(&sf.emit, "emit", false, "Also print every stored record to stdout as NDJSON")
}
