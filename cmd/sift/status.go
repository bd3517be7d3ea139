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
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/sift/internal/errors"
	"github.com/kraklabs/sift/internal/output"
	"github.com/kraklabs/sift/internal/ui"
	"github.com/kraklabs/sift/pkg/ingestion"
)

// StatusResult is the --json form of 'sift status'.
type StatusResult struct {
	Engine      string             `json:"engine"`
	DataDir     string             `json:"data_dir"`
	Collections []CollectionStatus `json:"collections"`
	Timestamp   time.Time          `json:"timestamp"`
}

type CollectionStatus struct {
	Name    string `json:"name"`
	Records int    `json:"records"`

	// NextID, Runs and LastRun come from the checkpoint, when one exists.
	NextID  uint64 `json:"next_id,omitempty"`
	Runs    int    `json:"runs,omitempty"`
	LastRun string `json:"last_run,omitempty"`
}

// runStatus executes the 'status' command: report stored collections with
// their record counts and checkpoints.
func runStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var sf sinkFlags
	fs.StringVar(&sf.engine, "engine", "", "Storage engine: sqlite, badger or memory")
	fs.StringVar(&sf.dataDir, "data-dir", "", "Storage directory (default: ~/.sift/data)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sift status [options]

Shows the stored collections, their record counts and id checkpoints.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfigOrDie(globals)
	sf.apply(cfg)
	logger := newLogger(globals)

	ctx, cancel := signalContext(logger)
	defer cancel()

	dataDir, _ := cfg.DataDir()
	backend := openBackend(cfg, logger, globals)
	defer func() { _ = backend.Close() }()

	infos, err := backend.Collections(ctx)
	if err != nil {
		errors.FatalError(errors.NewStorageError("Cannot read collections", err.Error(), "", err), globals.JSON)
	}

	var checkpoints *ingestion.CheckpointManager
	if dir, err := cfg.CheckpointDir(); err == nil {
		checkpoints = ingestion.NewCheckpointManager(dir)
	}

	result := StatusResult{
		Engine:      cfg.Storage.Engine,
		DataDir:     dataDir,
		Collections: make([]CollectionStatus, 0, len(infos)),
		Timestamp:   time.Now(),
	}
	for _, info := range infos {
		cs := CollectionStatus{Name: info.Name, Records: info.Count}
		if checkpoints != nil {
			if cp, err := checkpoints.LoadCheckpoint(info.Name); err == nil && cp != nil {
				cs.NextID = cp.NextID
				cs.Runs = cp.Runs
				cs.LastRun = cp.LastUpdateTime
			}
		}
		result.Collections = append(result.Collections, cs)
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}

	p := ui.NewPrinter(os.Stdout)
	p.Header("sift status")
	p.Fields([][2]string{
		{"Engine", result.Engine},
		{"Data dir", ui.DimText(result.DataDir)},
	})
	fmt.Println()

	if len(result.Collections) == 0 {
		p.Infof("No collections yet. Run 'sift local' or 'sift github <owner>'.")
		return
	}
	for _, cs := range result.Collections {
		rows := [][2]string{{"Records", humanize.Comma(int64(cs.Records))}}
		if cs.Runs > 0 {
			rows = append(rows,
				[2]string{"Runs", fmt.Sprint(cs.Runs)},
				[2]string{"Next id", fmt.Sprint(cs.NextID)},
			)
			if t, err := time.Parse(time.RFC3339, cs.LastRun); err == nil {
				rows = append(rows, [2]string{"Last run", humanize.Time(t)})
			}
		}
		fmt.Println(ui.Label(cs.Name))
		p.Fields(rows)
	}
}
