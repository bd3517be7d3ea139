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
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kraklabs/sift/internal/errors"
	"github.com/kraklabs/sift/internal/output"
	"github.com/kraklabs/sift/internal/ui"
	"github.com/kraklabs/sift/pkg/ingestion"
	"github.com/kraklabs/sift/pkg/storage"
	"github.com/kraklabs/sift/pkg/walker"
)

// sinkFlags are shared by the ingesting commands.
type sinkFlags struct {
	engine       string
	dataDir      string
	collection   string
	workers      int
	batchSize    int
	noCheckpoint bool
	emit         bool
}

// apply overrides cfg with flags the user set.
func (f sinkFlags) apply(cfg *Config) {
	if f.engine != "" {
		cfg.Storage.Engine = f.engine
	}
	if f.dataDir != "" {
		cfg.Storage.DataDir = f.dataDir
	}
	if f.collection != "" {
		cfg.Ingestion.Collection = f.collection
	}
	if f.workers > 0 {
		cfg.Ingestion.Workers = f.workers
	}
	if f.batchSize > 0 {
		cfg.Ingestion.BatchSize = f.batchSize
	}
}

func loadConfigOrDie(globals GlobalFlags) *Config {
	cfg, err := LoadConfig(globals.ConfigPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Fix or remove ~/.sift/config.yaml, or pass --config",
			err,
		), globals.JSON)
	}
	return cfg
}

// openBackend opens the configured sink or exits.
func openBackend(cfg *Config, logger *slog.Logger, globals GlobalFlags) storage.Backend {
	dataDir, err := cfg.DataDir()
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot resolve data directory", err.Error(), "Set storage.data_dir", err), globals.JSON)
	}
	backend, err := storage.Open(storage.Config{
		Engine:  cfg.Storage.Engine,
		DataDir: dataDir,
		Logger:  logger,
	})
	if err != nil {
		if os.IsPermission(err) {
			errors.FatalError(errors.NewPermissionError(
				"Cannot open storage",
				fmt.Sprintf("Access to %s was denied", dataDir),
				"Check the directory permissions or set storage.data_dir",
				err,
			), globals.JSON)
		}
		errors.FatalError(errors.NewStorageError(
			"Cannot open storage",
			fmt.Sprintf("The %s engine failed to open %s", cfg.Storage.Engine, dataDir),
			"Close other sift processes using the same data directory",
			err,
		), globals.JSON)
	}
	return backend
}

// buildPolicy extends the default exclusions of home with the config's.
func buildPolicy(cfg *Config, home string) *walker.Policy {
	dirs := make([]string, 0, len(cfg.Exclude.Dirs))
	for _, d := range cfg.Exclude.Dirs {
		if p, err := expandHome(d); err == nil {
			dirs = append(dirs, p)
		}
	}
	return walker.DefaultPolicy(home).With(cfg.Exclude.Extensions, cfg.Exclude.DirNames, dirs)
}

// newPipeline builds the ingestion pipeline for cfg. onRecord may be nil.
func newPipeline(cfg *Config, f sinkFlags, policy *walker.Policy, sink storage.Sink, onRecord func(ingestion.ContentRecord), logger *slog.Logger, globals GlobalFlags) *ingestion.Pipeline {
	checkpointDir := ""
	if !f.noCheckpoint && cfg.Storage.Engine != storage.EngineMemory {
		dir, err := cfg.CheckpointDir()
		if err != nil {
			errors.FatalError(errors.NewConfigError("Cannot resolve checkpoint directory", err.Error(), "Set storage.data_dir", err), globals.JSON)
		}
		checkpointDir = dir
	}

	var stream *output.Stream
	if f.emit {
		stream = output.NewStream(os.Stdout)
	}

	p, err := ingestion.New(ingestion.Config{
		Collection:     cfg.Ingestion.Collection,
		Workers:        cfg.Ingestion.Workers,
		BatchSize:      cfg.Ingestion.BatchSize,
		Policy:         policy,
		CheckpointPath: checkpointDir,
		OnRecord: func(rec ingestion.ContentRecord) {
			if stream != nil {
				_ = stream.Write(rec)
			}
			if onRecord != nil {
				onRecord(rec)
			}
		},
	}, sink, logger)
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot create pipeline", err.Error(), "", err), globals.JSON)
	}
	return p
}

// printSummary renders a run summary as text or JSON. Streaming records with
// --emit owns stdout, so the summary then goes to stderr.
func printSummary(s *ingestion.Summary, extra [][2]string, globals GlobalFlags, emit bool) {
	if globals.JSON && !emit {
		_ = output.JSON(s)
		return
	}
	w := os.Stdout
	if emit {
		w = os.Stderr
	}
	p := ui.NewPrinter(w)

	fmt.Fprintln(w)
	p.Header("Ingestion summary")
	rows := [][2]string{
		{"Collection", s.Collection},
		{"Emitted", ui.CountText(int(s.Emitted), false)},
		{"Content", fmt.Sprintf("%d text, %d base64, %s", s.Text, s.Binary, humanize.Bytes(uint64(s.Bytes)))},
		{"Excluded", ui.CountText(int(s.Excluded), false)},
		{"Ignored", ui.CountText(int(s.Ignored), false)},
		{"Unreadable", ui.CountText(int(s.Dropped), true)},
		{"Sink errors", ui.CountText(int(s.SinkErrors), true)},
	}
	rows = append(rows, extra...)
	rows = append(rows,
		[2]string{"Ids", ui.DimText(fmt.Sprintf("%d..%d", s.FirstID, s.NextID))},
		[2]string{"Duration", s.Duration.Round(time.Millisecond).String()},
	)
	p.Fields(rows)
	fmt.Fprintln(w)

	switch {
	case s.SinkErrors > 0:
		p.Warningf("%d records were rejected by the sink", s.SinkErrors)
	case s.Emitted == 0:
		p.Warningf("No records were emitted")
	default:
		p.Successf("Stored %s records in %q", humanize.Comma(s.Emitted), s.Collection)
	}
}
