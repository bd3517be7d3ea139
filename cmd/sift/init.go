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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/sift/internal/errors"
	"github.com/kraklabs/sift/internal/ui"
)

// runInit executes the 'init' command, writing a config file with defaults
// and the given overrides.
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.BoolP("force", "f", false, "Overwrite an existing config file")
	username := fs.String("username", "", "Default owner for 'github' and 'repos'")
	engine := fs.String("engine", "", "Storage engine: sqlite, badger or memory")
	dataDir := fs.String("data-dir", "", "Storage directory")
	collection := fs.String("collection", "", "Default collection")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sift init [options]

Creates ~/.sift/config.yaml (or the file named by --config). The API token
is never written to the file; export SIFT_GITHUB_TOKEN instead.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path := globals.ConfigPath
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			errors.FatalError(errors.NewConfigError("Cannot find home directory", err.Error(), "Pass --config", err), globals.JSON)
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !*force {
		errors.FatalError(errors.NewInputError(
			"Config file already exists",
			path,
			"Edit it directly or rerun with --force",
		), globals.JSON)
	}

	cfg := DefaultConfig()
	cfg.GitHub.Username = *username
	sinkFlags{engine: *engine, dataDir: *dataDir, collection: *collection}.apply(cfg)
	if err := cfg.Validate(); err != nil {
		errors.FatalError(errors.NewInputError("Invalid option", err.Error(), "See sift init --help"), globals.JSON)
	}
	if err := SaveConfig(cfg, path); err != nil {
		errors.FatalError(errors.NewPermissionError("Cannot save configuration", err.Error(), "Check permissions on "+path, err), globals.JSON)
	}

	p := ui.NewPrinter(os.Stdout)
	p.Successf("Created %s", path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  export SIFT_GITHUB_TOKEN=...   Raise the API quota")
	fmt.Println("  sift local                     Ingest your home directory")
	fmt.Println("  sift github <owner>            Ingest an account's repositories")
}
