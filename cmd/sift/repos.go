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
)

// RepoInfo is one line of 'sift repos'.
type RepoInfo struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Private       bool      `json:"private"`
	Fork          bool      `json:"fork"`
	DefaultBranch string    `json:"default_branch"`
	SizeKB        int       `json:"size_kb"`
	PushedAt      time.Time `json:"pushed_at"`
}

// runRepos executes the 'repos' command: list the repositories the github
// command would fetch, without fetching their contents.
func runRepos(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("repos", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sift repos [owner]

Lists the repositories owned by owner (default: github.username).
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfigOrDie(globals)
	owner := ownerArg(fs, cfg, globals)
	logger := newLogger(globals)

	ctx, cancel := signalContext(logger)
	defer cancel()

	fetcher, _ := newFetcher(cfg, nil, logger, globals)
	repos, err := fetcher.ListRepositories(ctx, owner)
	if err != nil {
		errors.FatalError(remoteError(fmt.Sprintf("Cannot list repositories of %s", owner), err), globals.JSON)
	}

	infos := make([]RepoInfo, 0, len(repos))
	for _, r := range repos {
		infos = append(infos, RepoInfo{
			Name:          r.GetName(),
			FullName:      r.GetFullName(),
			Private:       r.GetPrivate(),
			Fork:          r.GetFork(),
			DefaultBranch: r.GetDefaultBranch(),
			SizeKB:        r.GetSize(),
			PushedAt:      r.GetPushedAt().Time,
		})
	}

	if globals.JSON {
		_ = output.JSON(infos)
		return
	}

	p := ui.NewPrinter(os.Stdout)
	p.Header(fmt.Sprintf("Repositories of %s", owner))
	for _, r := range infos {
		fmt.Println(formatRepoLine(r))
	}
	fmt.Println()
	p.Infof("%d repositories", len(infos))
}

// formatRepoLine renders one repository row. Columns are padded before
// coloring so escape sequences do not count toward the width.
func formatRepoLine(r RepoInfo) string {
	flags := ""
	if r.Private {
		flags += " private"
	}
	if r.Fork {
		flags += " fork"
	}
	pushed := "never"
	if !r.PushedAt.IsZero() {
		pushed = humanize.Time(r.PushedAt)
	}
	return fmt.Sprintf("  %s %8s  %s%s",
		ui.Label(fmt.Sprintf("%-40s", r.Name)),
		humanize.Bytes(uint64(r.SizeKB)*1024),
		ui.DimText("pushed "+pushed),
		flags,
	)
}
