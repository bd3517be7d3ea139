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
	"log/slog"
	"net/http"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/sift/internal/errors"
	"github.com/kraklabs/sift/internal/ui"
	"github.com/kraklabs/sift/pkg/cache"
	"github.com/kraklabs/sift/pkg/ingestion"
	"github.com/kraklabs/sift/pkg/ratelimit"
	"github.com/kraklabs/sift/pkg/remote"
	"github.com/kraklabs/sift/pkg/walker"
)

// runGitHub executes the 'github' command: fetch every repository of an
// owner and store each file as a record.
//
// Examples:
//
//	sift github octocat
//	sift github octocat --repo hello-world
func runGitHub(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("github", flag.ExitOnError)
	var sf sinkFlags
	addSinkFlags(fs, &sf)
	repo := fs.String("repo", "", "Fetch only this repository")
	maxDepth := fs.Int("max-depth", 0, "Maximum directory depth below a repository root")
	concurrency := fs.Int("concurrency", 0, "Maximum in-flight API calls")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sift github [owner] [options]

Fetches every repository owned by owner (default: github.username from the
config or SIFT_GITHUB_USER) and stores each file as a record with location
"github". Hidden paths and excluded extensions are skipped before download.

Set SIFT_GITHUB_TOKEN to raise the request quota and reach private
repositories.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfigOrDie(globals)
	sf.apply(cfg)
	if *maxDepth > 0 {
		cfg.Remote.MaxDepth = *maxDepth
	}
	if *concurrency > 0 {
		cfg.Remote.MaxConcurrent = *concurrency
	}
	owner := ownerArg(fs, cfg, globals)
	logger := newLogger(globals)

	ctx, cancel := signalContext(logger)
	defer cancel()
	startMetrics(ctx, globals.MetricsAddr, logger)

	home, _ := os.UserHomeDir()
	policy := buildPolicy(cfg, home)
	fetcher, contentCache := newFetcher(cfg, policy, logger, globals)

	progress := NewProgressConfig(globals)
	spinner := NewSpinner(progress, "Fetching "+owner)
	res, err := fetchOwner(ctx, fetcher, owner, *repo)
	finish(spinner)
	if err != nil {
		errors.FatalError(remoteError(fmt.Sprintf("Cannot fetch repositories of %s", owner), err), globals.JSON)
	}

	if !globals.JSON {
		p := ui.NewPrinter(os.Stderr)
		for _, r := range res.Repos {
			if r.Err != nil {
				p.Warningf("%s/%s: %v", owner, r.Name, r.Err)
			}
		}
	}

	backend := openBackend(cfg, logger, globals)
	defer func() { _ = backend.Close() }()

	bar := NewProgressBar(progress, int64(countFiles(res)), "Storing files")
	pipeline := newPipeline(cfg, sf, policy, backend, func(ingestion.ContentRecord) { advance(bar) }, logger, globals)

	summary, err := pipeline.RunRemote(ctx, res)
	finish(bar)
	if err != nil && summary == nil {
		errors.FatalError(errors.NewStorageError("Ingestion failed", err.Error(), "Check the storage configuration", err), globals.JSON)
	}

	cs := contentCache.Stats()
	extra := [][2]string{
		{"Repositories", fmt.Sprintf("%d fetched, %d failed", len(res.Repos)-len(res.Failed()), len(res.Failed()))},
		{"Fetch failures", ui.CountText(int(summary.RemoteFailures), true)},
		{"API calls", fmt.Sprintf("%d (cache %d hits, %d misses)", fetcher.Calls(), cs.Hits, cs.Misses)},
	}
	printSummary(summary, extra, globals, sf.emit)

	if stderrors.Is(err, context.Canceled) {
		os.Exit(errors.ExitInterrupted)
	}
}

// ownerArg returns the owner named on the command line or configured.
func ownerArg(fs *flag.FlagSet, cfg *Config, globals GlobalFlags) string {
	switch {
	case fs.NArg() > 1:
		errors.FatalError(errors.NewInputError("Too many arguments", "Expected a single owner", "sift "+fs.Name()+" [owner]"), globals.JSON)
	case fs.NArg() == 1:
		return fs.Arg(0)
	case cfg.GitHub.Username != "":
		return cfg.GitHub.Username
	}
	errors.FatalError(errors.NewInputError(
		"No owner given",
		"Neither an argument nor github.username is set",
		"Pass an owner, set SIFT_GITHUB_USER, or add github.username to ~/.sift/config.yaml",
	), globals.JSON)
	return ""
}

// newFetcher wires the limiter and cache into a remote fetcher. overrides
// adjust the remote config before construction; tests use them to point the
// fetcher at a fake server.
func newFetcher(cfg *Config, policy *walker.Policy, logger *slog.Logger, globals GlobalFlags, overrides ...func(*remote.Config)) (*remote.Fetcher, *cache.ContentCache) {
	limiter := ratelimit.New(cfg.RateLimit(), logger)
	contentCache, err := cache.New(cfg.Remote.CacheSize)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Invalid cache size", err.Error(), "Set remote.cache_size to a positive number", err), globals.JSON)
	}

	if cfg.GitHub.Token == "" {
		logger.Warn("remote.token.missing",
			"hint", "set SIFT_GITHUB_TOKEN; anonymous requests get a much smaller quota and no private repositories",
		)
	}

	rc := remote.Config{
		Token:      cfg.GitHub.Token,
		Limiter:    limiter,
		Cache:      contentCache,
		Skip:       policy.SkipRemote,
		MaxDepth:   cfg.Remote.MaxDepth,
		HTTPClient: &http.Client{Timeout: cfg.Remote.Timeout},
		Logger:     logger,
	}
	for _, o := range overrides {
		o(&rc)
	}
	fetcher, err := remote.New(rc)
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot create remote fetcher", err.Error(), "", err), globals.JSON)
	}
	return fetcher, contentCache
}

// fetchOwner fetches all repositories of owner, or only repo when set.
func fetchOwner(ctx context.Context, f *remote.Fetcher, owner, repo string) (*remote.OwnerResult, error) {
	if repo == "" {
		return f.FetchAll(ctx, owner)
	}
	res, err := f.FetchRepository(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return &remote.OwnerResult{Owner: owner, Repos: []remote.RepoResult{{Name: repo, Result: res}}}, nil
}

func countFiles(res *remote.OwnerResult) int {
	n := 0
	for _, r := range res.Repos {
		n += len(r.Result.Files())
	}
	return n
}
