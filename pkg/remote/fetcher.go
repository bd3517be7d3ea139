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

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v74/github"
	"golang.org/x/sync/singleflight"

	"github.com/kraklabs/sift/pkg/cache"
	"github.com/kraklabs/sift/pkg/ratelimit"
)

const (
	// DefaultMaxDepth bounds directory recursion.
	DefaultMaxDepth = 32

	searchPageSize = 100
	maxSearchPages = 10
)

// DefaultBranches is the fixed fallback order for raw file downloads.
var DefaultBranches = []string{"main", "master"}

// SkipFunc reports whether a listed path must be left out of a FetchResult.
// Skipped items are neither fetched nor recorded.
type SkipFunc func(path string, isDir bool) bool

// Config configures a Fetcher.
type Config struct {
	// Token is the optional API credential.
	Token string

	// Limiter gates every remote call. Required.
	Limiter *ratelimit.Limiter

	// Cache memoizes resolved resources. Required.
	Cache *cache.ContentCache

	// Skip filters listed items before they are resolved. Nil keeps everything.
	Skip SkipFunc

	// MaxDepth bounds directory recursion (default: DefaultMaxDepth).
	MaxDepth int

	// Branches overrides DefaultBranches.
	Branches []string

	// APIBaseURL and RawBaseURL override the upstream hosts.
	APIBaseURL string
	RawBaseURL string

	// HTTPClient supplies the base transport and timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Fetcher resolves repositories of a hosted service into FetchResult trees.
// It is safe for concurrent use.
type Fetcher struct {
	gh       *github.Client
	rawBase  *url.URL
	limiter  *ratelimit.Limiter
	cache    *cache.ContentCache
	group    singleflight.Group
	skip     SkipFunc
	maxDepth int
	branches []string
	logger   *slog.Logger

	calls atomic.Int64
}

// New creates a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Limiter == nil {
		return nil, errors.New("remote: limiter is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("remote: cache is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if len(cfg.Branches) == 0 {
		cfg.Branches = DefaultBranches
	}
	if cfg.RawBaseURL == "" {
		cfg.RawBaseURL = DefaultRawBaseURL
	}

	gh, err := newGitHubClient(cfg.Token, cfg.APIBaseURL, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	rawBase, err := parseBaseURL(cfg.RawBaseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: raw base url: %w", err)
	}

	return &Fetcher{
		gh:       gh,
		rawBase:  rawBase,
		limiter:  cfg.Limiter,
		cache:    cfg.Cache,
		skip:     cfg.Skip,
		maxDepth: cfg.MaxDepth,
		branches: cfg.Branches,
		logger:   cfg.Logger,
	}, nil
}

// Calls returns the number of remote calls issued so far.
func (f *Fetcher) Calls() int64 {
	return f.calls.Load()
}

// ListRepositories returns the repositories owned by owner, following search
// pagination. The result is cached under a KindRepos key.
func (f *Fetcher) ListRepositories(ctx context.Context, owner string) ([]*github.Repository, error) {
	key := cache.ResourceKey{Kind: cache.KindRepos, Owner: owner}
	if v, ok := f.cache.Get(key); ok {
		if repos, ok := v.([]*github.Repository); ok {
			return repos, nil
		}
	}

	v, err, _ := f.group.Do(key.String(), func() (any, error) {
		if v, ok := f.cache.Get(key); ok {
			if repos, ok := v.([]*github.Repository); ok {
				return repos, nil
			}
		}

		opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: searchPageSize}}
		query := "user:" + owner
		var repos []*github.Repository

		for page := 0; page < maxSearchPages; page++ {
			var (
				res  *github.RepositoriesSearchResult
				resp *github.Response
			)
			err := f.call(ctx, "search", func(ctx context.Context) error {
				var err error
				res, resp, err = f.gh.Search.Repositories(ctx, query, opts)
				return err
			})
			if err != nil {
				return nil, newUpstreamError("search", key, err)
			}
			repos = append(repos, res.Repositories...)
			if resp == nil || resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}

		f.cache.Put(key, repos)
		f.logger.Debug("remote.repos.listed", "owner", owner, "count", len(repos))
		return repos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*github.Repository), nil
}

// FetchRepository resolves the whole tree of owner/repo. Only a failure of
// the top-level listing is returned as an error; everything below it is
// recorded in the result.
func (f *Fetcher) FetchRepository(ctx context.Context, owner, repo string) (*FetchResult, error) {
	start := time.Now()
	res, err := f.fetchDir(ctx, owner, repo, "", 0)
	if err != nil {
		f.logger.Warn("remote.repo.failed", "owner", owner, "repo", repo, "err", err)
		recordRepo(false)
		return nil, err
	}
	counts := res.Counts()
	f.logger.Info("remote.repo.fetched",
		"owner", owner,
		"repo", repo,
		"files", counts[EntryFile],
		"dirs", counts[EntryDir],
		"failed", counts[EntryFailed],
		"duration_ms", time.Since(start).Milliseconds(),
	)
	recordRepo(true)
	return res, nil
}

// FetchAll lists every repository of owner and fetches them concurrently.
// A repository that fails is reported in its RepoResult and does not affect
// the others. Only a failed repository search is returned as an error.
func (f *Fetcher) FetchAll(ctx context.Context, owner string) (*OwnerResult, error) {
	repos, err := f.ListRepositories(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := &OwnerResult{Owner: owner, Repos: make([]RepoResult, len(repos))}
	var wg sync.WaitGroup
	for i, r := range repos {
		name := r.GetName()
		out.Repos[i].Name = name
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			res, err := f.FetchRepository(ctx, owner, name)
			out.Repos[i].Result = res
			out.Repos[i].Err = err
		}(i, name)
	}
	wg.Wait()
	return out, nil
}

// fetchDir resolves one directory, consulting the cache first and
// collapsing concurrent requests for the same directory into one.
func (f *Fetcher) fetchDir(ctx context.Context, owner, repo, dir string, depth int) (*FetchResult, error) {
	key := cache.ResourceKey{Kind: cache.KindContents, Owner: owner, Repo: repo, Path: dir}
	if v, ok := f.cache.Get(key); ok {
		if res, ok := v.(*FetchResult); ok {
			return res, nil
		}
	}
	if depth > f.maxDepth {
		return nil, &UpstreamError{Op: "list", Key: key, Err: ErrMaxDepth}
	}

	v, err, _ := f.group.Do(key.String(), func() (any, error) {
		if v, ok := f.cache.Get(key); ok {
			if res, ok := v.(*FetchResult); ok {
				return res, nil
			}
		}
		return f.resolveDir(ctx, key, depth)
	})
	if err != nil {
		return nil, err
	}
	return v.(*FetchResult), nil
}

func (f *Fetcher) resolveDir(ctx context.Context, key cache.ResourceKey, depth int) (*FetchResult, error) {
	var listing []*github.RepositoryContent
	err := f.call(ctx, "contents", func(ctx context.Context) error {
		file, dir, _, err := f.gh.Repositories.GetContents(ctx, key.Owner, key.Repo, key.Path, nil)
		if err != nil {
			return err
		}
		if file != nil {
			listing = []*github.RepositoryContent{file}
		} else {
			listing = dir
		}
		return nil
	})
	if err != nil {
		return nil, newUpstreamError("list", key, err)
	}

	result := &FetchResult{
		Owner:   key.Owner,
		Repo:    key.Repo,
		Path:    key.Path,
		Listing: listing,
		Entries: make(map[string]Entry, len(listing)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, item := range listing {
		path := item.GetPath()
		isDir := item.GetType() == "dir"
		if f.skip != nil && f.skip(path, isDir) {
			continue
		}
		wg.Add(1)
		go func(item *github.RepositoryContent) {
			defer wg.Done()
			e := f.resolveEntry(ctx, key, item, depth)
			mu.Lock()
			result.Entries[e.Path] = e
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	f.cache.Put(key, result)
	return result, nil
}

func (f *Fetcher) resolveEntry(ctx context.Context, parent cache.ResourceKey, item *github.RepositoryContent, depth int) Entry {
	e := Entry{
		Type:    item.GetType(),
		Path:    item.GetPath(),
		Size:    item.GetSize(),
		HTMLURL: item.GetHTMLURL(),
	}

	switch e.Type {
	case "file":
		content, err := f.fetchFile(ctx, parent.Owner, parent.Repo, e.Path)
		if err != nil {
			f.logger.Warn("remote.file.failed", "owner", parent.Owner, "repo", parent.Repo, "path", e.Path, "err", err)
			e.Kind, e.Err = EntryFailed, err
			return e
		}
		e.Kind, e.Content = EntryFile, content

	case "dir":
		if !isBelow(parent.Path, e.Path) {
			e.Kind = EntryFailed
			e.Err = &UpstreamError{Op: "list", Key: cache.ResourceKey{Kind: cache.KindContents, Owner: parent.Owner, Repo: parent.Repo, Path: e.Path}, Err: ErrInvalidListing}
			return e
		}
		sub, err := f.fetchDir(ctx, parent.Owner, parent.Repo, e.Path, depth+1)
		if err != nil {
			f.logger.Warn("remote.dir.failed", "owner", parent.Owner, "repo", parent.Repo, "path", e.Path, "err", err)
			e.Kind, e.Err = EntryFailed, err
			return e
		}
		e.Kind, e.Dir = EntryDir, sub

	default:
		e.Kind = EntryNull
	}
	return e
}

// fetchFile downloads one file, trying each branch in order.
func (f *Fetcher) fetchFile(ctx context.Context, owner, repo, path string) (string, error) {
	key := cache.ResourceKey{Kind: cache.KindFile, Owner: owner, Repo: repo, Path: path}
	if v, ok := f.cache.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}

	v, err, _ := f.group.Do(key.String(), func() (any, error) {
		if v, ok := f.cache.Get(key); ok {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}

		var lastErr error
		for _, branch := range f.branches {
			content, err := f.getRaw(ctx, owner, repo, branch, path)
			if err == nil {
				f.cache.Put(key, content)
				return content, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
		}
		return nil, newUpstreamError("raw", key, lastErr)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// rawURL builds the raw download URL. Every segment is escaped, so names
// containing '%', spaces or '#' address the file they name.
func (f *Fetcher) rawURL(owner, repo, branch, filePath string) string {
	segs := append([]string{owner, repo, branch}, strings.Split(filePath, "/")...)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return f.rawBase.String() + strings.Join(segs, "/")
}

func (f *Fetcher) getRaw(ctx context.Context, owner, repo, branch, filePath string) (string, error) {
	u := f.rawURL(owner, repo, branch, filePath)
	var buf bytes.Buffer
	err := f.call(ctx, "raw", func(ctx context.Context) error {
		buf.Reset()
		req, err := f.gh.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		_, err = f.gh.Do(ctx, req, &buf)
		return err
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// call runs one remote call under a limiter permit and records it.
func (f *Fetcher) call(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := f.limiter.Do(ctx, func(ctx context.Context) error {
		f.calls.Add(1)
		return fn(ctx)
	})
	recordCall(endpoint, err, time.Since(start))
	return err
}

// isBelow reports whether child lies strictly below dir.
func isBelow(dir, child string) bool {
	if child == "" || child == dir {
		return false
	}
	if dir == "" {
		return true
	}
	return strings.HasPrefix(child, dir+"/")
}
