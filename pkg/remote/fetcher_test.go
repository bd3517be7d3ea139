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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sifttest "github.com/kraklabs/sift/internal/testing"
	"github.com/kraklabs/sift/pkg/cache"
	"github.com/kraklabs/sift/pkg/ratelimit"
)

func newTestFetcher(t *testing.T, fake *sifttest.FakeGitHub, mutate func(*Config)) *Fetcher {
	t.Helper()

	memo, err := cache.New(cache.DefaultCapacity)
	require.NoError(t, err)

	cfg := Config{
		Token:      "test-token",
		Limiter:    ratelimit.New(ratelimit.DefaultConfig(), nil),
		Cache:      memo,
		APIBaseURL: fake.APIURL(),
		RawBaseURL: fake.RawURL(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

func TestNew_RequiresLimiterAndCache(t *testing.T) {
	memo, err := cache.New(0)
	require.NoError(t, err)

	_, err = New(Config{Cache: memo})
	assert.Error(t, err)

	_, err = New(Config{Limiter: ratelimit.New(ratelimit.DefaultConfig(), nil)})
	assert.Error(t, err)
}

func TestFetchRepository_ResolvesNestedTree(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{
		"main.go":     "package main",
		"README.md":   "# demo",
		"sub/util.go": "package sub",
	})
	f := newTestFetcher(t, fake, nil)

	res, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)

	assert.Len(t, res.Entries, 3)
	assert.Len(t, res.Listing, 3)
	assert.Equal(t, EntryFile, res.Entries["main.go"].Kind)
	assert.Equal(t, "package main", res.Entries["main.go"].Content)
	assert.Equal(t, EntryFile, res.Entries["README.md"].Kind)

	sub := res.Entries["sub"]
	require.Equal(t, EntryDir, sub.Kind)
	require.NotNil(t, sub.Dir)
	assert.Len(t, sub.Dir.Entries, 1)
	assert.Equal(t, "package sub", sub.Dir.Entries["sub/util.go"].Content)

	// The sub-directory is listed exactly once.
	assert.Equal(t, 1, fake.Calls("/api/repos/octo/demo/contents/sub"))
	assert.Equal(t, 1, fake.Calls("/api/repos/octo/demo/contents/"))

	files := res.Files()
	require.Len(t, files, 3)
	assert.Equal(t, "README.md", files[0].Path)
	assert.Equal(t, "sub/util.go", files[2].Path)
	assert.Empty(t, res.Failures())
}

func TestFetchRepository_FallsBackToSecondaryBranch(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddBranchFile("octo", "legacy", "master", "README.md", "old default branch")
	f := newTestFetcher(t, fake, nil)

	res, err := f.FetchRepository(context.Background(), "octo", "legacy")
	require.NoError(t, err)

	e := res.Entries["README.md"]
	require.Equal(t, EntryFile, e.Kind)
	assert.Equal(t, "old default branch", e.Content)
	assert.Equal(t, 1, fake.Calls("/raw/octo/legacy/main/README.md"))
	assert.Equal(t, 1, fake.Calls("/raw/octo/legacy/master/README.md"))
}

func TestFetchRepository_EscapesRawPaths(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "names", map[string]string{
		"a%20b.txt":      "percent file",
		"a b.txt":        "space file",
		"100%.txt":       "hundred",
		"dir #1/note.md": "hash dir",
	})
	f := newTestFetcher(t, fake, nil)

	res, err := f.FetchRepository(context.Background(), "octo", "names")
	require.NoError(t, err)
	assert.Empty(t, res.Failures())

	byPath := map[string]string{}
	for _, file := range res.Files() {
		byPath[file.Path] = file.Content
	}
	assert.Equal(t, map[string]string{
		"a%20b.txt":      "percent file",
		"a b.txt":        "space file",
		"100%.txt":       "hundred",
		"dir #1/note.md": "hash dir",
	}, byPath)
	assert.Equal(t, 1, fake.Calls("/raw/octo/names/main/a%20b.txt"))
	assert.Equal(t, 1, fake.Calls("/raw/octo/names/main/100%.txt"))
}

func TestFetchRepository_BothBranchesFail(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{"ok.txt": "fine", "gone.txt": "unused"})
	fake.Fail("/raw/octo/demo/main/gone.txt", http.StatusInternalServerError)
	fake.Fail("/raw/octo/demo/master/gone.txt", http.StatusNotFound)
	f := newTestFetcher(t, fake, nil)

	res, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)

	gone := res.Entries["gone.txt"]
	require.Equal(t, EntryFailed, gone.Kind)
	var ue *UpstreamError
	require.True(t, errors.As(gone.Err, &ue))
	assert.Equal(t, "raw", ue.Op)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
	assert.Equal(t, 1, fake.Calls("/raw/octo/demo/main/gone.txt"))
	assert.Equal(t, 1, fake.Calls("/raw/octo/demo/master/gone.txt"))

	assert.Equal(t, EntryFile, res.Entries["ok.txt"].Kind)
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "gone.txt", res.Failures()[0].Path)
}

func TestFetchRepository_TopLevelFailureIsReturned(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "broken", map[string]string{"a.txt": "a"})
	fake.Fail("/api/repos/octo/broken/contents/", http.StatusForbidden)
	f := newTestFetcher(t, fake, nil)

	res, err := f.FetchRepository(context.Background(), "octo", "broken")
	require.Error(t, err)
	assert.Nil(t, res)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "list", ue.Op)
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
	assert.Equal(t, cache.KindContents, ue.Key.Kind)
}

func TestFetchRepository_SubdirectoryFailureIsIsolated(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{
		"a.txt":     "a",
		"bad/b.txt": "b",
		"good/c.md": "c",
	})
	fake.Fail("/api/repos/octo/demo/contents/bad", http.StatusBadGateway)
	f := newTestFetcher(t, fake, nil)

	res, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)

	assert.Equal(t, EntryFailed, res.Entries["bad"].Kind)
	assert.Equal(t, EntryDir, res.Entries["good"].Kind)
	assert.Equal(t, EntryFile, res.Entries["a.txt"].Kind)
	assert.Len(t, res.Files(), 2)
}

func TestFetchRepository_OtherTypesBecomeNull(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{"a.txt": "a"})
	fake.AddSpecial("octo", "demo", "vendor-link", "symlink")
	fake.AddSpecial("octo", "demo", "third_party", "submodule")
	f := newTestFetcher(t, fake, nil)

	res, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)

	assert.Equal(t, EntryNull, res.Entries["vendor-link"].Kind)
	assert.Equal(t, EntryNull, res.Entries["third_party"].Kind)
	assert.Equal(t, 0, fake.Calls("/raw/octo/demo/main/vendor-link"))
	assert.Equal(t, 1, res.Counts()[EntryFile])
	assert.Equal(t, 2, res.Counts()[EntryNull])
}

func TestFetchRepository_CachedResultIssuesNoCalls(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{"a.txt": "a", "dir/b.txt": "b"})
	f := newTestFetcher(t, fake, nil)

	first, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)
	calls := fake.TotalCalls()
	assert.Equal(t, int64(calls), f.Calls())

	second, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, calls, fake.TotalCalls())
}

func TestFetchRepository_SkipFuncFiltersBeforeFetching(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{
		"keep.go":        "package keep",
		".env":           "SECRET=1",
		"archive.zip":    "PK",
		".github/ci.yml": "on: push",
	})
	f := newTestFetcher(t, fake, func(c *Config) {
		c.Skip = func(p string, isDir bool) bool {
			base := p[strings.LastIndex(p, "/")+1:]
			return strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".zip")
		}
	})

	res, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)

	assert.Len(t, res.Entries, 1)
	assert.Contains(t, res.Entries, "keep.go")
	assert.Len(t, res.Listing, 4)
	assert.Equal(t, 0, fake.Calls("/api/repos/octo/demo/contents/.github"))
	assert.Equal(t, 0, fake.Calls("/raw/octo/demo/main/.env"))
}

func TestFetchRepository_MaxDepth(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "deep", map[string]string{"a/b/c/d.txt": "deep"})
	f := newTestFetcher(t, fake, func(c *Config) { c.MaxDepth = 1 })

	res, err := f.FetchRepository(context.Background(), "octo", "deep")
	require.NoError(t, err)

	a := res.Entries["a"]
	require.Equal(t, EntryDir, a.Kind)
	b := a.Dir.Entries["a/b"]
	require.Equal(t, EntryFailed, b.Kind)
	assert.ErrorIs(t, b.Err, ErrMaxDepth)
	assert.Equal(t, 0, fake.Calls("/api/repos/octo/deep/contents/a/b"))
}

func TestFetcher_SendsFixedHeaders(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{"a.txt": "a"})
	f := newTestFetcher(t, fake, nil)

	_, err := f.FetchRepository(context.Background(), "octo", "demo")
	require.NoError(t, err)

	// The last request is the raw download.
	assert.Equal(t, "Bearer test-token", fake.LastHeader("Authorization"))
	assert.Equal(t, APIVersion, fake.LastHeader("X-GitHub-Api-Version"))
	assert.Equal(t, AcceptHeader, fake.LastHeader("Accept"))
	assert.Equal(t, UserAgent, fake.LastHeader("User-Agent"))
}

func TestListRepositories_FollowsPagination(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	for i := 0; i < 130; i++ {
		fake.AddRepo("prolific", fmt.Sprintf("repo-%03d", i), nil)
	}
	f := newTestFetcher(t, fake, nil)

	repos, err := f.ListRepositories(context.Background(), "prolific")
	require.NoError(t, err)
	assert.Len(t, repos, 130)
	assert.Equal(t, "repo-000", repos[0].GetName())
	assert.Equal(t, "repo-129", repos[129].GetName())
	assert.Equal(t, 2, fake.Calls("/api/search/repositories"))

	_, err = f.ListRepositories(context.Background(), "prolific")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls("/api/search/repositories"))
}

func TestFetchAll_IsolatesRepositoryFailures(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "alpha", map[string]string{"a.txt": "a"})
	fake.AddRepo("octo", "beta", map[string]string{"b.txt": "b"})
	fake.AddRepo("octo", "gamma", map[string]string{"g.txt": "g"})
	fake.Fail("/api/repos/octo/beta/contents/", http.StatusNotFound)
	f := newTestFetcher(t, fake, nil)

	out, err := f.FetchAll(context.Background(), "octo")
	require.NoError(t, err)
	require.Len(t, out.Repos, 3)

	assert.Equal(t, "alpha", out.Repos[0].Name)
	assert.NoError(t, out.Repos[0].Err)
	assert.Len(t, out.Repos[0].Result.Files(), 1)

	assert.Equal(t, "beta", out.Repos[1].Name)
	assert.Error(t, out.Repos[1].Err)
	assert.Nil(t, out.Repos[1].Result)

	assert.NoError(t, out.Repos[2].Err)
	require.Len(t, out.Failed(), 1)
	assert.Equal(t, "beta", out.Failed()[0].Name)
}

func TestFetchAll_SearchFailureIsReturned(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.Fail("/api/search/repositories", http.StatusUnauthorized)
	f := newTestFetcher(t, fake, nil)

	_, err := f.FetchAll(context.Background(), "octo")
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "search", ue.Op)
	assert.Equal(t, http.StatusUnauthorized, ue.StatusCode)
}

func TestFetcher_CancelledContext(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{"a.txt": "a"})
	f := newTestFetcher(t, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchRepository(ctx, "octo", "demo")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fake.TotalCalls())
}

func TestIsBelow(t *testing.T) {
	assert.True(t, isBelow("", "a"))
	assert.True(t, isBelow("a", "a/b"))
	assert.False(t, isBelow("a", "a"))
	assert.False(t, isBelow("a", "ab/c"))
	assert.False(t, isBelow("", ""))
}
