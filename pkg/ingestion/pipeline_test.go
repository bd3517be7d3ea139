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

package ingestion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sifttest "github.com/kraklabs/sift/internal/testing"
	"github.com/kraklabs/sift/pkg/cache"
	"github.com/kraklabs/sift/pkg/ratelimit"
	"github.com/kraklabs/sift/pkg/remote"
	"github.com/kraklabs/sift/pkg/storage"
	"github.com/kraklabs/sift/pkg/walker"
)

// countingSink records every Add call and can be told to fail.
type countingSink struct {
	storage.Backend
	adds atomic.Int64
	fail bool
}

func (s *countingSink) Add(ctx context.Context, collection string, documents, ids []string, metadatas []storage.Metadata) error {
	s.adds.Add(1)
	if s.fail {
		return errors.New("sink unavailable")
	}
	return s.Backend.Add(ctx, collection, documents, ids, metadatas)
}

func newTestPipeline(t *testing.T, sink storage.Sink, mutate func(*Config)) *Pipeline {
	t.Helper()
	cfg := Config{Workers: 4}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg, sink, nil)
	require.NoError(t, err)
	return p
}

func localWalk(root string) walker.Config {
	return walker.Config{Root: root, Policy: walker.DefaultPolicy(root), NoGlobalExcludes: true}
}

func feed(items ...Item) <-chan Item {
	ch := make(chan Item, len(items))
	for _, it := range items {
		ch <- it
	}
	close(ch)
	return ch
}

func TestRunLocal_EmitsTextAndExcludesPolicy(t *testing.T) {
	root := t.TempDir()
	sifttest.WriteTree(t, root, map[string]string{
		"notes.txt":          "hello",
		"src/main.go":        "package main",
		"docs/readme.md":     "# readme",
		"data/export.csv":    "a,b,c",
		"Library/cache.json": "{}",
	})
	backend := sifttest.SetupTestBackend(t)
	p := newTestPipeline(t, backend, func(c *Config) { c.Policy = walker.DefaultPolicy(root) })

	summary, stats, err := p.RunLocal(context.Background(), localWalk(root))
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.Emitted)
	assert.Equal(t, int64(2), summary.Excluded)
	assert.Zero(t, summary.Dropped)
	assert.Equal(t, int64(3), summary.Text)
	assert.Equal(t, int64(3), stats.Files)

	docs := sifttest.ListDocuments(t, backend, DefaultCollection)
	require.Len(t, docs, 3)
	byPath := sifttest.DocumentsByPath(docs)
	notes := byPath[filepath.Join(root, "notes.txt")]
	assert.Equal(t, "hello", notes.Content)
	assert.Equal(t, "notes.txt", notes.Metadata["filename"])
	assert.Equal(t, "txt", notes.Metadata["extension"])
	assert.Equal(t, "5", notes.Metadata["size"])
	assert.Equal(t, SourceLocal, notes.Metadata["location"])
	assert.Equal(t, EncodingText, notes.Metadata["encoding"])
}

func TestRun_IdsAreUniqueAndIncreasing(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for i := 0; i < 50; i++ {
		files[fmt.Sprintf("d%d/f%02d.txt", i%5, i)] = "x"
	}
	sifttest.WriteTree(t, root, files)
	backend := sifttest.SetupTestBackend(t)
	p := newTestPipeline(t, backend, func(c *Config) { c.Workers = 8 })

	summary, _, err := p.RunLocal(context.Background(), localWalk(root))
	require.NoError(t, err)
	assert.Equal(t, int64(50), summary.Emitted)
	assert.Equal(t, uint64(0), summary.FirstID)
	assert.Equal(t, uint64(50), summary.NextID)

	docs := sifttest.ListDocuments(t, backend, DefaultCollection)
	require.Len(t, docs, 50)
	for i, d := range docs {
		assert.Equal(t, FormatID(uint64(i)), d.ID)
	}
}

func TestRun_BinaryContentIsBase64(t *testing.T) {
	root := t.TempDir()
	raw := []byte{0xff, 0xfe, 0x00, 0x01, 0x80}
	path := sifttest.WriteFile(t, root, "blob.raw", raw)
	backend := sifttest.SetupTestBackend(t)
	p := newTestPipeline(t, backend, nil)

	summary, err := p.Run(context.Background(), feed(Item{Path: path, Source: SourceLocal}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Binary)

	doc, err := backend.Get(context.Background(), DefaultCollection, "0")
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), doc.Content)
	assert.Equal(t, EncodingBase64, doc.Metadata["encoding"])
	assert.Equal(t, "5", doc.Metadata["size"])
}

func TestRun_DefensiveExclusionConsumesNoID(t *testing.T) {
	root := t.TempDir()
	zip := sifttest.WriteFile(t, root, "bundle.zip", []byte("PK"))
	txt := sifttest.WriteFile(t, root, "a.txt", []byte("a"))
	backend := sifttest.SetupTestBackend(t)
	p := newTestPipeline(t, backend, func(c *Config) { c.Workers = 1 })

	summary, err := p.Run(context.Background(), feed(
		Item{Path: zip, Source: SourceLocal},
		Item{Path: txt, Source: SourceLocal},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Discovered)
	assert.Equal(t, int64(1), summary.Excluded)
	assert.Equal(t, int64(1), summary.Emitted)
	assert.Equal(t, uint64(1), p.NextID())
}

func TestRun_UnreadableFileIsDropped(t *testing.T) {
	root := t.TempDir()
	ok := sifttest.WriteFile(t, root, "ok.md", []byte("fine"))
	backend := sifttest.SetupTestBackend(t)
	p := newTestPipeline(t, backend, nil)

	summary, err := p.Run(context.Background(), feed(
		Item{Path: filepath.Join(root, "vanished.txt"), Source: SourceLocal},
		Item{Path: ok, Source: SourceLocal},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Dropped)
	assert.Equal(t, int64(1), summary.Emitted)
	assert.Equal(t, uint64(2), summary.NextID)
}

func TestRun_SinkErrorsAreCounted(t *testing.T) {
	root := t.TempDir()
	a := sifttest.WriteFile(t, root, "a.txt", []byte("a"))
	b := sifttest.WriteFile(t, root, "b.txt", []byte("b"))
	sink := &countingSink{Backend: storage.NewMemoryBackend(), fail: true}
	p := newTestPipeline(t, sink, nil)

	summary, err := p.Run(context.Background(), feed(
		Item{Path: a, Source: SourceLocal},
		Item{Path: b, Source: SourceLocal},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.SinkErrors)
	assert.Zero(t, summary.Emitted)
}

func TestRun_BatchSizeGroupsSinkCalls(t *testing.T) {
	root := t.TempDir()
	var items []Item
	for i := 0; i < 5; i++ {
		items = append(items, Item{Path: sifttest.WriteFile(t, root, fmt.Sprintf("f%d.txt", i), []byte("x")), Source: SourceLocal})
	}
	sink := &countingSink{Backend: storage.NewMemoryBackend()}
	p := newTestPipeline(t, sink, func(c *Config) { c.BatchSize = 2 })

	summary, err := p.Run(context.Background(), feed(items...))
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.Emitted)
	assert.Equal(t, int64(3), sink.adds.Load())
}

func TestRun_OnRecordSeesEveryEmission(t *testing.T) {
	root := t.TempDir()
	var items []Item
	for i := 0; i < 10; i++ {
		items = append(items, Item{Path: sifttest.WriteFile(t, root, fmt.Sprintf("f%d.txt", i), []byte("x")), Source: SourceLocal})
	}
	var mu sync.Mutex
	seen := make(map[string]bool)
	p := newTestPipeline(t, sifttest.SetupTestBackend(t), func(c *Config) {
		c.OnRecord = func(rec ContentRecord) {
			mu.Lock()
			seen[rec.ID] = true
			mu.Unlock()
		}
	})

	_, err := p.Run(context.Background(), feed(items...))
	require.NoError(t, err)
	assert.Len(t, seen, 10)
}

func TestRun_CancelledContext(t *testing.T) {
	p := newTestPipeline(t, sifttest.SetupTestBackend(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := make(chan Item)

	summary, err := p.Run(ctx, items)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Zero(t, summary.Emitted)
}

func TestRun_RepeatedRunWithoutCheckpointReplacesRecords(t *testing.T) {
	root := t.TempDir()
	sifttest.WriteTree(t, root, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})
	backend := sifttest.SetupTestBackend(t)

	for i := 0; i < 2; i++ {
		p := newTestPipeline(t, backend, nil)
		summary, _, err := p.RunLocal(context.Background(), localWalk(root))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), summary.FirstID)
	}

	n, err := backend.Count(context.Background(), DefaultCollection)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunLocal_UnchangedTreeYieldsSameRecords(t *testing.T) {
	root := t.TempDir()
	sifttest.WriteTree(t, root, map[string]string{
		"top.txt":             "top",
		"nested/mid.md":       "# mid",
		"nested/deeper/x.go":  "package x",
		"nested/deeper/noext": "plain",
	})
	sifttest.WriteFile(t, root, "nested/blob.raw", []byte{0x00, 0xff, 0x10, 0x80, 0x7f, 0x00})

	type record struct{ path, ext, size string }
	walk := func() []record {
		backend := sifttest.SetupTestBackend(t)
		p := newTestPipeline(t, backend, func(c *Config) { c.Workers = 3 })
		summary, _, err := p.RunLocal(context.Background(), localWalk(root))
		require.NoError(t, err)
		assert.Equal(t, int64(1), summary.Binary)

		var out []record
		for _, d := range sifttest.ListDocuments(t, backend, DefaultCollection) {
			out = append(out, record{d.Metadata["filepath"], d.Metadata["extension"], d.Metadata["size"]})
		}
		return out
	}

	first, second := walk(), walk()
	require.Len(t, first, 5)
	assert.ElementsMatch(t, first, second)
	assert.Contains(t, first, record{filepath.Join(root, "nested", "blob.raw"), "raw", "6"})
}

func TestRun_CheckpointContinuesSequence(t *testing.T) {
	root := t.TempDir()
	sifttest.WriteTree(t, root, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})
	backend := sifttest.SetupTestBackend(t)
	checkpoints := t.TempDir()

	first := newTestPipeline(t, backend, func(c *Config) { c.CheckpointPath = checkpoints })
	s1, _, err := first.RunLocal(context.Background(), localWalk(root))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s1.NextID)

	second := newTestPipeline(t, backend, func(c *Config) { c.CheckpointPath = checkpoints })
	assert.Equal(t, uint64(3), second.NextID())
	s2, _, err := second.RunLocal(context.Background(), localWalk(root))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s2.FirstID)
	assert.Equal(t, uint64(6), s2.NextID)

	n, err := backend.Count(context.Background(), DefaultCollection)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	cp, err := NewCheckpointManager(checkpoints).LoadCheckpoint(DefaultCollection)
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Runs)
	assert.Equal(t, int64(6), cp.RecordsEmitted)
}

func TestRunRemote_IngestsFetchedFiles(t *testing.T) {
	fake := sifttest.NewFakeGitHub(t)
	fake.AddRepo("octo", "alpha", map[string]string{
		"README.md":   "# alpha",
		"src/lib.go":  "package lib",
		"dist/app.gz": "gz",
	})
	fake.AddRepo("octo", "beta", map[string]string{"x.txt": "x"})
	fake.Fail("/api/repos/octo/beta/contents/", http.StatusInternalServerError)

	memo, err := cache.New(cache.DefaultCapacity)
	require.NoError(t, err)
	policy := walker.DefaultPolicy("")
	fetcher, err := remote.New(remote.Config{
		Limiter:    ratelimit.New(ratelimit.DefaultConfig(), nil),
		Cache:      memo,
		Skip:       policy.SkipRemote,
		APIBaseURL: fake.APIURL(),
		RawBaseURL: fake.RawURL(),
	})
	require.NoError(t, err)

	owner, err := fetcher.FetchAll(context.Background(), "octo")
	require.NoError(t, err)

	backend := sifttest.SetupTestBackend(t)
	p := newTestPipeline(t, backend, func(c *Config) { c.Policy = policy })
	summary, err := p.RunRemote(context.Background(), owner)
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.Emitted)
	assert.Equal(t, int64(1), summary.RemoteFailures)

	byPath := sifttest.DocumentsByPath(sifttest.ListDocuments(t, backend, DefaultCollection))
	lib, ok := byPath["octo/alpha/src/lib.go"]
	require.True(t, ok)
	assert.Equal(t, "package lib", lib.Content)
	assert.Equal(t, SourceGitHub, lib.Metadata["location"])
	assert.Equal(t, "octo/alpha", lib.Metadata["repo"])
	assert.Equal(t, "lib.go", lib.Metadata["filename"])
	assert.Contains(t, lib.Metadata["url"], "src/lib.go")
	assert.NotContains(t, byPath, "octo/alpha/dist/app.gz")
}

func TestNew_RequiresSink(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	p := newTestPipeline(t, storage.NewMemoryBackend(), func(c *Config) { c.Workers = 0 })
	cfg := p.Config()
	assert.Equal(t, DefaultCollection, cfg.Collection)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 1, cfg.BatchSize)
	assert.NotNil(t, cfg.Policy)
}
