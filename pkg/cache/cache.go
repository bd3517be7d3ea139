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

// Package cache memoizes resolved remote resources for the duration of one
// ingestion run.
//
// Entries are addressed by ResourceKey. The cache holds a fixed number of
// entries; adding beyond capacity evicts the least recently used entry, and a
// successful Get promotes the entry to most recently used. A miss only means
// the caller has to fetch again, so there is no invalidation beyond eviction.
package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 1000

// Kind distinguishes the three families of cacheable remote resources.
type Kind string

const (
	// KindRepos is an owner's repository listing.
	KindRepos Kind = "repos"
	// KindContents is a fully resolved directory tree.
	KindContents Kind = "contents"
	// KindFile is the raw content of a single file.
	KindFile Kind = "file"
)

// ResourceKey identifies a remote resource. Two keys with the same kind,
// owner, repo and path always address the same cache slot.
type ResourceKey struct {
	Kind  Kind
	Owner string
	Repo  string
	Path  string
}

// String renders the key as kind:owner:repo:path.
func (k ResourceKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Kind, k.Owner, k.Repo, k.Path)
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Len       int
}

// ContentCache is a bounded LRU store shared by every fetch task of a run.
// The underlying LRU takes an exclusive lock for Get as well as Put because a
// hit reorders the recency list.
type ContentCache struct {
	lru *lru.Cache[ResourceKey, any]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache holding at most capacity entries.
// A capacity <= 0 selects DefaultCapacity.
func New(capacity int) (*ContentCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &ContentCache{}
	l, err := lru.NewWithEvict(capacity, func(ResourceKey, any) {
		c.evictions.Add(1)
		recordEviction()
	})
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.lru = l
	return c, nil
}

// Get returns the value stored under key and promotes it to most recently used.
func (c *ContentCache) Get(key ResourceKey) (any, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
		recordLookup(key.Kind, true)
	} else {
		c.misses.Add(1)
		recordLookup(key.Kind, false)
	}
	return v, ok
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *ContentCache) Put(key ResourceKey, value any) {
	c.lru.Add(key, value)
}

// Contains reports whether key is cached without touching its recency.
func (c *ContentCache) Contains(key ResourceKey) bool {
	return c.lru.Contains(key)
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	return c.lru.Len()
}

// Stats returns a snapshot of the hit/miss/eviction counters.
func (c *ContentCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Len:       c.lru.Len(),
	}
}
