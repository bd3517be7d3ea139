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

package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps collections in process memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	closed      bool
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]map[string]Document)}
}

func (b *MemoryBackend) GetOrCreateCollection(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	if _, ok := b.collections[name]; !ok {
		b.collections[name] = make(map[string]Document)
	}
	return nil
}

func (b *MemoryBackend) Add(ctx context.Context, collection string, documents, ids []string, metadatas []Metadata) error {
	if err := validateBatch(collection, documents, ids, metadatas); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	docs, ok := b.collections[collection]
	if !ok {
		return ErrNoCollection
	}
	for i, id := range ids {
		md := make(Metadata, len(metadatas[i]))
		for k, v := range metadatas[i] {
			md[k] = v
		}
		docs[id] = Document{ID: id, Content: documents[i], Metadata: md}
	}
	return nil
}

func (b *MemoryBackend) Count(ctx context.Context, collection string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}
	docs, ok := b.collections[collection]
	if !ok {
		return 0, ErrNoCollection
	}
	return len(docs), nil
}

func (b *MemoryBackend) Get(ctx context.Context, collection, id string) (*Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	docs, ok := b.collections[collection]
	if !ok {
		return nil, ErrNoCollection
	}
	doc, ok := docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (b *MemoryBackend) List(ctx context.Context, collection string) ([]Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	docs, ok := b.collections[collection]
	if !ok {
		return nil, ErrNoCollection
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	sortDocuments(out)
	return out, nil
}

func (b *MemoryBackend) Collections(ctx context.Context) ([]CollectionInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	out := make([]CollectionInfo, 0, len(b.collections))
	for name, docs := range b.collections {
		out = append(out, CollectionInfo{Name: name, Count: len(docs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
