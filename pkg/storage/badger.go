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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Key layout:
//
//	c/<collection>          collection marker
//	d/<collection>/<id>     JSON Document
const (
	collectionPrefix = "c/"
	documentPrefix   = "d/"
)

// BadgerBackend stores collections in an embedded badger database.
type BadgerBackend struct {
	db     *badger.DB
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// badgerLogger routes badger's logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.logger.Error(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Infof(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Debugf(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

// NewBadgerBackend opens the database in dir, creating it if needed.
// An empty dir opens an in-memory database.
func NewBadgerBackend(dir string, logger *slog.Logger) (*BadgerBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerBackend{db: db, logger: logger}, nil
}

func collectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

func documentKeyPrefix(collection string) []byte {
	return []byte(documentPrefix + collection + "/")
}

func documentKey(collection, id string) []byte {
	return append(documentKeyPrefix(collection), id...)
}

func (b *BadgerBackend) GetOrCreateCollection(ctx context.Context, name string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(collectionKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set(collectionKey(name), nil)
		}
		return err
	})
}

func (b *BadgerBackend) Add(ctx context.Context, collection string, documents, ids []string, metadatas []Metadata) error {
	if err := validateBatch(collection, documents, ids, metadatas); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := b.requireCollection(txn, collection); err != nil {
			return err
		}
		for i, id := range ids {
			val, err := json.Marshal(Document{ID: id, Content: documents[i], Metadata: metadatas[i]})
			if err != nil {
				return fmt.Errorf("encode %s: %w", id, err)
			}
			if err := txn.Set(documentKey(collection, id), val); err != nil {
				return fmt.Errorf("set %s: %w", id, err)
			}
		}
		return nil
	})
}

func (b *BadgerBackend) Count(ctx context.Context, collection string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		if err := b.requireCollection(txn, collection); err != nil {
			return err
		}
		n = countPrefix(txn, documentKeyPrefix(collection))
		return nil
	})
	return n, err
}

func (b *BadgerBackend) Get(ctx context.Context, collection, id string) (*Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	var doc Document
	err := b.db.View(func(txn *badger.Txn) error {
		if err := b.requireCollection(txn, collection); err != nil {
			return err
		}
		item, err := txn.Get(documentKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (b *BadgerBackend) List(ctx context.Context, collection string) ([]Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	var out []Document
	err := b.db.View(func(txn *badger.Txn) error {
		if err := b.requireCollection(txn, collection); err != nil {
			return err
		}
		prefix := documentKeyPrefix(collection)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var d Document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDocuments(out)
	return out, nil
}

func (b *BadgerBackend) Collections(ctx context.Context) ([]CollectionInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	var out []CollectionInfo
	err := b.db.View(func(txn *badger.Txn) error {
		var names []string
		prefix := []byte(collectionPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		it.Close()

		for _, name := range names {
			out = append(out, CollectionInfo{Name: name, Count: countPrefix(txn, documentKeyPrefix(name))})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *BadgerBackend) requireCollection(txn *badger.Txn, name string) error {
	_, err := txn.Get(collectionKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNoCollection
	}
	return err
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}
