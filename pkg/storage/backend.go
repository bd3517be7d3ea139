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
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("backend is closed")

	// ErrNotFound is returned by Get for a missing document.
	ErrNotFound = errors.New("not found")

	// ErrNoCollection is returned when a collection was never created.
	ErrNoCollection = errors.New("collection does not exist")

	// ErrInvalidCollection is returned for an empty name or one containing '/'.
	ErrInvalidCollection = errors.New("invalid collection name")
)

// Metadata is the flat key/value metadata stored with a document.
type Metadata map[string]string

// Document is one stored record.
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// CollectionInfo describes a collection for status output.
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Sink is the write side consumed by the ingestion pipeline.
type Sink interface {
	// GetOrCreateCollection ensures the named collection exists.
	GetOrCreateCollection(ctx context.Context, name string) error

	// Add stores one batch. documents, ids and metadatas are parallel slices.
	Add(ctx context.Context, collection string, documents, ids []string, metadatas []Metadata) error

	// Close releases any resources held by the sink.
	Close() error
}

// Reader is the read side used by status reporting and tests.
type Reader interface {
	Count(ctx context.Context, collection string) (int, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Collections(ctx context.Context) ([]CollectionInfo, error)
}

// Backend is a Sink that can also be read back.
type Backend interface {
	Sink
	Reader
}

// ValidateCollectionName rejects names no engine can store. '/' separates
// the collection from the document id in key-value engines.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCollection)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidCollection, name)
	}
	return nil
}

// validateBatch checks that the parallel slices of an Add line up.
func validateBatch(collection string, documents, ids []string, metadatas []Metadata) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(documents) != len(ids) || len(metadatas) != len(ids) {
		return fmt.Errorf("batch length mismatch: %d documents, %d ids, %d metadatas",
			len(documents), len(ids), len(metadatas))
	}
	for _, id := range ids {
		if id == "" {
			return errors.New("document id is empty")
		}
	}
	return nil
}

// sortDocuments orders documents by id, numerically when both ids are numbers.
func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return lessID(docs[i].ID, docs[j].ID) })
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
