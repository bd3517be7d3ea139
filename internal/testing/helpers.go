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

package testing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/sift/pkg/storage"
)

// SetupTestBackend returns an in-memory storage backend closed with the test.
func SetupTestBackend(t *testing.T) storage.Backend {
	t.Helper()

	backend, err := storage.Open(storage.Config{Engine: storage.EngineMemory})
	if err != nil {
		t.Fatalf("failed to create test backend: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Close()
	})
	return backend
}

// WriteTree creates files under root. Keys are slash-separated relative paths.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		WriteFile(t, root, rel, []byte(content))
	}
}

// WriteFile creates one file under root, making parent directories.
func WriteFile(t *testing.T, root, rel string, data []byte) string {
	t.Helper()

	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return p
}

// ListDocuments returns every document of a collection ordered by id.
func ListDocuments(t *testing.T, backend storage.Reader, collection string) []storage.Document {
	t.Helper()

	docs, err := backend.List(context.Background(), collection)
	if err != nil {
		t.Fatalf("failed to list %s: %v", collection, err)
	}
	return docs
}

// DocumentsByPath indexes documents by their "filepath" metadata.
func DocumentsByPath(docs []storage.Document) map[string]storage.Document {
	out := make(map[string]storage.Document, len(docs))
	for _, d := range docs {
		out[d.Metadata["filepath"]] = d
	}
	return out
}
