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

// Package storage provides the Sink that receives normalized content records.
//
// A Sink groups documents into named collections. The ingestion pipeline only
// needs the write side (GetOrCreateCollection and Add); the Reader side backs
// the status command and tests.
//
// # Available Backends
//
//   - SQLiteBackend: single-file database, the default engine. Built on
//     modernc.org/sqlite, or on github.com/mattn/go-sqlite3 with the
//     sqlite_cgo build tag.
//   - BadgerBackend: embedded key/value store on dgraph-io/badger.
//   - MemoryBackend: process-local maps, for tests and dry runs.
//
// # Quick Start
//
//	backend, err := storage.Open(storage.Config{Engine: storage.EngineSQLite, DataDir: dir})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	if err := backend.GetOrCreateCollection(ctx, "siftfiles"); err != nil {
//	    log.Fatal(err)
//	}
//	err = backend.Add(ctx, "siftfiles",
//	    []string{"hello"},
//	    []string{"0"},
//	    []storage.Metadata{{"filepath": "/home/u/hello.txt"}},
//	)
//
// Add with an id that already exists in the collection replaces the document.
package storage
