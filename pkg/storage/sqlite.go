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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL REFERENCES collections(name),
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// SQLiteBackend stores collections in a single SQLite file.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteBackend opens (or creates) the database at dbPath.
func NewSQLiteBackend(dbPath string, logger *slog.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; WAL lets status reads run beside an ingestion.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Debug("storage.sqlite.open", "path", dbPath, "driver", DriverName, "build", BuildMode)
	return &SQLiteBackend{db: db, logger: logger}, nil
}

func (b *SQLiteBackend) GetOrCreateCollection(ctx context.Context, name string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO collections (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (b *SQLiteBackend) Add(ctx context.Context, collection string, documents, ids []string, metadatas []Metadata) error {
	if err := validateBatch(collection, documents, ids, metadatas); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if ok, err := b.hasCollection(ctx, collection); err != nil {
		return err
	} else if !ok {
		return ErrNoCollection
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, content, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, id := range ids {
		md, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, id, documents[i], string(md)); err != nil {
			return fmt.Errorf("insert %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Count(ctx context.Context, collection string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}
	if ok, err := b.hasCollection(ctx, collection); err != nil {
		return 0, err
	} else if !ok {
		return 0, ErrNoCollection
	}
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, collection, id string) (*Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	var content, md string
	err := b.db.QueryRowContext(ctx,
		`SELECT content, metadata FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&content, &md)
	if errors.Is(err, sql.ErrNoRows) {
		if ok, cerr := b.hasCollection(ctx, collection); cerr == nil && !ok {
			return nil, ErrNoCollection
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc := &Document{ID: id, Content: content}
	if err := json.Unmarshal([]byte(md), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	return doc, nil
}

func (b *SQLiteBackend) List(ctx context.Context, collection string) ([]Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if ok, err := b.hasCollection(ctx, collection); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNoCollection
	}

	rows, err := b.db.QueryContext(ctx, `SELECT id, content, metadata FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Document
	for rows.Next() {
		var d Document
		var md string
		if err := rows.Scan(&d.ID, &d.Content, &md); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(md), &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortDocuments(out)
	return out, nil
}

func (b *SQLiteBackend) Collections(ctx context.Context) ([]CollectionInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT c.name, COUNT(d.id)
		FROM collections c
		LEFT JOIN documents d ON d.collection = c.name
		GROUP BY c.name
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CollectionInfo
	for rows.Next() {
		var ci CollectionInfo
		if err := rows.Scan(&ci.Name, &ci.Count); err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *SQLiteBackend) hasCollection(ctx context.Context, name string) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup collection %s: %w", name, err)
	}
	return n > 0, nil
}
