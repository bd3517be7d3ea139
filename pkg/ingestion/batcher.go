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
	"sync"
)

// FlushFunc delivers one batch of records.
type FlushFunc func(ctx context.Context, batch []ContentRecord) error

// Batcher groups records into batches of a target size. It is safe for
// concurrent use; a full batch is handed to the flush function outside the
// lock so deliveries may run in parallel.
type Batcher struct {
	size  int
	flush FlushFunc

	mu      sync.Mutex
	pending []ContentRecord
}

// NewBatcher creates a Batcher. A size below 1 means 1.
func NewBatcher(size int, flush FlushFunc) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{size: size, flush: flush}
}

// Add queues rec and flushes the batch once it reaches the target size.
func (b *Batcher) Add(ctx context.Context, rec ContentRecord) error {
	b.mu.Lock()
	b.pending = append(b.pending, rec)
	if len(b.pending) < b.size {
		b.mu.Unlock()
		return nil
	}
	batch := b.pending
	b.pending = make([]ContentRecord, 0, b.size)
	b.mu.Unlock()

	return b.flush(ctx, batch)
}

// Flush delivers whatever is pending.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return b.flush(ctx, batch)
}

// Pending returns the number of queued records.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
