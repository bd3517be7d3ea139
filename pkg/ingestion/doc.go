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

// Package ingestion turns discovered files into normalized content records.
//
// # Pipeline Overview
//
// Producers (the filesystem walker or a remote fetch) feed Items into a
// Pipeline. A fixed-size ants worker pool moves every item through:
//
//  1. Admission: the extension denylist is checked again; denylisted items
//     end as Excluded.
//  2. Id assignment: the next value of an atomic sequence. Ids are decimal
//     strings, unique and strictly increasing in assignment order.
//  3. Read: valid UTF-8 is kept as text, anything else is base64 encoded.
//     Unreadable files end as Dropped.
//  4. Emission: FileMetadata is derived from the path and the record is
//     handed to the Batcher, which delivers batches to the storage.Sink.
//
// The dispatcher stops on context cancellation, but every item already handed
// to a worker completes and is delivered before Run returns.
//
// # Quick Start
//
//	backend, _ := storage.Open(storage.Config{})
//	p, err := ingestion.New(ingestion.Config{CheckpointPath: dir}, backend, logger)
//	if err != nil {
//	    return err
//	}
//	summary, stats, err := p.RunLocal(ctx, walker.Config{Root: home})
//	fmt.Println(summary.Emitted, summary.Excluded, summary.Dropped)
//
// # Checkpoints
//
// With a CheckpointPath the next id of the collection is persisted after each
// run, so a later run against the same persistent sink continues the sequence
// instead of overwriting earlier records.
package ingestion
