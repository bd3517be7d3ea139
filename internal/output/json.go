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

// Package output writes machine-readable sift output.
//
// Commands run with --json print a single document on stdout:
//
//	if err := output.JSON(summary); err != nil {
//	    errors.FatalError(err, true)
//	}
//
// Records can also be streamed one per line while a run is in progress:
//
//	stream := output.NewStream(os.Stdout)
//	cfg.OnRecord = func(rec ingestion.ContentRecord) { _ = stream.Write(rec) }
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSON writes data as indented JSON to stdout.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// Stream writes newline-delimited JSON. Write is safe for concurrent use and
// each value occupies exactly one line.
type Stream struct {
	mu  sync.Mutex
	enc *json.Encoder
	n   int
}

func NewStream(w io.Writer) *Stream {
	return &Stream{enc: json.NewEncoder(w)}
}

func (s *Stream) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	s.n++
	return nil
}

// Count returns the number of values written.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
