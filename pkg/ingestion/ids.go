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
	"strconv"
	"sync/atomic"
)

// Sequence hands out record ids. Ids are decimal strings, unique and strictly
// increasing in assignment order.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence starts a sequence at start.
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// Next assigns the next id.
func (s *Sequence) Next() string {
	return FormatID(s.next.Add(1) - 1)
}

// Peek returns the id the next call to Next will assign, as a number.
func (s *Sequence) Peek() uint64 {
	return s.next.Load()
}

// FormatID renders a sequence number as a record id.
func FormatID(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// ParseID is the inverse of FormatID.
func ParseID(id string) (uint64, error) {
	return strconv.ParseUint(id, 10, 64)
}
