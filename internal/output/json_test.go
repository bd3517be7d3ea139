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

package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Collection string `json:"collection"`
	Emitted    int    `json:"emitted"`
}

func TestJSONTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONTo(&buf, summary{Collection: "siftfiles", Emitted: 3}))

	assert.Equal(t, "{\n  \"collection\": \"siftfiles\",\n  \"emitted\": 3\n}\n", buf.String())
}

func TestJSONTo_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	err := JSONTo(&buf, map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON encoding failed")
}

func TestStream_OneValuePerLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(&buf)
	require.NoError(t, s.Write(summary{Collection: "a", Emitted: 1}))
	require.NoError(t, s.Write(map[string]string{"content": "line1\nline2"}))
	assert.Equal(t, 2, s.Count())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "line1\nline2", got["content"])
}

func TestStream_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Write(summary{Collection: "c", Emitted: i})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Count())
	seen := map[int]bool{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var v summary
		require.NoError(t, json.Unmarshal(sc.Bytes(), &v), "line %q", sc.Text())
		seen[v.Emitted] = true
	}
	assert.Len(t, seen, 50)
}
