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
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/sift/pkg/storage"
)

func TestSetupTestBackend(t *testing.T) {
	backend := SetupTestBackend(t)
	require.NotNil(t, backend)

	ctx := context.Background()
	require.NoError(t, backend.GetOrCreateCollection(ctx, "c"))
	assert.Empty(t, ListDocuments(t, backend, "c"))
}

func TestWriteTree(t *testing.T) {
	root := t.TempDir()
	WriteTree(t, root, map[string]string{
		"a.txt":       "a",
		"nested/b.md": "b",
	})

	data, err := os.ReadFile(filepath.Join(root, "nested", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestDocumentsByPath(t *testing.T) {
	docs := []storage.Document{
		{ID: "0", Metadata: storage.Metadata{"filepath": "/a"}},
		{ID: "1", Metadata: storage.Metadata{"filepath": "/b"}},
	}
	byPath := DocumentsByPath(docs)
	assert.Equal(t, "1", byPath["/b"].ID)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestFakeGitHub_ServesContentsAndRaw(t *testing.T) {
	fake := NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{
		"a.txt":     "alpha",
		"dir/b.txt": "beta",
	})

	status, body := get(t, fake.APIURL()+"repos/octo/demo/contents/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"path":"a.txt"`)
	assert.Contains(t, body, `"type":"dir"`)

	status, body = get(t, fake.RawURL()+"octo/demo/main/dir/b.txt")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "beta", body)

	status, _ = get(t, fake.RawURL()+"octo/demo/master/dir/b.txt")
	assert.Equal(t, http.StatusNotFound, status)

	assert.Equal(t, 1, fake.Calls("/api/repos/octo/demo/contents/"))
	assert.Equal(t, 3, fake.TotalCalls())
}

func TestFakeGitHub_Fail(t *testing.T) {
	fake := NewFakeGitHub(t)
	fake.AddRepo("octo", "demo", map[string]string{"a.txt": "alpha"})
	fake.Fail("/raw/octo/demo/main/a.txt", http.StatusServiceUnavailable)

	status, _ := get(t, fake.RawURL()+"octo/demo/main/a.txt")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
