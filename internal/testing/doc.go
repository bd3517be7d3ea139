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

// Package testing provides test helpers for sift packages.
//
// # Quick Start
//
// Build a directory tree and an in-memory sink:
//
//	func TestMyFeature(t *testing.T) {
//	    root := t.TempDir()
//	    testing.WriteTree(t, root, map[string]string{
//	        "notes.txt":     "hello",
//	        "docs/guide.md": "# guide",
//	    })
//	    backend := testing.SetupTestBackend(t)
//	    ...
//	    docs := testing.ListDocuments(t, backend, "siftfiles")
//	    require.Len(t, docs, 2)
//	}
//
// # Fake hosted repository service
//
// NewFakeGitHub starts an httptest server that answers the repository search,
// contents listing and raw content endpoints, and counts calls per path:
//
//	fake := testing.NewFakeGitHub(t)
//	fake.AddRepo("octo", "demo", map[string]string{"README.md": "# demo"})
//	// point remote.Config.APIBaseURL at fake.APIURL() and RawBaseURL at fake.RawURL()
//	require.Equal(t, 1, fake.Calls("/api/repos/octo/demo/contents/"))
package testing
