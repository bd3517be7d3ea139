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

package walker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_ExcludedExtension(t *testing.T) {
	p := DefaultPolicy("/home/u")

	tests := []struct {
		name string
		want bool
	}{
		{"archive.zip", true},
		{"ARCHIVE.ZIP", true},
		{"state.db-wal", true},
		{"cache.db", true},
		{"module.pyc", true},
		{"Cargo.lock", true},
		{"main.go", false},
		{"README", false},
		{"notes.md", false},
		{"trailingdot.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ExcludedExtension(tt.name))
		})
	}
}

func TestPolicy_ExcludeDir(t *testing.T) {
	p := DefaultPolicy("/home/u")

	assert.True(t, p.ExcludeDir("/home/u/Library"))
	assert.True(t, p.ExcludeDir("/home/u/Library/"))
	assert.False(t, p.ExcludeDir("/home/u/code/Library"))
	assert.True(t, p.ExcludeDir("/home/u/code/venv"))
	assert.True(t, p.ExcludeDir("/home/u/code/.venv"))
	assert.False(t, p.ExcludeDir("/home/u/code/src"))
}

func TestPolicy_WithDoesNotMutateReceiver(t *testing.T) {
	base := DefaultPolicy("")
	extended := base.With([]string{"md"}, []string{"target"}, []string{filepath.FromSlash("/opt/skip")})

	assert.True(t, extended.ExcludedExtension("x.md"))
	assert.False(t, base.ExcludedExtension("x.md"))
	assert.True(t, extended.ExcludeDir("/a/target"))
	assert.True(t, extended.ExcludeDir("/opt/skip"))
	assert.False(t, base.ExcludeDir("/a/target"))
}

func TestPolicy_SkipRemote(t *testing.T) {
	p := DefaultPolicy("")

	assert.True(t, p.SkipRemote(".github", true))
	assert.True(t, p.SkipRemote("src/.env", false))
	assert.True(t, p.SkipRemote("tools/venv", true))
	assert.True(t, p.SkipRemote("dist/app.tar", false))
	assert.False(t, p.SkipRemote("src/main.go", false))
	assert.False(t, p.SkipRemote("src", true))

	var none *Policy
	assert.True(t, none.SkipRemote(".hidden", false))
	assert.False(t, none.SkipRemote("a.zip", false))
}
