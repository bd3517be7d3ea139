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
	"path"
	"path/filepath"
	"strings"
)

// AppPrivateDir is the directory under the home root that is always excluded.
const AppPrivateDir = "Library"

// DefaultExcludedDirNames are directory names excluded wherever they appear.
var DefaultExcludedDirNames = []string{"venv", ".venv"}

// DefaultExcludedExtensions are file extensions that are never ingested:
// archives, compiled artifacts, logs, locks, databases and config files.
var DefaultExcludedExtensions = []string{
	"dmg", "zip", "xls", "xlsx", "csv", "tar", "gz", "bz2", "xz", "7z", "rar", "iso",
	"exe", "dll", "bin", "so", "obj", "class", "o", "pyc",
	"lock", "log", "tmp",
	"config", "cfg", "ini", "plist",
	"db", "db-wal", "db-shm",
}

// Policy is the exclusion set applied to both local and remote traversal.
// A Policy is immutable once built and safe for concurrent use.
type Policy struct {
	dirs       map[string]struct{}
	dirNames   map[string]struct{}
	extensions map[string]struct{}
}

// DefaultPolicy returns the standard exclusions for a walk of home.
func DefaultPolicy(home string) *Policy {
	p := &Policy{
		dirs:       make(map[string]struct{}),
		dirNames:   make(map[string]struct{}),
		extensions: make(map[string]struct{}),
	}
	if home != "" {
		p.dirs[filepath.Clean(filepath.Join(home, AppPrivateDir))] = struct{}{}
	}
	for _, n := range DefaultExcludedDirNames {
		p.dirNames[n] = struct{}{}
	}
	for _, e := range DefaultExcludedExtensions {
		p.extensions[e] = struct{}{}
	}
	return p
}

// With returns a copy of p that also excludes the given extensions, directory
// names and absolute directories.
func (p *Policy) With(extensions, dirNames, dirs []string) *Policy {
	out := &Policy{
		dirs:       make(map[string]struct{}, len(p.dirs)+len(dirs)),
		dirNames:   make(map[string]struct{}, len(p.dirNames)+len(dirNames)),
		extensions: make(map[string]struct{}, len(p.extensions)+len(extensions)),
	}
	for k := range p.dirs {
		out.dirs[k] = struct{}{}
	}
	for k := range p.dirNames {
		out.dirNames[k] = struct{}{}
	}
	for k := range p.extensions {
		out.extensions[k] = struct{}{}
	}
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out.extensions[e] = struct{}{}
		}
	}
	for _, n := range dirNames {
		if n = strings.TrimSpace(n); n != "" {
			out.dirNames[n] = struct{}{}
		}
	}
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			out.dirs[filepath.Clean(d)] = struct{}{}
		}
	}
	return out
}

// ExcludeDir reports whether the directory at absPath must not be descended.
func (p *Policy) ExcludeDir(absPath string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.dirs[filepath.Clean(absPath)]; ok {
		return true
	}
	_, ok := p.dirNames[filepath.Base(absPath)]
	return ok
}

// ExcludedExtension reports whether a file name carries a denylisted extension.
// Matching is case-insensitive; names without an extension are never excluded.
func (p *Policy) ExcludedExtension(name string) bool {
	if p == nil {
		return false
	}
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return false
	}
	_, ok := p.extensions[strings.ToLower(ext[1:])]
	return ok
}

// SkipRemote applies the policy to a slash-separated path inside a hosted
// repository: hidden entries, excluded directory names and denylisted
// extensions are skipped.
func (p *Policy) SkipRemote(repoPath string, isDir bool) bool {
	base := path.Base(repoPath)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if p == nil {
		return false
	}
	if isDir {
		_, ok := p.dirNames[base]
		return ok
	}
	return p.ExcludedExtension(base)
}
