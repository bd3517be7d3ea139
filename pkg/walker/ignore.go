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
	"bufio"
	"errors"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const (
	gitignoreFile  = ".gitignore"
	gitExcludeFile = ".git/info/exclude"
)

// readPatterns parses an ignore file at rel/name inside fs. Patterns are
// scoped to rel. A missing file yields no patterns and no error.
func readPatterns(fs billy.Filesystem, rel, name string) ([]gitignore.Pattern, error) {
	f, err := fs.Open(path.Join(rel, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	domain := splitRel(rel)
	var ps []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, domain))
	}
	return ps, scanner.Err()
}

// globalPatterns loads the user's core.excludesfile and the system one.
func globalPatterns() ([]gitignore.Pattern, error) {
	root := osfs.New("/")
	ps, err := gitignore.LoadGlobalPatterns(root)
	if err != nil {
		return nil, err
	}
	sys, err := gitignore.LoadSystemPatterns(root)
	if err != nil {
		return ps, err
	}
	return append(ps, sys...), nil
}

// splitRel splits a slash-separated relative path into components.
func splitRel(rel string) []string {
	if rel == "" || rel == "." {
		return nil
	}
	return strings.Split(rel, "/")
}

// extend returns base followed by more without aliasing base's backing array.
func extend(base, more []gitignore.Pattern) []gitignore.Pattern {
	if len(more) == 0 {
		return base
	}
	out := make([]gitignore.Pattern, 0, len(base)+len(more))
	out = append(out, base...)
	return append(out, more...)
}
