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

// Package walker discovers candidate files under a root directory.
//
// A Walker traverses directories in parallel on a bounded errgroup and
// streams admitted regular files on a buffered channel. Two layers decide
// what is admitted:
//
//   - Ignore rules: hidden entries, .gitignore files found along the way,
//     the user's global excludes file and the repository's .git/info/exclude.
//   - Policy: the always-on exclusion set of this application (the
//     application-private directory, virtual environment directories and a
//     denylist of binary and noise extensions).
//
// Excluded and ignored directories are never descended into. Errors reading
// a directory are counted in Stats and never stop the walk.
package walker
