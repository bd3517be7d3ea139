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

package remote

import (
	"sort"

	"github.com/google/go-github/v74/github"
)

// EntryKind classifies one resolved entry of a directory listing.
type EntryKind int

const (
	// EntryFile carries the text content of a file.
	EntryFile EntryKind = iota
	// EntryDir carries the resolved sub-directory.
	EntryDir
	// EntryNull stands in for listing types other than file and dir
	// (symlinks, submodules).
	EntryNull
	// EntryFailed records a file download or sub-directory listing that failed.
	EntryFailed
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDir:
		return "dir"
	case EntryNull:
		return "null"
	case EntryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one resolved item of a FetchResult.
type Entry struct {
	Kind EntryKind

	// Type is the listing type reported upstream ("file", "dir", "symlink", ...).
	Type string

	Path    string
	Size    int
	HTMLURL string

	// Content is set for EntryFile.
	Content string

	// Dir is set for EntryDir.
	Dir *FetchResult

	// Err is set for EntryFailed.
	Err error
}

// FetchResult is a resolved directory: its raw listing and, for every listed
// item that passed the skip filter, the resolved entry keyed by path.
type FetchResult struct {
	Owner   string
	Repo    string
	Path    string
	Listing []*github.RepositoryContent
	Entries map[string]Entry
}

// File is a flattened file of a FetchResult tree.
type File struct {
	Owner   string
	Repo    string
	Path    string
	Size    int
	HTMLURL string
	Content string
}

// Failure is a flattened failed entry of a FetchResult tree.
type Failure struct {
	Path string
	Err  error
}

// Files returns every file in the tree, sorted by path.
func (r *FetchResult) Files() []File {
	if r == nil {
		return nil
	}
	var out []File
	r.walk(func(e Entry) {
		if e.Kind == EntryFile {
			out = append(out, File{
				Owner:   r.Owner,
				Repo:    r.Repo,
				Path:    e.Path,
				Size:    e.Size,
				HTMLURL: e.HTMLURL,
				Content: e.Content,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Failures returns every failed entry in the tree, sorted by path.
func (r *FetchResult) Failures() []Failure {
	if r == nil {
		return nil
	}
	var out []Failure
	r.walk(func(e Entry) {
		if e.Kind == EntryFailed {
			out = append(out, Failure{Path: e.Path, Err: e.Err})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Counts tallies the entries of the whole tree by kind.
func (r *FetchResult) Counts() map[EntryKind]int {
	counts := make(map[EntryKind]int, 4)
	if r != nil {
		r.walk(func(e Entry) { counts[e.Kind]++ })
	}
	return counts
}

func (r *FetchResult) walk(fn func(Entry)) {
	for _, e := range r.Entries {
		fn(e)
		if e.Kind == EntryDir && e.Dir != nil {
			e.Dir.walk(fn)
		}
	}
}

// RepoResult is the outcome of fetching one repository of an owner.
type RepoResult struct {
	Name   string
	Result *FetchResult
	Err    error
}

// OwnerResult is the outcome of FetchAll. Repos follows the order of the
// repository search.
type OwnerResult struct {
	Owner string
	Repos []RepoResult
}

// Failed returns the repositories whose top-level listing failed.
func (o *OwnerResult) Failed() []RepoResult {
	var out []RepoResult
	for _, r := range o.Repos {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
