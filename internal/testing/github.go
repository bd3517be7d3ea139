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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeGitHub is an in-process hosted repository service. It serves the
// repository search, contents listing and raw content endpoints under
// APIURL and RawURL, and counts calls per request path.
type FakeGitHub struct {
	server *httptest.Server

	mu       sync.Mutex
	owners   map[string][]string
	trees    map[string]map[string]string
	branches map[string]map[string]string
	failures map[string]int
	calls    map[string]int
	headers  http.Header
}

// NewFakeGitHub starts a fake service that is shut down with the test.
func NewFakeGitHub(t *testing.T) *FakeGitHub {
	t.Helper()

	f := &FakeGitHub{
		owners:   make(map[string][]string),
		trees:    make(map[string]map[string]string),
		branches: make(map[string]map[string]string),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// APIURL is the API base URL, with trailing slash.
func (f *FakeGitHub) APIURL() string { return f.server.URL + "/api/" }

// RawURL is the raw content base URL, with trailing slash.
func (f *FakeGitHub) RawURL() string { return f.server.URL + "/raw/" }

// AddRepo registers owner/repo with files available on the main branch.
func (f *FakeGitHub) AddRepo(owner, repo string, files map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addRepoLocked(owner, repo)
	for p, content := range files {
		f.trees[owner+"/"+repo][p] = "file"
		f.branchLocked(owner, repo, "main")[p] = content
	}
}

// AddBranchFile lists path in the tree of owner/repo but serves its content
// only from branch.
func (f *FakeGitHub) AddBranchFile(owner, repo, branch, p, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addRepoLocked(owner, repo)
	f.trees[owner+"/"+repo][p] = "file"
	f.branchLocked(owner, repo, branch)[p] = content
}

// AddSpecial lists path with a non file type such as "symlink" or "submodule".
func (f *FakeGitHub) AddSpecial(owner, repo, p, typ string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addRepoLocked(owner, repo)
	f.trees[owner+"/"+repo][p] = typ
}

// Fail makes every request for urlPath answer with status.
func (f *FakeGitHub) Fail(urlPath string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[urlPath] = status
}

// Calls returns the number of requests received for urlPath.
func (f *FakeGitHub) Calls(urlPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[urlPath]
}

// TotalCalls returns the number of requests received.
func (f *FakeGitHub) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// LastHeader returns a header of the most recent request.
func (f *FakeGitHub) LastHeader(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers.Get(name)
}

func (f *FakeGitHub) addRepoLocked(owner, repo string) {
	key := owner + "/" + repo
	if _, ok := f.trees[key]; ok {
		return
	}
	f.trees[key] = make(map[string]string)
	f.owners[owner] = append(f.owners[owner], repo)
}

func (f *FakeGitHub) branchLocked(owner, repo, branch string) map[string]string {
	key := owner + "/" + repo + "@" + branch
	if f.branches[key] == nil {
		f.branches[key] = make(map[string]string)
	}
	return f.branches[key]
}

func (f *FakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[r.URL.Path]++
	f.headers = r.Header.Clone()

	if status, ok := f.failures[r.URL.Path]; ok {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	switch {
	case r.URL.Path == "/api/search/repositories":
		f.serveSearch(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/repos/"):
		f.serveContents(w, r)
	case strings.HasPrefix(r.URL.Path, "/raw/"):
		f.serveRaw(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func (f *FakeGitHub) serveSearch(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimPrefix(r.URL.Query().Get("q"), "user:")
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 30
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}

	repos := f.owners[owner]
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(repos) {
		start = len(repos)
	}
	if end > len(repos) {
		end = len(repos)
	}

	items := make([]map[string]any, 0, end-start)
	for _, name := range repos[start:end] {
		items = append(items, map[string]any{
			"name":      name,
			"full_name": owner + "/" + name,
			"html_url":  "https://github.com/" + owner + "/" + name,
		})
	}

	if end < len(repos) {
		next := *r.URL
		q := next.Query()
		q.Set("page", strconv.Itoa(page+1))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<%s%s>; rel="next"`, f.server.URL, next.RequestURI()))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_count":        len(repos),
		"incomplete_results": false,
		"items":              items,
	})
}

func (f *FakeGitHub) serveContents(w http.ResponseWriter, r *http.Request) {
	// /api/repos/{owner}/{repo}/contents[/{path}]
	rest := strings.TrimPrefix(r.URL.Path, "/api/repos/")
	parts := strings.SplitN(rest, "/", 4)
	if len(parts) < 3 || parts[2] != "contents" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	owner, repo := parts[0], parts[1]
	dir := ""
	if len(parts) == 4 {
		dir = strings.Trim(parts[3], "/")
	}

	tree, ok := f.trees[owner+"/"+repo]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	if typ, ok := tree[dir]; ok && dir != "" {
		writeJSON(w, http.StatusOK, f.contentItem(owner, repo, dir, typ))
		return
	}

	children := make(map[string]string)
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	for p, typ := range tree {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		name, _, nested := strings.Cut(strings.TrimPrefix(p, prefix), "/")
		if nested {
			children[prefix+name] = "dir"
		} else {
			children[p] = typ
		}
	}
	if len(children) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	paths := make([]string, 0, len(children))
	for p := range children {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	items := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		items = append(items, f.contentItem(owner, repo, p, children[p]))
	}
	writeJSON(w, http.StatusOK, items)
}

func (f *FakeGitHub) contentItem(owner, repo, p, typ string) map[string]any {
	size := 0
	for key, files := range f.branches {
		if strings.HasPrefix(key, owner+"/"+repo+"@") {
			if c, ok := files[p]; ok {
				size = len(c)
				break
			}
		}
	}
	return map[string]any{
		"type":     typ,
		"name":     path.Base(p),
		"path":     p,
		"size":     size,
		"sha":      fmt.Sprintf("%040x", len(p)),
		"html_url": "https://github.com/" + owner + "/" + repo + "/blob/main/" + p,
	}
}

func (f *FakeGitHub) serveRaw(w http.ResponseWriter, r *http.Request) {
	// /raw/{owner}/{repo}/{branch}/{path}
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/raw/"), "/", 4)
	if len(parts) < 4 {
		http.Error(w, "404: Not Found", http.StatusNotFound)
		return
	}
	files := f.branches[parts[0]+"/"+parts[1]+"@"+parts[2]]
	content, ok := files[parts[3]]
	if !ok {
		http.Error(w, "404: Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
