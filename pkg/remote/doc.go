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

// Package remote resolves hosted repositories into trees of file content.
//
// A Fetcher walks a repository through the contents API, one listing call per
// directory, and downloads every file from the raw content host. Each remote
// call holds a ratelimit permit for its whole duration, and every resolved
// listing, directory tree and file body is memoized in a shared cache.ContentCache
// so that a resource is fetched at most once per run.
//
// # Failure isolation
//
// Only the top-level listing of a repository can fail a fetch. A file that
// cannot be downloaded or a sub-directory whose listing fails is recorded as
// an EntryFailed in the parent's FetchResult; its siblings are unaffected.
// FetchAll fetches the repositories of an owner independently of each other.
//
// # Quick Start
//
//	limiter := ratelimit.New(ratelimit.DefaultConfig(), logger)
//	memo, _ := cache.New(cache.DefaultCapacity)
//	f, err := remote.New(remote.Config{Token: token, Limiter: limiter, Cache: memo, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	res, err := f.FetchRepository(ctx, "octocat", "hello-world")
//	for _, file := range res.Files() {
//	    fmt.Println(file.Path, len(file.Content))
//	}
package remote
