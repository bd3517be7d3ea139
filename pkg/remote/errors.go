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
	"errors"
	"fmt"

	"github.com/google/go-github/v74/github"

	"github.com/kraklabs/sift/pkg/cache"
)

var (
	// ErrMaxDepth is wrapped by an UpstreamError when a directory lies deeper
	// than the configured recursion limit.
	ErrMaxDepth = errors.New("directory depth limit exceeded")

	// ErrInvalidListing is wrapped by an UpstreamError when a listing names a
	// sub-directory that is not strictly below the listed directory.
	ErrInvalidListing = errors.New("listing entry escapes its directory")
)

// UpstreamError reports a remote call that did not succeed.
type UpstreamError struct {
	// Op is the remote operation: "search", "list" or "raw".
	Op string

	// Key is the resource that was being resolved.
	Key cache.ResourceKey

	// StatusCode is the HTTP status returned by the upstream, 0 when no
	// response was received.
	StatusCode int

	Err error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s %s: status %d", e.Op, e.Key, e.StatusCode)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func newUpstreamError(op string, key cache.ResourceKey, err error) *UpstreamError {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	return &UpstreamError{Op: op, Key: key, StatusCode: statusOf(err), Err: err}
}

// statusOf extracts the HTTP status from a go-github error.
func statusOf(err error) int {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	var rl *github.RateLimitError
	if errors.As(err, &rl) && rl.Response != nil {
		return rl.Response.StatusCode
	}
	var al *github.AbuseRateLimitError
	if errors.As(err, &al) && al.Response != nil {
		return al.Response.StatusCode
	}
	return 0
}
