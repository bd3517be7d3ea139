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

package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/sift/internal/errors"
	"github.com/kraklabs/sift/pkg/cache"
	"github.com/kraklabs/sift/pkg/remote"
)

func TestRemoteError(t *testing.T) {
	key := cache.ResourceKey{Kind: cache.KindRepos, Owner: "octo"}
	upstream := func(status int) error {
		return &remote.UpstreamError{Op: "search", Key: key, StatusCode: status, Err: fmt.Errorf("status %d", status)}
	}

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unauthorized", upstream(http.StatusUnauthorized), errors.ExitConfig},
		{"forbidden", upstream(http.StatusForbidden), errors.ExitNetwork},
		{"too many requests", upstream(http.StatusTooManyRequests), errors.ExitNetwork},
		{"not found", upstream(http.StatusNotFound), errors.ExitNotFound},
		{"server error", upstream(http.StatusBadGateway), errors.ExitNetwork},
		{"no status", upstream(0), errors.ExitNetwork},
		{"transport", fmt.Errorf("dial tcp: refused"), errors.ExitNetwork},
		{"cancelled", fmt.Errorf("list: %w", context.Canceled), errors.ExitInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ue := remoteError("Cannot list octo", tt.err)
			assert.Equal(t, tt.code, ue.ExitCode)
			assert.Equal(t, "Cannot list octo", ue.Message)
			assert.ErrorIs(t, ue, tt.err)
		})
	}

	t.Run("cause names the status", func(t *testing.T) {
		ue := remoteError("x", upstream(http.StatusNotFound))
		assert.Contains(t, ue.Cause, "404 Not Found")
	})
}
