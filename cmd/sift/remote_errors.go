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
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/kraklabs/sift/internal/errors"
	"github.com/kraklabs/sift/pkg/remote"
)

// remoteError turns a failed remote call into a UserError. msg says what was
// being attempted, e.g. "Cannot fetch octo/demo".
func remoteError(msg string, err error) *errors.UserError {
	if stderrors.Is(err, context.Canceled) {
		return errors.NewInterruptedError(msg, err)
	}

	var ue *remote.UpstreamError
	if !stderrors.As(err, &ue) || ue.StatusCode == 0 {
		return errors.NewNetworkError(msg,
			"The hosted repository API could not be reached",
			"Check your network connection and retry",
			err)
	}

	cause := fmt.Sprintf("The API answered %d %s for %s", ue.StatusCode, http.StatusText(ue.StatusCode), ue.Key)
	switch ue.StatusCode {
	case http.StatusUnauthorized:
		return errors.NewConfigError(msg, cause,
			"Set SIFT_GITHUB_TOKEN (or github.token in ~/.sift/config.yaml) to a valid token",
			err)
	case http.StatusForbidden, http.StatusTooManyRequests:
		return errors.NewNetworkError(msg, cause,
			"The request quota is exhausted; wait for the window to reset or lower remote.quota",
			err)
	case http.StatusNotFound:
		e := errors.NewNotFoundError(msg, cause, "Check the owner and repository names")
		e.Err = err
		return e
	default:
		return errors.NewNetworkError(msg, cause, "Retry later", err)
	}
}
