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

// Package ratelimit bounds outbound calls to the hosted-repository API.
//
// A Limiter combines two independent ceilings:
//
//  1. Concurrency: at most MaxConcurrent remote calls are in flight at once.
//     Permits are handed out in FIFO order.
//  2. Quota: at most Quota calls are admitted per rolling Window. When the
//     window is full, callers sleep until the window boundary and the window
//     is reset.
//
// A Permit must be held for the entire duration of the guarded call:
//
//	permit, err := limiter.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer permit.Release()
//	resp, err := client.Do(req)
//
// Do wraps the same pattern and is the preferred entry point.
package ratelimit
