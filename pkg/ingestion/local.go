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

package ingestion

import (
	"context"

	"github.com/kraklabs/sift/pkg/walker"
)

// RunLocal walks cfg.Root and ingests every admitted file. The walker uses
// the pipeline's policy unless cfg.Policy is set.
func (p *Pipeline) RunLocal(ctx context.Context, cfg walker.Config) (*Summary, walker.Stats, error) {
	if cfg.Policy == nil {
		cfg.Policy = p.cfg.Policy
	}
	w, err := walker.New(cfg, p.logger)
	if err != nil {
		return nil, walker.Stats{}, err
	}

	// The walker stops on ctx; the pipeline stops draining on ctx too.
	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run := w.Start(walkCtx)

	items := make(chan Item)
	go func() {
		defer close(items)
		for e := range run.Entries() {
			select {
			case items <- Item{Path: e.Path, Source: SourceLocal}:
			case <-walkCtx.Done():
				// keep draining so the walker can finish
			}
		}
	}()

	summary, runErr := p.Run(ctx, items)
	cancel()
	stats := run.Wait()

	if summary != nil {
		summary.Excluded += stats.Excluded
		summary.Ignored += stats.Ignored
	}
	return summary, stats, runErr
}
