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
	"errors"

	"github.com/kraklabs/sift/pkg/remote"
)

// RunRemote ingests every fetched file of an owner's repositories. Files are
// recorded with location "github" and their repository-qualified path.
// Repositories and entries that failed to fetch are counted in
// Summary.RemoteFailures.
func (p *Pipeline) RunRemote(ctx context.Context, res *remote.OwnerResult) (*Summary, error) {
	if res == nil {
		return nil, errors.New("ingestion: nil remote result")
	}
	var failures int64
	items := make(chan Item)
	done := make(chan struct{})
	produceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer close(done)
		defer close(items)
		for _, repo := range res.Repos {
			if repo.Err != nil {
				failures++
				continue
			}
			failures += int64(len(repo.Result.Failures()))
			for _, f := range repo.Result.Files() {
				it := Item{
					Path:   f.Owner + "/" + f.Repo + "/" + f.Path,
					Source: SourceGitHub,
					Repo:   f.Owner + "/" + f.Repo,
					URL:    f.HTMLURL,
					Data:   []byte(f.Content),
				}
				select {
				case items <- it:
				case <-produceCtx.Done():
					return
				}
			}
		}
	}()

	summary, err := p.Run(ctx, items)
	cancel()
	<-done
	if summary != nil {
		summary.RemoteFailures = failures
	}
	return summary, err
}
