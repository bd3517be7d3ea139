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

package walker

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"golang.org/x/sync/errgroup"
)

// DefaultBuffer is the capacity of the entries channel.
const DefaultBuffer = 1000

// Config configures a Walker.
type Config struct {
	// Root is the directory to walk. Required.
	Root string

	// Policy is the exclusion set (default: DefaultPolicy(Root)).
	Policy *Policy

	// Workers bounds concurrent directory reads (default: runtime.NumCPU()).
	Workers int

	// Buffer is the entries channel capacity (default: DefaultBuffer).
	Buffer int

	// IncludeHidden admits entries whose name starts with a dot.
	IncludeHidden bool

	// NoGitIgnore disables .gitignore files found during the walk.
	NoGitIgnore bool

	// NoGlobalExcludes disables the user and system excludes files.
	NoGlobalExcludes bool

	// NoGitExclude disables <Root>/.git/info/exclude.
	NoGitExclude bool
}

// Entry is an admitted regular file.
type Entry struct {
	// Path is the absolute path of the file.
	Path string

	// Rel is the slash-separated path relative to the walk root.
	Rel string

	Size    int64
	ModTime time.Time
}

// Stats summarizes a finished walk.
type Stats struct {
	Dirs     int64
	Files    int64
	Excluded int64
	Ignored  int64
	Errors   int64
	Duration time.Duration
}

// Walker traverses a directory tree under the exclusion policy.
type Walker struct {
	cfg    Config
	root   string
	fs     billy.Filesystem
	logger *slog.Logger
}

// New creates a Walker.
func New(cfg Config, logger *slog.Logger) (*Walker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy(root)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	return &Walker{
		cfg:    cfg,
		root:   root,
		fs:     osfs.New(root),
		logger: logger,
	}, nil
}

// Root returns the absolute walk root.
func (w *Walker) Root() string {
	return w.root
}

// Run is one walk in progress.
type Run struct {
	entries chan Entry
	done    chan struct{}

	dirs, files, excluded, ignored, errs atomic.Int64
	duration                             time.Duration
}

// Entries streams admitted files. The channel is closed once every directory
// has been processed or the walk's context is done.
func (r *Run) Entries() <-chan Entry {
	return r.entries
}

// Wait blocks until the walk finishes and returns its stats.
func (r *Run) Wait() Stats {
	<-r.done
	return r.snapshot()
}

func (r *Run) snapshot() Stats {
	return Stats{
		Dirs:     r.dirs.Load(),
		Files:    r.files.Load(),
		Excluded: r.excluded.Load(),
		Ignored:  r.ignored.Load(),
		Errors:   r.errs.Load(),
		Duration: r.duration,
	}
}

// Start begins walking in the background. The consumer must drain Entries
// or cancel ctx.
func (w *Walker) Start(ctx context.Context) *Run {
	r := &Run{
		entries: make(chan Entry, w.cfg.Buffer),
		done:    make(chan struct{}),
	}

	go func() {
		start := time.Now()
		defer close(r.done)
		defer close(r.entries)

		w.logger.Info("walker.start", "root", w.root, "workers", w.cfg.Workers)

		base := w.basePatterns()
		g := new(errgroup.Group)
		g.SetLimit(w.cfg.Workers)
		g.Go(func() error {
			w.walkDir(ctx, g, r, "", base)
			return nil
		})
		_ = g.Wait()

		r.duration = time.Since(start)
		s := r.snapshot()
		w.logger.Info("walker.complete",
			"root", w.root,
			"dirs", s.Dirs,
			"files", s.Files,
			"excluded", s.Excluded,
			"ignored", s.Ignored,
			"errors", s.Errors,
			"duration_ms", s.Duration.Milliseconds(),
		)
	}()
	return r
}

func (w *Walker) basePatterns() []gitignore.Pattern {
	var ps []gitignore.Pattern
	if !w.cfg.NoGlobalExcludes {
		global, err := globalPatterns()
		if err != nil {
			w.logger.Debug("walker.global_excludes.error", "err", err)
		}
		ps = append(ps, global...)
	}
	if !w.cfg.NoGitExclude {
		local, err := readPatterns(w.fs, "", gitExcludeFile)
		if err != nil {
			w.logger.Debug("walker.git_exclude.error", "err", err)
		}
		ps = append(ps, local...)
	}
	return ps
}

// walkDir processes one directory. Sub-directories are handed to the group
// when a slot is free and walked inline otherwise, so a saturated group
// never blocks a worker.
func (w *Walker) walkDir(ctx context.Context, g *errgroup.Group, r *Run, rel string, inherited []gitignore.Pattern) {
	if ctx.Err() != nil {
		return
	}
	r.dirs.Add(1)

	patterns := inherited
	if !w.cfg.NoGitIgnore {
		own, err := readPatterns(w.fs, rel, gitignoreFile)
		if err != nil {
			r.errs.Add(1)
			w.logger.Debug("walker.gitignore.error", "dir", rel, "err", err)
		}
		patterns = extend(inherited, own)
	}

	infos, err := w.fs.ReadDir(rel)
	if err != nil {
		r.errs.Add(1)
		w.logger.Debug("walker.dir.error", "dir", filepath.Join(w.root, rel), "err", err)
		return
	}

	matcher := gitignore.NewMatcher(patterns)
	for _, info := range infos {
		if ctx.Err() != nil {
			return
		}
		name := info.Name()
		childRel := path.Join(rel, name)
		isDir := info.IsDir()

		if !w.cfg.IncludeHidden && strings.HasPrefix(name, ".") {
			r.ignored.Add(1)
			continue
		}
		if len(patterns) > 0 && matcher.Match(splitRel(childRel), isDir) {
			r.ignored.Add(1)
			continue
		}

		abs := filepath.Join(w.root, filepath.FromSlash(childRel))
		if isDir {
			if w.cfg.Policy.ExcludeDir(abs) {
				r.excluded.Add(1)
				w.logger.Debug("walker.dir.excluded", "dir", abs)
				continue
			}
			sub := patterns
			if !g.TryGo(func() error {
				w.walkDir(ctx, g, r, childRel, sub)
				return nil
			}) {
				w.walkDir(ctx, g, r, childRel, sub)
			}
			continue
		}

		if !info.Mode().IsRegular() {
			r.ignored.Add(1)
			continue
		}
		if w.cfg.Policy.ExcludedExtension(name) {
			r.excluded.Add(1)
			continue
		}

		r.files.Add(1)
		select {
		case r.entries <- Entry{Path: abs, Rel: childRel, Size: info.Size(), ModTime: info.ModTime()}:
		case <-ctx.Done():
			return
		}
	}
}
