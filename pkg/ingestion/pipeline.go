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
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"github.com/kraklabs/sift/pkg/storage"
	"github.com/kraklabs/sift/pkg/walker"
)

// Config configures a Pipeline.
type Config struct {
	// Collection receives the records (default: DefaultCollection).
	Collection string

	// Workers is the worker pool size (default: runtime.NumCPU()).
	Workers int

	// BatchSize is the number of records per sink call (default: 1).
	BatchSize int

	// Policy is re-checked for every item before it is read.
	// Defaults to walker.DefaultPolicy("").
	Policy *walker.Policy

	// CheckpointPath is the directory holding the id checkpoint. Empty
	// disables persistence and ids restart at 0 for every Pipeline.
	CheckpointPath string

	// OnRecord is called after each record is accepted by the sink. It may be
	// called from several goroutines at once.
	OnRecord func(ContentRecord)
}

// Summary reports the outcome of a run.
type Summary struct {
	Collection string `json:"collection"`

	// Discovered is the number of items received from the producer.
	Discovered int64 `json:"discovered"`

	// Emitted is the number of records accepted by the sink.
	Emitted int64 `json:"emitted"`

	// Excluded counts items and directories left out by the exclusion policy,
	// including the ones the walker pruned.
	Excluded int64 `json:"excluded"`

	// Ignored counts entries skipped by hidden or ignore-file rules.
	Ignored int64 `json:"ignored"`

	// Dropped counts items whose content could not be read.
	Dropped int64 `json:"dropped"`

	// SinkErrors counts records in batches the sink rejected.
	SinkErrors int64 `json:"sink_errors"`

	// RemoteFailures counts repositories and entries that could not be fetched.
	RemoteFailures int64 `json:"remote_failures"`

	Text   int64 `json:"text"`
	Binary int64 `json:"binary"`
	Bytes  int64 `json:"bytes"`

	// FirstID and NextID bound the ids assigned by the run: [FirstID, NextID).
	FirstID uint64 `json:"first_id"`
	NextID  uint64 `json:"next_id"`

	Duration time.Duration `json:"duration"`
}

// Pipeline turns discovered items into ContentRecords and delivers them to a
// Sink through a fixed-size worker pool.
type Pipeline struct {
	cfg         Config
	sink        storage.Sink
	logger      *slog.Logger
	seq         *Sequence
	checkpoints *CheckpointManager

	// runs are serialized so checkpoints see a consistent sequence
	runMu sync.Mutex
}

// New creates a Pipeline writing to sink. When a checkpoint exists for the
// collection the id sequence resumes from it.
func New(cfg Config, sink storage.Sink, logger *slog.Logger) (*Pipeline, error) {
	if sink == nil {
		return nil, errors.New("ingestion: sink is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Policy == nil {
		cfg.Policy = walker.DefaultPolicy("")
	}

	p := &Pipeline{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		seq:    NewSequence(0),
	}

	if cfg.CheckpointPath != "" {
		p.checkpoints = NewCheckpointManager(cfg.CheckpointPath)
		cp, err := p.checkpoints.LoadCheckpoint(cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("ingestion: %w", err)
		}
		if cp != nil {
			p.seq = NewSequence(cp.NextID)
			logger.Info("ingestion.checkpoint.resume", "collection", cfg.Collection, "next_id", cp.NextID, "runs", cp.Runs)
		}
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// NextID returns the id the next record will receive.
func (p *Pipeline) NextID() uint64 {
	return p.seq.Peek()
}

// runState holds the counters of one run.
type runState struct {
	discovered, emitted, excluded, dropped, sinkErrors atomic.Int64
	text, binary, bytes                                atomic.Int64
}

// Run drains items until the channel is closed or ctx is done, then waits for
// every in-flight item before returning. Records already read when ctx is
// cancelled are still delivered. The returned error is ctx's, or a fatal
// sink or pool error; per-item failures only show up in the Summary.
func (p *Pipeline) Run(ctx context.Context, items <-chan Item) (*Summary, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	firstID := p.seq.Peek()
	st := &runState{}

	p.logger.Info("ingestion.start", "collection", p.cfg.Collection, "workers", p.cfg.Workers, "first_id", firstID)

	// Deliveries outlive cancellation so in-flight work completes.
	sinkCtx := context.WithoutCancel(ctx)

	if err := p.sink.GetOrCreateCollection(sinkCtx, p.cfg.Collection); err != nil {
		return nil, fmt.Errorf("ingestion: get or create collection %s: %w", p.cfg.Collection, err)
	}

	pool, err := ants.NewPool(p.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("ingestion: create worker pool: %w", err)
	}
	defer pool.Release()

	batcher := NewBatcher(p.cfg.BatchSize, func(ctx context.Context, batch []ContentRecord) error {
		return p.deliver(ctx, batch, st)
	})

	var wg sync.WaitGroup
	var runErr error

dispatch:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		case it, ok := <-items:
			if !ok {
				break dispatch
			}
			st.discovered.Add(1)
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				p.process(sinkCtx, it, st, batcher)
			}); err != nil {
				wg.Done()
				runErr = fmt.Errorf("ingestion: submit: %w", err)
				break dispatch
			}
		}
	}

	wg.Wait()
	if err := batcher.Flush(sinkCtx); err != nil {
		p.logger.Warn("ingestion.flush.error", "err", err)
	}

	summary := &Summary{
		Collection: p.cfg.Collection,
		Discovered: st.discovered.Load(),
		Emitted:    st.emitted.Load(),
		Excluded:   st.excluded.Load(),
		Dropped:    st.dropped.Load(),
		SinkErrors: st.sinkErrors.Load(),
		Text:       st.text.Load(),
		Binary:     st.binary.Load(),
		Bytes:      st.bytes.Load(),
		FirstID:    firstID,
		NextID:     p.seq.Peek(),
		Duration:   time.Since(start),
	}

	if err := p.saveCheckpoint(start, summary); err != nil {
		p.logger.Warn("ingestion.checkpoint.error", "err", err)
	}

	recordRun(summary.Duration)
	p.logger.Info("ingestion.complete",
		"collection", summary.Collection,
		"emitted", summary.Emitted,
		"excluded", summary.Excluded,
		"dropped", summary.Dropped,
		"sink_errors", summary.SinkErrors,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, runErr
}

// process moves one item through Admitted, Read and Emitted, or ends it as
// Excluded or Dropped.
func (p *Pipeline) process(ctx context.Context, it Item, st *runState, batcher *Batcher) {
	if p.cfg.Policy.ExcludedExtension(fileName(it)) {
		st.excluded.Add(1)
		recordState(it.Source, "excluded")
		return
	}

	id := p.seq.Next()

	data, err := p.read(it)
	if err != nil {
		st.dropped.Add(1)
		recordState(it.Source, "dropped")
		p.logger.Debug("ingestion.read.error", "path", it.Path, "id", id, "err", err)
		return
	}

	content, encoding := encodeContent(data)
	if encoding == EncodingText {
		st.text.Add(1)
	} else {
		st.binary.Add(1)
	}
	st.bytes.Add(int64(len(data)))
	recordEncoding(encoding, len(data))

	rec := ContentRecord{
		ID:       id,
		Content:  content,
		Metadata: metadataFor(it, int64(len(data)), encoding),
	}
	if err := batcher.Add(ctx, rec); err != nil {
		p.logger.Debug("ingestion.sink.error", "path", it.Path, "id", id, "err", err)
	}
}

func (p *Pipeline) read(it Item) ([]byte, error) {
	if it.Source == SourceGitHub {
		return it.Data, nil
	}
	start := time.Now()
	data, err := os.ReadFile(it.Path)
	recordRead(time.Since(start))
	return data, err
}

// encodeContent keeps valid UTF-8 as text and base64-encodes anything else.
func encodeContent(data []byte) (string, string) {
	if utf8.Valid(data) {
		return string(data), EncodingText
	}
	return base64.StdEncoding.EncodeToString(data), EncodingBase64
}

func (p *Pipeline) deliver(ctx context.Context, batch []ContentRecord, st *runState) error {
	documents := make([]string, len(batch))
	ids := make([]string, len(batch))
	metadatas := make([]storage.Metadata, len(batch))
	for i, rec := range batch {
		documents[i] = rec.Content
		ids[i] = rec.ID
		metadatas[i] = rec.Metadata.Metadata()
	}

	start := time.Now()
	err := p.sink.Add(ctx, p.cfg.Collection, documents, ids, metadatas)
	recordBatch(err, time.Since(start))
	if err != nil {
		st.sinkErrors.Add(int64(len(batch)))
		for _, rec := range batch {
			recordState(rec.Metadata.Source, "sink_error")
		}
		p.logger.Warn("ingestion.batch.error", "collection", p.cfg.Collection, "records", len(batch), "err", err)
		return err
	}

	st.emitted.Add(int64(len(batch)))
	for _, rec := range batch {
		recordState(rec.Metadata.Source, "emitted")
		if p.cfg.OnRecord != nil {
			p.cfg.OnRecord(rec)
		}
	}
	return nil
}

func (p *Pipeline) saveCheckpoint(start time.Time, s *Summary) error {
	if p.checkpoints == nil {
		return nil
	}
	cp, err := p.checkpoints.LoadCheckpoint(p.cfg.Collection)
	if err != nil {
		return err
	}
	if cp == nil {
		cp = &Checkpoint{Collection: p.cfg.Collection, StartTime: start.UTC().Format(time.RFC3339)}
	}
	cp.NextID = s.NextID
	cp.RecordsEmitted += s.Emitted
	cp.Runs++
	cp.LastUpdateTime = time.Now().UTC().Format(time.RFC3339)
	return p.checkpoints.SaveCheckpoint(cp)
}
