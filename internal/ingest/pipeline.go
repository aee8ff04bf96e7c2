// Package ingest turns selected files into photos in the collection store.
//
// Start inserts a loading placeholder for every file of a selection before any
// file is processed, so the whole selection is visible at once and the last
// file is already the active photo when Start returns. Normalization and
// metadata extraction then run concurrently within the batch, but results are
// applied to the store strictly in selection order so the collection never
// reorders while a batch completes. Batches do not share worker slots: a file
// stuck in a collaborator only holds up its own batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/photo-map/internal/metadata"
	"github.com/kozaktomas/photo-map/internal/metrics"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/rs/zerolog"
)

// ReasonTranscodeFailed is the failure reason of a HEIC/HEIF file that could not be converted.
const ReasonTranscodeFailed = "could not convert HEIC/HEIF image"

// ReasonCancelled is the failure reason of a file whose batch was cancelled before it ran.
const ReasonCancelled = "ingestion cancelled"

// Handles allocates and releases preview handles. preview.Registry implements it.
type Handles interface {
	normalize.HandleAllocator
	photo.Releaser
}

// newPlaceholder is replaced in tests.
var newPlaceholder = photo.NewPlaceholder

// Pipeline orchestrates normalization and extraction for every ingested file.
type Pipeline struct {
	store      *photo.Store
	normalizer *normalize.Normalizer
	extractor  *metadata.Extractor
	handles    Handles
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	concurrency int // files processed at once within one batch
	wg          sync.WaitGroup
}

// NewPipeline creates a pipeline. concurrency bounds the files of one batch
// processed at once; <= 0 means one file at a time.
func NewPipeline(
	store *photo.Store,
	normalizer *normalize.Normalizer,
	extractor *metadata.Extractor,
	handles Handles,
	logger zerolog.Logger,
	m *metrics.Metrics,
	concurrency int,
) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pipeline{
		store:      store,
		normalizer: normalizer,
		extractor:  extractor,
		handles:    handles,
		logger:     logger.With().Str("component", "ingest").Logger(),
		metrics:    m,

		concurrency: concurrency,
	}
}

// Batch is one user selection being ingested.
type Batch struct {
	// IDs of the placeholders, in selection order.
	IDs  []string
	done chan struct{}
}

// Wait blocks until every file of the batch reached a final state.
func (b *Batch) Wait() {
	<-b.done
}

// Done is closed when the batch completes.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// outcome is the result of processing one file, applied later in order.
type outcome struct {
	display   *normalize.Result
	err       error
	extracted metadata.Result
	started   time.Time
}

// Start inserts placeholders for files and processes them in the background.
// Placeholders are visible and active by the time Start returns.
func (p *Pipeline) Start(ctx context.Context, files []normalize.File) *Batch {
	batch := &Batch{
		IDs:  make([]string, 0, len(files)),
		done: make(chan struct{}),
	}

	queued := make([]normalize.File, 0, len(files))
	for _, f := range files {
		handle := p.handles.Create(f.Data, f.ContentType)
		placeholder := newPlaceholder(f.Name, f.ContentType, f.Data, handle)
		if err := p.store.AddPlaceholder(placeholder); err != nil {
			p.logger.Error().Err(err).Str("file", f.Name).Msg("failed to insert placeholder")
			if err := p.handles.Revoke(handle); err != nil {
				p.logger.Warn().Err(err).Str("file", f.Name).Msg("failed to release preview handle")
			}
			continue
		}
		_ = p.store.SetActive(placeholder.ID)
		batch.IDs = append(batch.IDs, placeholder.ID)
		queued = append(queued, f)
	}

	results := make([]chan outcome, len(queued))
	for i := range results {
		results[i] = make(chan outcome, 1)
	}

	sem := make(chan struct{}, p.concurrency)
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for i, f := range queued {
			if ctx.Err() != nil {
				results[i] <- outcome{err: ctx.Err(), started: time.Now()}
				continue
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] <- outcome{err: ctx.Err(), started: time.Now()}
				continue
			}
			go func() {
				defer func() { <-sem }()
				results[i] <- p.process(ctx, batch.IDs[i], f)
			}()
		}
	}()
	go func() {
		defer p.wg.Done()
		defer close(batch.done)
		for i, id := range batch.IDs {
			p.apply(id, queued[i], <-results[i])
		}
	}()

	return batch
}

// Ingest runs Start and waits for the batch. It returns the photo ids in selection order.
func (p *Pipeline) Ingest(ctx context.Context, files []normalize.File) []string {
	batch := p.Start(ctx, files)
	batch.Wait()
	return batch.IDs
}

// Wait blocks until every started batch completed.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// process normalizes the file and extracts metadata from the original bytes.
// A panic in a collaborator is contained to this file.
func (p *Pipeline) process(ctx context.Context, id string, f normalize.File) (out outcome) {
	out.started = time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.display = nil
			out.err = fmt.Errorf("panic while processing %s: %v", f.Name, r)
		}
	}()

	display, err := p.normalizer.Normalize(ctx, f)
	if err != nil {
		out.err = err
		return out
	}
	out.display = display
	out.extracted = p.extractor.Extract(f.Data)
	return out
}

// apply merges a file outcome into the store. Updates for removed photos are no-ops.
func (p *Pipeline) apply(id string, f normalize.File, out outcome) {
	log := p.logger.With().Str("photo_id", id).Str("file", f.Name).Logger()

	if out.err != nil {
		log.Warn().Err(out.err).Msg("skipping file")
		reason := ReasonTranscodeFailed
		if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
			reason = ReasonCancelled
		}
		if p.store.UpdateByID(id, func(ph *photo.Photo) {
			ph.State = photo.StateError
			ph.FailureReason = reason
		}) {
			p.observe(photo.StateError, out.started)
		}
		return
	}

	if out.display.Handle != "" {
		p.store.ReplaceDisplay(id, out.display.Data, out.display.ContentType, out.display.Handle)
	}

	if !p.store.UpdateByID(id, out.extracted.Apply) {
		log.Debug().Msg("photo removed before ingestion finished")
		return
	}
	if out.extracted.FailureReason != "" {
		log.Warn().Str("state", string(out.extracted.State)).Msg(out.extracted.FailureReason)
	} else {
		log.Debug().Str("result", out.extracted.String()).Msg("photo ingested")
	}
	p.observe(out.extracted.State, out.started)
}

func (p *Pipeline) observe(state photo.LifecycleState, started time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.PhotosIngested.WithLabelValues(string(state)).Inc()
	p.metrics.IngestDuration.Observe(time.Since(started).Seconds())
}
