// Package ingest drives the end-to-end pipeline: discover listing entries,
// extract each detail page, filter already-known events, persist, and emit.
// The pipeline is pull-driven; it does one entry's worth of work per
// consumer pull and never buffers ahead.
package ingest

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/4Achar-SE4031/4Achar-Backend/internal/extractor"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/fetcher"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/storage"
	"github.com/4Achar-SE4031/4Achar-Backend/pkg/types"
)

// Pipeline wires the extractor to the event store.
type Pipeline struct {
	extractor *extractor.Extractor
	store     storage.EventStore
	registry  *Registry
	metrics   *Metrics
	logger    *slog.Logger
}

// NewPipeline constructs the orchestrator. registry and metrics may be nil.
func NewPipeline(x *extractor.Extractor, store storage.EventStore, registry *Registry, metrics *Metrics, logger *slog.Logger) *Pipeline {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: x,
		store:     store,
		registry:  registry,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run ingests the listing at listingURL and yields each newly persisted
// event, in listing order, as soon as it is durable. An event is never
// emitted before its insert has succeeded.
//
// Per-entry failures (detail fetch, extraction, storage) are logged and
// skipped so one broken page cannot starve the rest of the listing; only a
// failure on the listing page itself yields a non-nil error and ends the
// run. Already-known events are skipped silently, including inserts that
// lose the check-then-insert race and hit the store's uniqueness constraint.
//
// Re-running against an unchanged listing therefore yields nothing; after
// the source gains entries, a re-run yields exactly the delta. That is the
// pipeline's sole recovery mechanism.
func (p *Pipeline) Run(ctx context.Context, listingURL string) iter.Seq2[types.Event, error] {
	return func(yield func(types.Event, error) bool) {
		run := p.registry.begin(listingURL)
		timer := p.metrics.runTimer()

		var runErr error
		defer func() {
			timer()
			p.registry.finish(run, runErr)
		}()

		for entry, err := range p.extractor.DiscoverListings(ctx, listingURL) {
			if err != nil {
				runErr = err
				p.metrics.runFailed()
				yield(types.Event{}, err)
				return
			}

			event, err := p.extractor.ExtractDetail(ctx, entry)
			if err != nil {
				if ctx.Err() != nil {
					runErr = ctx.Err()
					return
				}
				p.logger.Warn("entry skipped", "url", entry.DetailURL, "error", err)
				p.metrics.entryFailed(stageFor(err))
				run.addFailed()
				continue
			}

			known, err := p.store.Exists(ctx, event.Key())
			if err != nil {
				p.logger.Error("event lookup failed", "url", entry.DetailURL, "error", err)
				p.metrics.entryFailed("store")
				run.addFailed()
				continue
			}
			if known {
				p.metrics.skipped("known")
				run.addSkipped()
				continue
			}

			if err := p.store.Insert(ctx, event); err != nil {
				if errors.Is(err, storage.ErrDuplicateEvent) {
					// Lost the check-then-insert race to a concurrent run.
					p.metrics.skipped("duplicate")
					run.addSkipped()
					continue
				}
				p.logger.Error("event persist failed", "url", entry.DetailURL, "error", err)
				p.metrics.entryFailed("store")
				run.addFailed()
				continue
			}

			p.metrics.ingested()
			run.addIngested()
			if !yield(*event, nil) {
				return
			}
		}
	}
}

func stageFor(err error) string {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return "fetch"
	}
	var fieldErr *extractor.FieldError
	if errors.As(err, &fieldErr) {
		return "extract"
	}
	return "other"
}
