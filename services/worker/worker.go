package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"campovivo/landworker/internal/dedup"
	"campovivo/landworker/internal/monitoring"
	"campovivo/landworker/internal/parser"
	"campovivo/landworker/logger"
	apperrors "campovivo/landworker/pkg/errors"
	"campovivo/landworker/services/publisher"
)

// Worker drives the crawl/dedup/publish cycle for all configured parsers.
type Worker struct {
	ctx           context.Context
	parsers       []parser.Parser
	checker       *dedup.Checker
	seen          *dedup.SeenStore
	publisher     publisher.Publisher
	metrics       *monitoring.Metrics
	log           *logger.Logger
	crawlInterval time.Duration
}

// NewWorker creates a new worker.
func NewWorker(
	ctx context.Context,
	parsers []parser.Parser,
	checker *dedup.Checker,
	seen *dedup.SeenStore,
	pub publisher.Publisher,
	metrics *monitoring.Metrics,
	crawlInterval time.Duration,
) *Worker {
	return &Worker{
		ctx:           ctx,
		parsers:       parsers,
		checker:       checker,
		seen:          seen,
		publisher:     pub,
		metrics:       metrics,
		log:           logger.ForWorker(),
		crawlInterval: crawlInterval,
	}
}

// Start runs crawl sweeps until the context is cancelled. The first sweep
// begins immediately.
func (w *Worker) Start() {
	for {
		start := time.Now()
		w.runParsers()
		elapsed := time.Since(start)
		w.metrics.CrawlDuration.Observe(elapsed.Seconds())
		w.log.Info().Dur("elapsed", elapsed).Msg("Crawl sweep finished")

		select {
		case <-time.After(w.crawlInterval):
		case <-w.ctx.Done():
			w.log.Info().Msg("Worker stopping")
			return
		}
	}
}

// runParsers runs all parsers in parallel, then trims the streams and
// persists the duplicate cache once per sweep.
func (w *Worker) runParsers() {
	var wg sync.WaitGroup
	for _, p := range w.parsers {
		wg.Add(1)
		go func(p parser.Parser) {
			defer wg.Done()
			w.crawlAndPublish(p)
		}(p)
	}
	wg.Wait()

	if err := w.publisher.TrimStreams(); err != nil {
		w.log.WithError(err).Error().Msg("Failed to trim streams")
	}
	w.checker.SaveCache()
}

// crawlAndPublish fetches one site's listings, drops duplicates and already
// seen advertisements, enriches the survivors and publishes them. A failed
// enrichment still publishes the partial listing; only a failed publish
// leaves the listing unmarked so the next sweep picks it up again.
func (w *Worker) crawlAndPublish(p parser.Parser) {
	source := p.GetSource()
	log := w.log.WithField("source", source)

	listings, err := p.FetchListings(w.ctx)
	if err != nil {
		w.countError(err)
		log.WithError(err).Error().Msg("Fetch failed")
		return
	}
	w.metrics.ListingsFound.WithLabelValues(source).Add(float64(len(listings)))

	unique := w.checker.FilterDuplicates(listings)
	w.metrics.DuplicatesFiltered.WithLabelValues(source).Add(float64(len(listings) - len(unique)))

	published := 0
	for _, l := range unique {
		if !w.seen.IsNew(l.Identifier()) {
			continue
		}

		if err := p.Enrich(w.ctx, l); err != nil {
			w.countError(err)
			log.WithError(err).Warn().Str("url", l.URL).Msg("Enrichment failed, publishing partial listing")
		}

		data, err := json.Marshal(l)
		if err != nil {
			w.countError(err)
			log.WithError(err).Error().Str("id", l.Identifier()).Msg("Failed to encode listing")
			continue
		}

		if err := w.publisher.Publish(source, data); err != nil {
			w.countError(err)
			log.WithError(err).Error().Str("id", l.Identifier()).Msg("Failed to publish listing")
			continue
		}

		w.seen.AddSeen(l.Identifier())
		w.metrics.ListingsPublished.WithLabelValues(source).Inc()
		published++
	}

	log.Info().
		Int("found", len(listings)).
		Int("unique", len(unique)).
		Int("published", published).
		Msg("Crawl finished")
}

func (w *Worker) countError(err error) {
	var serr *apperrors.ScrapeError
	if errors.As(err, &serr) {
		w.metrics.ErrorsTotal.WithLabelValues(string(serr.Type)).Inc()
		return
	}
	w.metrics.ErrorsTotal.WithLabelValues("unknown").Inc()
}
