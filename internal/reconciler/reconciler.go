// Package reconciler orchestrates the scrape cycle: discover
// candidates, select a balanced batch, fetch and parse detail pages,
// then reconcile the results into the listing store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carscout/internal/config"
	"carscout/internal/domain"
	"carscout/internal/fetch"
	"carscout/internal/monitoring"
	"carscout/internal/parser"
	"carscout/internal/selector"
	"carscout/internal/storage"
	"carscout/internal/translator"
)

const translationBackfillLimit = 500

// Discoverer yields the candidate pool for a cycle.
type Discoverer interface {
	Discover(ctx context.Context) ([]domain.ListingCandidate, error)
}

// Selector picks the balanced batch out of the pool.
type Selector interface {
	Select(ctx context.Context, pool []domain.ListingCandidate) ([]domain.ListingCandidate, selector.PageCache, map[string]int)
}

// Fetcher is the part of fetch.Client the reconciler needs.
type Fetcher interface {
	Get(ctx context.Context, url string, allow404 bool) (*fetch.Response, error)
}

// Summary reports what a cycle did.
type Summary struct {
	Candidates   int
	Selected     int
	Parsed       int
	Failed       int
	Inserted     int64
	Updated      int64
	Reactivated  int64
	Deactivated  int64
	StaleMarked  int64
	Purged       int64
	Retranslated int
	ActiveTotal  int64
	Duration     time.Duration
}

type Reconciler struct {
	cfg        *config.Config
	discoverer Discoverer
	selector   Selector
	client     Fetcher
	parser     *parser.Parser
	translator *translator.Translator
	listings   storage.ListingStore
	failures   storage.FailureStore
	logger     *zap.Logger
}

func New(
	cfg *config.Config,
	discoverer Discoverer,
	sel Selector,
	client Fetcher,
	p *parser.Parser,
	tr *translator.Translator,
	listings storage.ListingStore,
	failures storage.FailureStore,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		cfg:        cfg,
		discoverer: discoverer,
		selector:   sel,
		client:     client,
		parser:     p,
		translator: tr,
		listings:   listings,
		failures:   failures,
		logger:     logger,
	}
}

// RunCycle executes one full scrape cycle.
func (r *Reconciler) RunCycle(ctx context.Context) (*Summary, error) {
	started := time.Now()
	source := r.cfg.SourceName

	pool, err := r.discoverer.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover candidates: %w", err)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("discovery produced no candidates")
	}
	monitoring.CandidatePoolGauge.Set(float64(len(pool)))

	reactivated, err := r.listings.TouchDiscovered(ctx, source, pool)
	if err != nil {
		return nil, fmt.Errorf("touch discovered: %w", err)
	}
	monitoring.ListingsTotal.WithLabelValues("reactivated").Add(float64(reactivated))

	retranslated := r.backfillTranslations(ctx, source)

	selected, cache, distribution := r.selector.Select(ctx, pool)
	r.logger.Info("cycle batch selected",
		zap.Int("selected", len(selected)),
		zap.Int("makes", len(distribution)))

	parsed, failures, unavailable := r.processBatch(ctx, selected, cache)

	inserted, updated, err := r.listings.UpsertParsed(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("upsert parsed: %w", err)
	}
	monitoring.ListingsTotal.WithLabelValues("inserted").Add(float64(inserted))
	monitoring.ListingsTotal.WithLabelValues("updated").Add(float64(updated))

	if err := r.failures.InsertMany(ctx, failures); err != nil {
		r.logger.Warn("failed to record parse failures", zap.Error(err))
	}
	for _, f := range failures {
		monitoring.ParseFailuresTotal.WithLabelValues(f.ErrorType).Inc()
	}

	deactivated, err := r.listings.Deactivate(ctx, source, unavailable)
	if err != nil {
		return nil, fmt.Errorf("deactivate unavailable: %w", err)
	}
	monitoring.ListingsTotal.WithLabelValues("deactivated").Add(float64(deactivated))

	staleMarked, err := r.listings.DeactivateStale(ctx, source, time.Duration(r.cfg.InactiveAfterDays)*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("deactivate stale: %w", err)
	}
	purged, err := r.listings.DeleteInactive(ctx, source, time.Duration(r.cfg.DeleteAfterDays)*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("purge inactive: %w", err)
	}

	activeTotal, err := r.listings.CountActive(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("count active: %w", err)
	}
	monitoring.ActiveListingsGauge.Set(float64(activeTotal))

	summary := &Summary{
		Candidates:   len(pool),
		Selected:     len(selected),
		Parsed:       len(parsed),
		Failed:       len(failures),
		Inserted:     inserted,
		Updated:      updated,
		Reactivated:  reactivated,
		Deactivated:  deactivated,
		StaleMarked:  staleMarked,
		Purged:       purged,
		Retranslated: retranslated,
		ActiveTotal:  activeTotal,
		Duration:     time.Since(started),
	}
	r.logger.Info("scrape cycle finished",
		zap.Int("candidates", summary.Candidates),
		zap.Int("selected", summary.Selected),
		zap.Int("parsed", summary.Parsed),
		zap.Int("failed", summary.Failed),
		zap.Int64("inserted", summary.Inserted),
		zap.Int64("updated", summary.Updated),
		zap.Int64("reactivated", summary.Reactivated),
		zap.Int64("deactivated", summary.Deactivated),
		zap.Int64("stale_marked", summary.StaleMarked),
		zap.Int64("purged", summary.Purged),
		zap.Int("retranslated", summary.Retranslated),
		zap.Int64("active_total", summary.ActiveTotal),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// processBatch fetches and parses the selected candidates, reusing the
// selector's page cache. Pages that report the listing gone end up in
// the unavailable list for deactivation.
func (r *Reconciler) processBatch(ctx context.Context, selected []domain.ListingCandidate, cache selector.PageCache) ([]domain.ParsedListing, []domain.ParseFailure, []string) {
	concurrency := r.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu          sync.Mutex
		parsed      []domain.ParsedListing
		failures    []domain.ParseFailure
		unavailable []string
	)

	for offset := 0; offset < len(selected); offset += concurrency {
		end := offset + concurrency
		if end > len(selected) {
			end = len(selected)
		}

		g := new(errgroup.Group)
		g.SetLimit(concurrency)
		for _, candidate := range selected[offset:end] {
			g.Go(func() error {
				listing, failure := r.processOne(ctx, candidate, cache)

				mu.Lock()
				defer mu.Unlock()
				if listing != nil {
					parsed = append(parsed, *listing)
					monitoring.PagesFetchedTotal.WithLabelValues("success").Inc()
					return nil
				}
				if failure != nil {
					failures = append(failures, *failure)
					if failure.Unavailable {
						unavailable = append(unavailable, candidate.ExternalID)
					}
					monitoring.PagesFetchedTotal.WithLabelValues("failure").Inc()
				}
				return nil
			})
		}
		g.Wait()

		if end < len(selected) {
			pause(ctx, r.cfg.BatchPause())
		}
	}
	return parsed, failures, unavailable
}

func (r *Reconciler) processOne(ctx context.Context, candidate domain.ListingCandidate, cache selector.PageCache) (*domain.ParsedListing, *domain.ParseFailure) {
	html, finalURL := cache[candidate.URL], candidate.URL
	if html == "" {
		resp, err := r.client.Get(ctx, candidate.URL, true)
		if err != nil {
			return nil, fetchFailure(candidate, err)
		}
		if resp.StatusCode == 404 {
			status := 404
			return nil, &domain.ParseFailure{
				URL:         candidate.URL,
				ExternalID:  candidate.ExternalID,
				ErrorType:   "http_404",
				Message:     "listing page not found",
				StatusCode:  &status,
				Unavailable: true,
				CreatedAt:   time.Now().UTC(),
			}
		}
		html, finalURL = resp.Body, resp.FinalURL
	}
	return r.parser.Parse(html, candidate.URL, candidate.ExternalID, finalURL)
}

// backfillTranslations re-runs the dictionaries over rows that still
// carry Japanese text, picking up dictionary additions without a
// re-scrape. Failures here never abort the cycle.
func (r *Reconciler) backfillTranslations(ctx context.Context, source string) int {
	rows, err := r.listings.SelectUntranslated(ctx, source, translationBackfillLimit)
	if err != nil {
		r.logger.Warn("translation backfill query failed", zap.Error(err))
		return 0
	}

	var done int
	for _, row := range rows {
		makeName := r.translator.TranslateMake(row.Make)
		model := r.translator.TranslateModel(row.Model)
		color := row.Color
		if color != nil {
			translated := r.translator.TranslateColor(*color)
			color = &translated
		}
		if makeName == row.Make && model == row.Model && equalPtr(color, row.Color) {
			continue
		}
		if err := r.listings.UpdateTranslations(ctx, row.ID, makeName, model, color); err != nil {
			r.logger.Warn("translation backfill update failed",
				zap.Int64("id", row.ID), zap.Error(err))
			continue
		}
		done++
	}
	if done > 0 {
		r.logger.Info("translation backfill applied", zap.Int("rows", done))
	}
	return done
}

// Run executes cycles until ctx is cancelled: immediately on start,
// then on every interval tick or trigger wake-up. With runOnce set it
// returns after the first cycle.
func (r *Reconciler) Run(ctx context.Context, wake <-chan struct{}) error {
	for {
		cycleStart := time.Now()
		_, err := r.RunCycle(ctx)
		monitoring.CycleDuration.Observe(time.Since(cycleStart).Seconds())
		if err != nil {
			monitoring.CyclesTotal.WithLabelValues("failure").Inc()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A failed cycle is logged and retried next round; it never
			// takes the process down.
			r.logger.Error("scrape cycle failed", zap.Error(err))
		} else {
			monitoring.CyclesTotal.WithLabelValues("success").Inc()
		}

		if r.cfg.RunOnce {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			r.logger.Info("starting triggered cycle")
		case <-time.After(r.cfg.Interval()):
			r.logger.Info("starting scheduled cycle")
		}
	}
}

func fetchFailure(candidate domain.ListingCandidate, err error) *domain.ParseFailure {
	failure := &domain.ParseFailure{
		URL:        candidate.URL,
		ExternalID: candidate.ExternalID,
		ErrorType:  "fetch_error",
		Message:    err.Error(),
		CreatedAt:  time.Now().UTC(),
	}
	var reqErr *fetch.RequestError
	if errors.As(err, &reqErr) {
		failure.ErrorType = string(reqErr.Kind)
		if reqErr.StatusCode != 0 {
			status := reqErr.StatusCode
			failure.StatusCode = &status
		}
	}
	return failure
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
