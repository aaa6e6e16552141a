// Package selector picks which candidates to scrape in a cycle,
// balancing the batch across makes so a single high-volume brand
// cannot crowd out the rest.
package selector

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carscout/internal/domain"
	"carscout/internal/fetch"
)

// Fetcher is the part of fetch.Client the selector needs.
type Fetcher interface {
	Get(ctx context.Context, url string, allow404 bool) (*fetch.Response, error)
}

// MakeProber extracts a normalized make from raw detail-page HTML.
// A parser.Parser satisfies it through QuickMake.
type MakeProber interface {
	QuickMake(html string) string
}

// Options bounds a selection round.
type Options struct {
	MaxListings  int
	PerMakeLimit int
	Concurrency  int
	BatchPause   time.Duration
}

// PageCache holds prefetched HTML keyed by canonical URL, so the
// processing stage does not refetch pages the selector already pulled.
type PageCache map[string]string

type Selector struct {
	client Fetcher
	prober MakeProber
	opts   Options
	logger *zap.Logger
	rng    *rand.Rand
}

func New(client Fetcher, prober MakeProber, opts Options, logger *zap.Logger) *Selector {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Selector{
		client: client,
		prober: prober,
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select walks the shuffled pool in batches until enough pages were
// prefetched, groups candidates by make, and round-robins across makes
// up to PerMakeLimit each until MaxListings is reached. When the capped
// pass comes up short it drains the remaining groups cap-free, then
// falls back to candidates that were never prefetched. Returns the
// picked candidates, the HTML cache for reuse downstream, and the make
// distribution.
func (s *Selector) Select(ctx context.Context, pool []domain.ListingCandidate) ([]domain.ListingCandidate, PageCache, map[string]int) {
	if len(pool) == 0 || s.opts.MaxListings <= 0 {
		return nil, PageCache{}, map[string]int{}
	}

	shuffled := make([]domain.ListingCandidate, len(pool))
	copy(shuffled, pool)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	slack := s.opts.PerMakeLimit * 30
	if slack < 100 {
		slack = 100
	}
	target := s.opts.MaxListings + slack
	if target > len(shuffled) {
		target = len(shuffled)
	}
	cache := make(PageCache, target)
	byMake := make(map[string][]domain.ListingCandidate)
	var leftovers []domain.ListingCandidate
	var mu sync.Mutex

	for offset := 0; offset < len(shuffled); offset += s.opts.Concurrency {
		if len(cache) >= target {
			// Enough pages in hand; the rest of the pool stays
			// available as uncached fallback.
			leftovers = append(leftovers, shuffled[offset:]...)
			break
		}

		end := offset + s.opts.Concurrency
		if end > len(shuffled) {
			end = len(shuffled)
		}

		g := new(errgroup.Group)
		g.SetLimit(s.opts.Concurrency)
		for _, candidate := range shuffled[offset:end] {
			g.Go(func() error {
				resp, err := s.client.Get(ctx, candidate.URL, true)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					s.logger.Debug("prefetch failed, candidate set aside",
						zap.String("url", candidate.URL), zap.Error(err))
					leftovers = append(leftovers, candidate)
					return nil
				}
				if resp.StatusCode == 404 {
					// Keep the page out of the cache so the
					// processing stage sees the 404 itself and
					// can retire the listing.
					leftovers = append(leftovers, candidate)
					return nil
				}
				cache[candidate.URL] = resp.Body
				makeName := s.prober.QuickMake(resp.Body)
				if makeName == "" {
					makeName = "Unknown"
				}
				byMake[makeName] = append(byMake[makeName], candidate)
				return nil
			})
		}
		g.Wait()

		if end < len(shuffled) {
			pause(ctx, s.opts.BatchPause)
		}
	}

	selected, distribution := s.balance(byMake, leftovers)

	s.logger.Info("balanced listing selection",
		zap.Int("selected", len(selected)),
		zap.Int("makes", len(distribution)),
		zap.Int("prefetched", len(cache)),
		zap.Int("leftovers", len(leftovers)))
	return selected, cache, distribution
}

func (s *Selector) balance(byMake map[string][]domain.ListingCandidate, leftovers []domain.ListingCandidate) ([]domain.ListingCandidate, map[string]int) {
	makes := make([]string, 0, len(byMake))
	for name := range byMake {
		makes = append(makes, name)
	}
	sort.Strings(makes)

	selected := make([]domain.ListingCandidate, 0, s.opts.MaxListings)
	distribution := make(map[string]int, len(byMake))
	taken := make(map[string]int, len(byMake))

	// Capped round-robin pass.
	for len(selected) < s.opts.MaxListings {
		progressed := false
		for _, name := range makes {
			if len(selected) >= s.opts.MaxListings {
				break
			}
			if taken[name] >= s.opts.PerMakeLimit || taken[name] >= len(byMake[name]) {
				continue
			}
			selected = append(selected, byMake[name][taken[name]])
			taken[name]++
			distribution[name]++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	// Too few makes to fill the batch under the cap: drain cap-free.
	for len(selected) < s.opts.MaxListings {
		progressed := false
		for _, name := range makes {
			if len(selected) >= s.opts.MaxListings {
				break
			}
			if taken[name] >= len(byMake[name]) {
				continue
			}
			selected = append(selected, byMake[name][taken[name]])
			taken[name]++
			distribution[name]++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	// Last resort: candidates that never made it into the cache.
	for _, candidate := range leftovers {
		if len(selected) >= s.opts.MaxListings {
			break
		}
		selected = append(selected, candidate)
		distribution["Unknown"]++
	}

	return selected, distribution
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
