package selector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carscout/internal/domain"
	"carscout/internal/fetch"
)

// makeFetcher serves a page naming the make encoded in the URL:
// .../detail/<Make>-<n>/index.html
type makeFetcher struct {
	mu       sync.Mutex
	fail     map[string]bool
	notFound map[string]bool
	calls    int
}

func (f *makeFetcher) Get(_ context.Context, url string, _ bool) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[url] {
		return nil, fmt.Errorf("connection refused")
	}
	if f.notFound[url] {
		return &fetch.Response{StatusCode: 404, Body: "<html>Not Found</html>", FinalURL: url}, nil
	}
	return &fetch.Response{StatusCode: 200, Body: "make:" + makeFromURL(url), FinalURL: url}, nil
}

func (f *makeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func makeFromURL(url string) string {
	parts := strings.Split(url, "/")
	for i, p := range parts {
		if p == "detail" && i+1 < len(parts) {
			return strings.SplitN(parts[i+1], "-", 2)[0]
		}
	}
	return ""
}

type bodyProber struct{}

func (bodyProber) QuickMake(html string) string {
	return strings.TrimPrefix(html, "make:")
}

func candidatesFor(makes map[string]int) []domain.ListingCandidate {
	var out []domain.ListingCandidate
	for name, n := range makes {
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s-%d", name, i)
			out = append(out, domain.ListingCandidate{
				ExternalID: id,
				URL:        fmt.Sprintf("https://www.carsensor.net/usedcar/detail/%s/index.html", id),
			})
		}
	}
	return out
}

func TestSelectBalancesAcrossMakes(t *testing.T) {
	pool := candidatesFor(map[string]int{"Toyota": 50, "Honda": 50, "Mazda": 50})
	sel := New(&makeFetcher{}, bodyProber{}, Options{
		MaxListings:  12,
		PerMakeLimit: 5,
		Concurrency:  4,
	}, zap.NewNop())

	selected, cache, distribution := sel.Select(context.Background(), pool)

	assert.Len(t, selected, 12)
	for name, count := range distribution {
		assert.LessOrEqual(t, count, 5, "make %s over its cap", name)
	}
	// Every selected candidate's page is in the cache.
	for _, c := range selected {
		assert.Contains(t, cache, c.URL)
	}
}

func TestSelectDrainsWhenCapTooTight(t *testing.T) {
	// One make only: the per-make cap cannot satisfy the batch, so the
	// cap is ignored rather than under-filling.
	pool := candidatesFor(map[string]int{"Toyota": 30})
	sel := New(&makeFetcher{}, bodyProber{}, Options{
		MaxListings:  10,
		PerMakeLimit: 3,
		Concurrency:  4,
	}, zap.NewNop())

	selected, _, distribution := sel.Select(context.Background(), pool)

	assert.Len(t, selected, 10)
	assert.Equal(t, 10, distribution["Toyota"])
}

func TestSelectUsesLeftoversOnFetchFailure(t *testing.T) {
	pool := candidatesFor(map[string]int{"Toyota": 4})
	fail := make(map[string]bool)
	for _, c := range pool[:2] {
		fail[c.URL] = true
	}
	sel := New(&makeFetcher{fail: fail}, bodyProber{}, Options{
		MaxListings:  4,
		PerMakeLimit: 10,
		Concurrency:  2,
	}, zap.NewNop())

	selected, cache, _ := sel.Select(context.Background(), pool)

	// The two reachable pages come first, failed prefetches fill the rest.
	assert.Len(t, selected, 4)
	assert.Len(t, cache, 2)
}

func TestSelectFillsPerMakeQuota(t *testing.T) {
	// With enough candidates behind every make and the batch sized to
	// N makes times the cap, each make contributes exactly its cap.
	pool := candidatesFor(map[string]int{"Toyota": 20, "Honda": 20, "Mazda": 20})
	sel := New(&makeFetcher{}, bodyProber{}, Options{
		MaxListings:  12,
		PerMakeLimit: 4,
		Concurrency:  4,
	}, zap.NewNop())

	selected, _, distribution := sel.Select(context.Background(), pool)

	require.Len(t, selected, 12)
	require.Len(t, distribution, 3)
	for _, name := range []string{"Toyota", "Honda", "Mazda"} {
		assert.Equal(t, 4, distribution[name], "make %s off its quota", name)
	}
}

func TestSelectKeeps404PagesOutOfCache(t *testing.T) {
	pool := candidatesFor(map[string]int{"Toyota": 4})
	gone := make(map[string]bool)
	for _, c := range pool[:2] {
		gone[c.URL] = true
	}
	sel := New(&makeFetcher{notFound: gone}, bodyProber{}, Options{
		MaxListings:  4,
		PerMakeLimit: 10,
		Concurrency:  2,
	}, zap.NewNop())

	selected, cache, _ := sel.Select(context.Background(), pool)

	// Removed pages still fill the batch from the leftover bucket, but
	// their bodies stay uncached so the processing stage refetches them
	// and sees the 404 for itself.
	assert.Len(t, selected, 4)
	assert.Len(t, cache, 2)
	for url := range gone {
		assert.NotContains(t, cache, url)
	}
}

func TestSelectCompensatesFromDeeperPool(t *testing.T) {
	// Fetch failures do not shrink the cache budget: the prefetch keeps
	// walking the pool until enough pages are in hand.
	pool := candidatesFor(map[string]int{"Toyota": 320})
	fail := make(map[string]bool)
	for _, c := range pool[5:] {
		fail[c.URL] = true
	}
	sel := New(&makeFetcher{fail: fail}, bodyProber{}, Options{
		MaxListings:  5,
		PerMakeLimit: 10,
		Concurrency:  8,
	}, zap.NewNop())

	selected, cache, _ := sel.Select(context.Background(), pool)

	assert.Len(t, cache, 5)
	assert.Len(t, selected, 5)
}

func TestSelectStopsOnceCacheIsFull(t *testing.T) {
	// Target here is MaxListings plus the 100-candidate floor of slack,
	// far below the pool size, so the walk must cut off early.
	pool := candidatesFor(map[string]int{"Toyota": 400})
	client := &makeFetcher{}
	sel := New(client, bodyProber{}, Options{
		MaxListings:  2,
		PerMakeLimit: 1,
		Concurrency:  8,
	}, zap.NewNop())

	_, cache, _ := sel.Select(context.Background(), pool)

	assert.GreaterOrEqual(t, len(cache), 102)
	assert.Less(t, client.callCount(), len(pool))
}

func TestSelectEmptyPool(t *testing.T) {
	sel := New(&makeFetcher{}, bodyProber{}, Options{MaxListings: 10, PerMakeLimit: 3, Concurrency: 2}, zap.NewNop())

	selected, cache, distribution := sel.Select(context.Background(), nil)
	assert.Empty(t, selected)
	assert.Empty(t, cache)
	assert.Empty(t, distribution)
}

func TestSelectCapsAtPoolSize(t *testing.T) {
	pool := candidatesFor(map[string]int{"Toyota": 3})
	sel := New(&makeFetcher{}, bodyProber{}, Options{
		MaxListings:  10,
		PerMakeLimit: 10,
		Concurrency:  2,
	}, zap.NewNop())

	selected, _, _ := sel.Select(context.Background(), pool)
	require.Len(t, selected, 3)
}
