// Package sitemap discovers listing candidates through the site's
// sitemap protocol: robots.txt points at a detail-sitemap index, which
// fans out to per-shard detail sitemaps.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carscout/internal/domain"
	"carscout/internal/fetch"
)

var (
	detailIndexRe   = regexp.MustCompile(`(?i)/usedcar-detail-index\.xml$`)
	detailSitemapRe = regexp.MustCompile(`(?i)/usedcar-detail-\d+\.xml$`)
	detailURLRe     = regexp.MustCompile(`(?i)/usedcar/detail/([^/]+)/index\.html`)
)

// Fetcher is the part of fetch.Client the discoverer needs.
type Fetcher interface {
	Get(ctx context.Context, url string, allow404 bool) (*fetch.Response, error)
}

// Options bounds a discovery run.
type Options struct {
	BaseURL         string
	RobotsURL       string
	DefaultIndexURL string
	MaxSitemaps     int
	URLsPerSitemap  int
	PoolSize        int
	Concurrency     int
	BatchPause      time.Duration
}

// Discoverer resolves and walks the detail-sitemap index.
type Discoverer struct {
	client Fetcher
	opts   Options
	base   *url.URL
	logger *zap.Logger
}

func NewDiscoverer(client Fetcher, opts Options, logger *zap.Logger) (*Discoverer, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Discoverer{client: client, opts: opts, base: base, logger: logger}, nil
}

// Discover returns the candidate pool: deduplicated by canonical URL
// (latest lastmod wins), sorted most-recent first, capped at PoolSize.
// A single failing sitemap is logged and skipped, never fatal.
func (d *Discoverer) Discover(ctx context.Context) ([]domain.ListingCandidate, error) {
	indexURL := d.sitemapIndexURL(ctx)

	resp, err := d.client.Get(ctx, indexURL, false)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap index: %w", err)
	}
	sitemaps, err := d.parseSitemapIndex(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap index: %w", err)
	}

	perSitemapCap := 1
	if n := len(sitemaps); n > 0 {
		perSitemapCap = (d.opts.PoolSize + n - 1) / n
	}
	d.logger.Info("loaded detail sitemap index",
		zap.Int("sitemaps", len(sitemaps)),
		zap.Int("per_sitemap_cap", perSitemapCap),
		zap.String("source", indexURL))

	byURL := make(map[string]domain.ListingCandidate)
	var mu sync.Mutex
	var processed, failed int

	for offset := 0; offset < len(sitemaps); offset += d.opts.Concurrency {
		end := offset + d.opts.Concurrency
		if end > len(sitemaps) {
			end = len(sitemaps)
		}

		g := new(errgroup.Group)
		g.SetLimit(d.opts.Concurrency)
		for _, sitemapURL := range sitemaps[offset:end] {
			g.Go(func() error {
				entries, err := d.fetchDetailSitemap(ctx, sitemapURL)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					d.logger.Warn("failed to process detail sitemap",
						zap.String("sitemap", sitemapURL), zap.Error(err))
					return nil
				}
				processed++
				if len(entries) > perSitemapCap {
					entries = entries[:perSitemapCap]
				}
				for _, candidate := range entries {
					existing, seen := byURL[candidate.URL]
					if !seen || candidate.LastMod.After(existing.LastMod) {
						byURL[candidate.URL] = candidate
					}
				}
				return nil
			})
		}
		g.Wait()

		if end < len(sitemaps) {
			pause(ctx, d.opts.BatchPause)
		}
	}

	candidates := make([]domain.ListingCandidate, 0, len(byURL))
	for _, c := range byURL {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastMod.After(candidates[j].LastMod)
	})
	if len(candidates) > d.opts.PoolSize {
		candidates = candidates[:d.opts.PoolSize]
	}

	d.logger.Info("discovered candidate pool",
		zap.Int("candidates", len(candidates)),
		zap.Int("processed_sitemaps", processed),
		zap.Int("failed_sitemaps", failed),
		zap.Int("pool_limit", d.opts.PoolSize))
	return candidates, nil
}

// sitemapIndexURL scans robots.txt for a Sitemap: line matching the
// detail-index filename, falling back to the configured default.
func (d *Discoverer) sitemapIndexURL(ctx context.Context) string {
	resp, err := d.client.Get(ctx, d.opts.RobotsURL, false)
	if err != nil {
		d.logger.Warn("failed to read robots.txt, using default sitemap index",
			zap.Error(err))
		return d.opts.DefaultIndexURL
	}

	for _, line := range strings.Split(resp.Body, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(trimmed), "sitemap:") {
			continue
		}
		sitemapURL := strings.TrimSpace(trimmed[len("sitemap:"):])
		if sitemapURL == "" {
			continue
		}
		absolute := d.resolve(sitemapURL)
		if u, err := url.Parse(absolute); err == nil && detailIndexRe.MatchString(u.Path) {
			return absolute
		}
	}

	d.logger.Warn("robots.txt carries no detail sitemap index, using default")
	return d.opts.DefaultIndexURL
}

type sitemapIndexXML struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSetXML struct {
	URLs []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
}

func (d *Discoverer) parseSitemapIndex(body string) ([]string, error) {
	var index sitemapIndexXML
	if err := decodeXML(body, &index); err != nil {
		return nil, err
	}

	var sitemaps []string
	for _, entry := range index.Sitemaps {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		absolute := d.resolve(loc)
		if u, err := url.Parse(absolute); err == nil && detailSitemapRe.MatchString(u.Path) {
			sitemaps = append(sitemaps, absolute)
		}
	}
	if len(sitemaps) > d.opts.MaxSitemaps {
		sitemaps = sitemaps[:d.opts.MaxSitemaps]
	}
	return sitemaps, nil
}

func (d *Discoverer) fetchDetailSitemap(ctx context.Context, sitemapURL string) ([]domain.ListingCandidate, error) {
	resp, err := d.client.Get(ctx, sitemapURL, false)
	if err != nil {
		return nil, err
	}
	return d.parseDetailSitemap(resp.Body)
}

func (d *Discoverer) parseDetailSitemap(body string) ([]domain.ListingCandidate, error) {
	var urlSet urlSetXML
	if err := decodeXML(body, &urlSet); err != nil {
		return nil, err
	}

	discoveredAt := time.Now().UTC()
	entries := urlSet.URLs
	if len(entries) > d.opts.URLsPerSitemap {
		entries = entries[:d.opts.URLsPerSitemap]
	}

	out := make([]domain.ListingCandidate, 0, len(entries))
	for _, entry := range entries {
		canonicalURL, externalID := d.canonicalDetailURL(strings.TrimSpace(entry.Loc))
		if canonicalURL == "" {
			continue
		}
		out = append(out, domain.ListingCandidate{
			ExternalID: externalID,
			URL:        canonicalURL,
			LastMod:    parseLastMod(entry.LastMod, discoveredAt),
		})
	}
	return out, nil
}

// canonicalDetailURL normalizes any detail-page URL shape onto the
// fixed path template, extracting the stable external id. Returns empty
// strings when the path does not look like a detail page.
func (d *Discoverer) canonicalDetailURL(raw string) (string, string) {
	if raw == "" {
		return "", ""
	}
	u, err := url.Parse(d.resolve(raw))
	if err != nil {
		return "", ""
	}
	match := detailURLRe.FindStringSubmatch(u.Path)
	if match == nil {
		return "", ""
	}
	externalID := match[1]

	scheme := d.base.Scheme
	if scheme == "" {
		scheme = u.Scheme
	}
	host := d.base.Host
	if host == "" {
		host = u.Host
	}
	return fmt.Sprintf("%s://%s/usedcar/detail/%s/index.html", scheme, host, externalID), externalID
}

func (d *Discoverer) resolve(raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return d.base.ResolveReference(ref).String()
}

func parseLastMod(value string, fallback time.Time) time.Time {
	text := strings.TrimSpace(value)
	if text == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.UTC()
		}
	}
	return fallback
}

// decodeXML ignores the prolog's declared encoding: bodies are already
// UTF-8 after the fetch client's repair pass.
func decodeXML(body string, v any) error {
	decoder := xml.NewDecoder(strings.NewReader(body))
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return decoder.Decode(v)
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
