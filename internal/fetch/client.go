package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"carscout/internal/monitoring"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Charsets that upstream servers declare when they have no idea what the
// page actually is. Treated as "undeclared" so the real encoding gets
// sniffed from the body.
var placeholderCharsets = map[string]struct{}{
	"":           {},
	"iso-8859-1": {},
	"latin-1":    {},
	"cp1252":     {},
}

// Response is a fetched page, decoded to UTF-8.
type Response struct {
	StatusCode int
	Body       string
	FinalURL   string
}

// Options configures a Client.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffJitter  time.Duration
	RequestDelay   time.Duration
	// TargetDomain limits the DNS www-toggle fallback to the one host
	// we actually scrape.
	TargetDomain string
	UserAgent    string
}

// Client is an HTTP GET client with retry, DNS host fallback, encoding
// repair and request pacing.
type Client struct {
	http   *http.Client
	opts   Options
	logger *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	monitoring.Init()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConnsPerHost:   16,
	}

	return &Client{
		http:   &http.Client{Transport: transport},
		opts:   opts,
		logger: logger,
	}
}

// Get fetches url with the retry budget. On a DNS resolution failure it
// does not retry the same host; it makes exactly one fallback pass with
// the www. prefix toggled, and only for the configured target domain.
func (c *Client) Get(ctx context.Context, rawURL string, allow404 bool) (*Response, error) {
	resp, err := c.getWithRetries(ctx, rawURL, allow404)
	if err == nil {
		return resp, nil
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Kind != KindDNS {
		return nil, err
	}

	fallbackURL := toggleWWWHost(rawURL, c.opts.TargetDomain)
	if fallbackURL == "" {
		return nil, err
	}

	c.logger.Warn("DNS resolution failed, retrying with fallback host",
		zap.String("url", rawURL),
		zap.String("fallback_url", fallbackURL))
	return c.getWithRetries(ctx, fallbackURL, allow404)
}

func (c *Client) getWithRetries(ctx context.Context, rawURL string, allow404 bool) (*Response, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.BackoffBase
	expo.Multiplier = 2
	expo.MaxElapsedTime = 0
	expo.RandomizationFactor = jitterFactor(c.opts.BackoffBase, c.opts.BackoffJitter)

	attempt := 0
	op := func() (*Response, error) {
		attempt++
		resp, err := c.doOnce(ctx, rawURL, allow404)
		if err == nil {
			return resp, nil
		}

		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Retryable() {
			monitoring.FetchRetriesTotal.Inc()
			c.logger.Warn("request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.opts.MaxRetries),
				zap.Error(err))
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.opts.MaxRetries-1)), ctx)
	return backoff.RetryWithData(op, b)
}

func (c *Client) doOnce(ctx context.Context, rawURL string, allow404 bool) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout+c.opts.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &RequestError{URL: rawURL, Kind: KindConnection, Err: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && allow404:
		// Fall through: the caller treats 404 as an unavailability signal.
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Kind:       KindHTTP5xx,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Kind:       KindHTTP4xx,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}

	if c.opts.RequestDelay > 0 {
		sleepCtx(ctx, c.opts.RequestDelay)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}

// decodeBody converts the response body to UTF-8, sniffing the real
// encoding when the declared charset is absent or a known placeholder.
func decodeBody(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if _, mis := placeholderCharsets[declaredCharset(contentType)]; mis {
		contentType = ""
	}

	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func classifyTransportError(rawURL string, err error) *RequestError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &RequestError{URL: rawURL, Kind: KindDNS, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RequestError{URL: rawURL, Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{URL: rawURL, Kind: KindTimeout, Err: err}
	}
	return &RequestError{URL: rawURL, Kind: KindConnection, Err: err}
}

// toggleWWWHost returns rawURL with the www. prefix added or removed,
// or "" when the URL is not on the target domain.
func toggleWWWHost(rawURL, targetDomain string) string {
	if targetDomain == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	host := u.Host
	hostLower := strings.ToLower(host)
	if !strings.Contains(hostLower, strings.ToLower(targetDomain)) {
		return ""
	}

	var newHost string
	if strings.HasPrefix(hostLower, "www.") {
		newHost = host[4:]
	} else {
		newHost = "www." + host
	}
	if strings.EqualFold(newHost, host) {
		return ""
	}

	u.Host = newHost
	return u.String()
}

func jitterFactor(base, jitter time.Duration) float64 {
	if base <= 0 || jitter <= 0 {
		return 0
	}
	f := float64(jitter) / float64(base)
	if f > 1 {
		f = 1
	}
	return f
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
