package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/scrapn/app/batch"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher retrieves page html for a link. Reset discards the current session
// (cookies, connections) and starts a fresh one, used after a failed extraction.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (html string, err error)
	Reset(ctx context.Context) error
	Close() error
}

// Screenshoter is an optional capability of browser-based fetchers,
// captures the current page to a png file.
type Screenshoter interface {
	Screenshot(ctx context.Context, path string) error
}

// HTTPFetcher fetches pages with a plain http client, optionally through a proxy
type HTTPFetcher struct {
	proxy   batch.Proxy
	timeout time.Duration
	client  *http.Client
}

// NewHTTPFetcher makes a fetcher with a fresh client session
func NewHTTPFetcher(proxy batch.Proxy, timeout time.Duration) (*HTTPFetcher, error) {
	res := &HTTPFetcher{proxy: proxy, timeout: timeout}
	if err := res.Reset(context.Background()); err != nil {
		return nil, err
	}
	return res, nil
}

// Fetch gets the page and returns its html. Non-200 responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("can't make request for %s: %w", link, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer func() {
		if e := resp.Body.Close(); e != nil {
			log.Printf("[WARN] can't close response body for %s, %v", link, e)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, link)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024)) // cap page size at 10M
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", link, err)
	}
	return string(body), nil
}

// Reset replaces the http client, dropping cookies and pooled connections
func (f *HTTPFetcher) Reset(_ context.Context) error {
	if f.client != nil {
		f.client.CloseIdleConnections()
	}

	proxyURL, err := f.proxy.URL()
	if err != nil {
		return fmt.Errorf("bad proxy config: %w", err)
	}

	transport := &http.Transport{}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("can't make cookie jar: %w", err)
	}

	f.client = &http.Client{Transport: transport, Jar: jar, Timeout: f.timeout}
	return nil
}

// Close releases pooled connections
func (f *HTTPFetcher) Close() error {
	if f.client != nil {
		f.client.CloseIdleConnections()
	}
	return nil
}

// proxyFromClient exposed for tests
func (f *HTTPFetcher) proxyFromClient() *url.URL {
	tr, ok := f.client.Transport.(*http.Transport)
	if !ok || tr.Proxy == nil {
		return nil
	}
	u, _ := tr.Proxy(&http.Request{URL: &url.URL{Scheme: "http", Host: "example.com"}})
	return u
}
