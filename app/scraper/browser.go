package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/playwright-community/playwright-go"

	"github.com/umputun/scrapn/app/batch"
)

// BrowserFetcher drives a real chromium via playwright, the heavyweight option
// for sites serving bot-check pages to plain http clients. Implements both
// Fetcher and Screenshoter.
type BrowserFetcher struct {
	proxy       batch.Proxy
	settleDelay time.Duration // extra wait after navigation for js-rendered content
	headless    bool

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	// a single page is shared by all workers, navigation and content/screenshot
	// reads have to be one link at a time or workers get each other's pages
	pageLock sync.Mutex
}

// NewBrowserFetcher starts playwright and launches the browser with proxy configured
func NewBrowserFetcher(proxy batch.Proxy, settleDelay time.Duration, headless bool) (*BrowserFetcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("can't start playwright: %w", err)
	}

	res := &BrowserFetcher{proxy: proxy, settleDelay: settleDelay, headless: headless, pw: pw}
	if err := res.launch(); err != nil {
		_ = pw.Stop()
		return nil, err
	}
	return res, nil
}

func (f *BrowserFetcher) launch() error {
	opts := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(f.headless)}
	if f.proxy.DNS != "" {
		opts.Proxy = &playwright.Proxy{Server: "http://" + f.proxy.DNS}
		if f.proxy.Username != "" {
			opts.Proxy.Username = playwright.String(f.proxy.Username)
			opts.Proxy.Password = playwright.String(f.proxy.Password)
		}
	}

	browser, err := f.pw.Chromium.Launch(opts)
	if err != nil {
		return fmt.Errorf("can't launch browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("can't open page: %w", err)
	}

	f.browser, f.page = browser, page
	return nil
}

// Fetch navigates to the link and returns the rendered page html.
// Safe for concurrent use, fetches are serialized on the shared page.
func (f *BrowserFetcher) Fetch(ctx context.Context, link string) (string, error) {
	f.pageLock.Lock()
	defer f.pageLock.Unlock()

	if _, err := f.page.Goto(link, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(60000),
	}); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", link, err)
	}

	// let js-rendered content settle, the data script shows up late on heavy pages
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(f.settleDelay):
	}

	html, err := f.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content for %s: %w", link, err)
	}
	return html, nil
}

// Reset replaces the whole browser with a fresh one, new fingerprint and session
func (f *BrowserFetcher) Reset(_ context.Context) error {
	f.pageLock.Lock()
	defer f.pageLock.Unlock()

	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			log.Printf("[WARN] can't close browser, %v", err)
		}
	}
	return f.launch()
}

// Screenshot captures the current page to a png file
func (f *BrowserFetcher) Screenshot(_ context.Context, path string) error {
	f.pageLock.Lock()
	defer f.pageLock.Unlock()

	if f.page == nil {
		return fmt.Errorf("no active page")
	}
	if _, err := f.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return fmt.Errorf("failed to screenshot to %s: %w", path, err)
	}
	return nil
}

// Close shuts the browser and playwright down
func (f *BrowserFetcher) Close() error {
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			log.Printf("[WARN] can't close browser, %v", err)
		}
	}
	return f.pw.Stop()
}
