package scraper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageStub fakes the browser page, tracking overlapping navigations. Only the
// methods Fetch touches are implemented, the embedded interface covers the rest.
type pageStub struct {
	playwright.Page
	mu      sync.Mutex
	current string
	active  int32
	overlap int32
}

func (p *pageStub) Goto(url string, _ ...playwright.PageGotoOptions) (playwright.Response, error) {
	if atomic.AddInt32(&p.active, 1) > 1 {
		atomic.StoreInt32(&p.overlap, 1)
	}
	p.mu.Lock()
	p.current = url
	p.mu.Unlock()
	time.Sleep(time.Millisecond) // widen the window between navigation and content read
	return nil, nil
}

func (p *pageStub) Content() (string, error) {
	defer atomic.AddInt32(&p.active, -1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return "<html>" + p.current + "</html>", nil
}

func TestBrowserFetcher_FetchSerialized(t *testing.T) {
	page := &pageStub{}
	f := &BrowserFetcher{page: page, settleDelay: time.Millisecond}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	htmls := make([]string, workers)

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link := fmt.Sprintf("https://example.com/p/%d", i)
			html, err := f.Fetch(context.Background(), link)
			errs[i], htmls[i] = err, html
		}(i)
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("<html>https://example.com/p/%d</html>", i), htmls[i],
			"every worker gets the page it navigated to")
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&page.overlap), "navigations never overlap on the shared page")
}
