package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
)

// Repeater retries failed extraction attempts
type Repeater interface {
	Do(ctx context.Context, fun func() error, errs ...error) (err error)
}

// Result is one scraped profile with its source link
type Result struct {
	ProfileLink string  `json:"profile_link"`
	ProfileData Profile `json:"profile_data"`
}

// Runner executes the scrape over a batch of links. Each link is fetched,
// extracted and retried with a fresh session on empty extraction. Debug html
// snapshots and error captures go to Dir.
type Runner struct {
	Fetcher     Fetcher
	Repeater    Repeater
	Concurrency int
	DelayMin    time.Duration
	DelayMax    time.Duration
	Dir         string // run directory for debug_* and error_* files
	DebugHTML   bool   // save page html for every successful extraction

	fetchLock sync.RWMutex // reset swaps the session under the write lock
}

// Run scrapes all links and returns extracted results in the links order.
// The first failed link fails the run, partial results are still returned
// so collected artifacts remain useful for diagnostics.
func (r *Runner) Run(ctx context.Context, links []string) ([]Result, error) {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]Result, len(links))
	var failed error
	var failedLock sync.Mutex

	gr := syncs.NewSizedGroup(concurrency, syncs.Context(ctx), syncs.Preemptive)
	for i, link := range links {
		i, link := i, link
		gr.Go(func(ctx context.Context) {
			log.Printf("[INFO] processing profile %d/%d: %s", i+1, len(links), link)
			profile, err := r.scrapeLink(ctx, i, link)
			if err != nil {
				failedLock.Lock()
				if failed == nil {
					failed = fmt.Errorf("link %s: %w", link, err)
				}
				failedLock.Unlock()
				return
			}
			results[i] = Result{ProfileLink: link, ProfileData: profile}
			r.delay(ctx)
		})
	}
	gr.Wait()

	if failed != nil {
		return compact(results), failed
	}
	return results, nil
}

// scrapeLink fetches and extracts a single profile, retrying with a fresh
// session when the page comes back without the data script
func (r *Runner) scrapeLink(ctx context.Context, idx int, link string) (Profile, error) {
	var profile Profile
	var lastHTML string

	err := r.Repeater.Do(ctx, func() error {
		r.fetchLock.RLock()
		html, err := r.Fetcher.Fetch(ctx, link)
		r.fetchLock.RUnlock()
		if err != nil {
			return err
		}
		lastHTML = html

		p, err := Extract(html)
		if err != nil {
			if errors.Is(err, ErrNoData) {
				// likely a bot-check page, start over with a clean session
				log.Printf("[WARN] no page data for %s, resetting session", link)
				r.fetchLock.Lock()
				resetErr := r.Fetcher.Reset(ctx)
				r.fetchLock.Unlock()
				if resetErr != nil {
					return fmt.Errorf("session reset failed: %w", resetErr)
				}
			}
			return err
		}

		profile = p
		return nil
	})

	if err != nil {
		r.captureError(ctx, idx, lastHTML)
		return Profile{}, err
	}

	if r.DebugHTML && lastHTML != "" {
		r.saveFile(fmt.Sprintf("debug_%d.html", idx+1), lastHTML)
		if sc, ok := r.Fetcher.(Screenshoter); ok && r.Dir != "" {
			path := filepath.Join(r.Dir, fmt.Sprintf("debug_%d.png", idx+1))
			if err := sc.Screenshot(ctx, path); err != nil {
				log.Printf("[WARN] can't capture debug screenshot, %v", err)
			}
		}
	}
	return profile, nil
}

// captureError saves the failed page html and, for browser fetchers, a screenshot
func (r *Runner) captureError(ctx context.Context, idx int, html string) {
	if r.Dir == "" {
		return
	}
	if html != "" {
		r.saveFile(fmt.Sprintf("error_%d.html", idx+1), html)
	}
	if sc, ok := r.Fetcher.(Screenshoter); ok {
		path := filepath.Join(r.Dir, fmt.Sprintf("error_%d.png", idx+1))
		if err := sc.Screenshot(ctx, path); err != nil {
			log.Printf("[WARN] can't capture error screenshot, %v", err)
		}
	}
}

func (r *Runner) saveFile(name, content string) {
	if r.Dir == "" {
		return
	}
	path := filepath.Join(r.Dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		log.Printf("[WARN] can't save %s, %v", path, err)
	}
}

// delay sleeps a random interval between links to keep the scrape polite
func (r *Runner) delay(ctx context.Context) {
	if r.DelayMax <= 0 {
		return
	}
	d := r.DelayMin
	if r.DelayMax > r.DelayMin {
		d += time.Duration(rand.Int63n(int64(r.DelayMax - r.DelayMin))) //nolint:gosec // jitter, not crypto
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// compact drops zero-value entries left by failed links
func compact(results []Result) []Result {
	res := make([]Result, 0, len(results))
	for _, r := range results {
		if r.ProfileLink != "" {
			res = append(res, r)
		}
	}
	return res
}

// WriteResults saves the batch output as an indented json array
func WriteResults(path string, results []Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("can't marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("can't write results to %s: %w", path, err)
	}
	return nil
}
