// Package discover crawls a listing page and collects profile links for later
// batch scraping. Links are written to a csv file and split into numbered
// batches forming a plan the runner can execute.
package discover

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/gocolly/colly/v2"
	"gopkg.in/yaml.v3"

	"github.com/umputun/scrapn/app/batch"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Params defines the crawl boundaries and how discovered links are grouped
type Params struct {
	ParentURL   string        // listing page to start from
	LinkPattern string        // regexp a link must match to be collected
	CSVFilename string        // csv name used in the resulting plan
	MaxPages    int           // pagination limit, 0 means single page
	BatchSize   int           // links per batch, defaults to 25
	Timeout     time.Duration // per-request timeout
	Proxy       batch.Proxy   // optional upstream proxy
}

// Crawler discovers profile links from a listing page
type Crawler struct {
	params  Params
	pattern *regexp.Regexp
}

// New makes a Crawler, validates the parent url and the link pattern
func New(params Params) (*Crawler, error) {
	if params.ParentURL == "" {
		return nil, fmt.Errorf("parent url is required")
	}
	if _, err := url.Parse(params.ParentURL); err != nil {
		return nil, fmt.Errorf("invalid parent url %q: %w", params.ParentURL, err)
	}
	if params.LinkPattern == "" {
		return nil, fmt.Errorf("link pattern is required")
	}
	pattern, err := regexp.Compile(params.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid link pattern %q: %w", params.LinkPattern, err)
	}
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}
	return &Crawler{params: params, pattern: pattern}, nil
}

// Discover crawls the parent page, following rel=next pagination up to MaxPages,
// and returns links matching the pattern in the order they were first seen.
func (c *Crawler) Discover(ctx context.Context) ([]string, error) {
	base, err := url.Parse(c.params.ParentURL)
	if err != nil {
		return nil, fmt.Errorf("invalid parent url %q: %w", c.params.ParentURL, err)
	}

	col := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowedDomains(base.Hostname()),
	)
	col.SetRequestTimeout(c.params.Timeout)
	if c.params.Proxy.DNS != "" {
		proxyURL := fmt.Sprintf("http://%s:%s@%s", url.QueryEscape(c.params.Proxy.Username),
			url.QueryEscape(c.params.Proxy.Password), c.params.Proxy.DNS)
		if err := col.SetProxy(proxyURL); err != nil {
			return nil, fmt.Errorf("can't set proxy %s: %w", c.params.Proxy.DNS, err)
		}
	}

	seen := map[string]struct{}{}
	var links []string
	var nextPage string

	col.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || !c.pattern.MatchString(link) {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	col.OnHTML("a[rel=next]", func(e *colly.HTMLElement) {
		nextPage = e.Request.AbsoluteURL(e.Attr("href"))
	})
	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	var crawlErr error
	col.OnError(func(r *colly.Response, err error) { crawlErr = err })

	pages := 0
	for pageURL := c.params.ParentURL; pageURL != ""; pageURL = nextPage {
		pages++
		nextPage = ""
		log.Printf("[DEBUG] visiting page %d: %s", pages, pageURL)
		if err := col.Visit(pageURL); err != nil {
			return nil, fmt.Errorf("can't visit %s: %w", pageURL, err)
		}
		if crawlErr != nil {
			return nil, fmt.Errorf("crawl failed on %s: %w", pageURL, crawlErr)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.params.MaxPages <= 0 || pages >= c.params.MaxPages {
			break
		}
	}

	log.Printf("[INFO] discovered %d links from %s, %d pages visited", len(links), c.params.ParentURL, pages)
	return links, nil
}

// MakePlan splits links into numbered batches of BatchSize, keeping order.
// Batch numbers start from 1.
func (c *Crawler) MakePlan(links []string) *batch.PlanConfig {
	size := c.params.BatchSize
	if size <= 0 {
		size = 25
	}
	plan := &batch.PlanConfig{
		ParentURL:   c.params.ParentURL,
		CSVFilename: c.params.CSVFilename,
		Proxy:       c.params.Proxy,
	}
	for i := 0; i < len(links); i += size {
		end := min(i+size, len(links))
		plan.Batches = append(plan.Batches, batch.PlanBatch{
			Number: strconv.Itoa(len(plan.Batches) + 1),
			Links:  links[i:end],
		})
	}
	return plan
}

// WriteCSV saves discovered links to a csv file with a single "link" column
func WriteCSV(path string, links []string) error {
	fh, err := os.Create(path) // nolint gosec // file path comes from the operator
	if err != nil {
		return fmt.Errorf("can't create csv file %s: %w", path, err)
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	if err := w.Write([]string{"link"}); err != nil {
		return fmt.Errorf("can't write csv header: %w", err)
	}
	for _, link := range links {
		if err := w.Write([]string{link}); err != nil {
			return fmt.Errorf("can't write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("can't flush csv file %s: %w", path, err)
	}
	return nil
}

// WritePlan saves the batch plan as yaml
func WritePlan(path string, plan *batch.PlanConfig) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("can't marshal plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("can't write plan file %s: %w", path, err)
	}
	return nil
}
