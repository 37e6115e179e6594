package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoData indicates the page has no embedded data script, usually a bot-check
// interstitial or a half-loaded page. Callers reset the session and retry on it.
var ErrNoData = errors.New("page data script not found")

const dataScriptID = "__NEXT_DATA__"

// Extract parses the page html and pulls the profile out of the embedded data script
func Extract(html string) (Profile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Profile{}, fmt.Errorf("can't parse html: %w", err)
	}

	sel := doc.Find("script#" + dataScriptID)
	if sel.Length() == 0 {
		return Profile{}, ErrNoData
	}

	payload := strings.TrimSpace(sel.First().Text())
	if payload == "" {
		return Profile{}, ErrNoData
	}

	profile, err := ProfileFromNextData([]byte(payload))
	if err != nil {
		return Profile{}, fmt.Errorf("can't extract profile: %w", err)
	}
	return profile, nil
}
