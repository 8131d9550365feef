// Package newsfeed pulls recent industry headlines from RSS/Atom feeds
// so insight prompts carry current market context.
package newsfeed

import (
	"log"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Headline is one feed item reduced to what the prompt needs.
type Headline struct {
	Title  string
	Source string
}

// Feed is a single feed configuration. Name is optional; the hostname
// is used when it is empty.
type Feed struct {
	URL  string
	Name string
}

// Fetcher parses a fixed list of feeds.
type Fetcher struct {
	feeds  []Feed
	parser *gofeed.Parser
}

// NewFetcher creates a fetcher over the configured feeds.
func NewFetcher(feeds []Feed) *Fetcher {
	return &Fetcher{feeds: feeds, parser: gofeed.NewParser()}
}

// Fetch returns up to max headlines across all feeds. Feeds that fail
// to parse are logged and skipped; headlines are best-effort context,
// never a reason to fail a run.
func (f *Fetcher) Fetch(max int) []Headline {
	if max <= 0 {
		return nil
	}

	var all []Headline
	for _, fc := range f.feeds {
		if len(all) >= max {
			break
		}

		feed, err := f.parser.ParseURL(fc.URL)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}

		source := fc.Name
		if source == "" {
			source = sourceName(fc.URL)
		}

		count := 0
		for _, item := range feed.Items {
			if len(all) >= max {
				break
			}
			title := strings.TrimSpace(item.Title)
			if title == "" {
				continue
			}
			all = append(all, Headline{Title: title, Source: source})
			count++
		}
		log.Printf("Collected %d headlines from %s", count, source)
	}

	return all
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
