package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/lysyi3m/event-comb/app/event"
)

// Crawler fetches a source's pages one after another and turns each into raw links.
type Crawler struct {
	fetcher *Fetcher
	html    *HTMLAdapter
	feeds   *FeedParser
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewCrawler(fetcher *Fetcher) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		html:    NewHTMLAdapter(),
		feeds:   NewFeedParser(),
		sleep:   sleepContext,
	}
}

// Run returns one event.Page per page that could be fetched and parsed. A page that
// fails is logged and skipped; the source fails only when every page failed.
func (c *Crawler) Run(ctx context.Context, config *Config) ([]event.Page, error) {
	timeout := time.Duration(config.Settings.Timeout) * time.Second
	pages := make([]event.Page, 0, len(config.Pages))
	var errs []error

	for i, page := range config.Pages {
		if i > 0 {
			if err := c.sleep(ctx, politeDelay(config.Settings)); err != nil {
				return nil, err
			}
		}

		links, err := c.fetchLinks(ctx, config, page.URL, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Page fetch failed", "source", config.Name, "url", page.URL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", page.URL, err))
			continue
		}

		slog.Debug("Page fetched", "source", config.Name, "url", page.URL, "links", len(links))

		pages = append(pages, event.Page{
			BaseURL:  config.BaseURL,
			Links:    links,
			Category: page.Category,
		})
	}

	if len(pages) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all pages failed: %w", errors.Join(errs...))
	}

	return pages, nil
}

func (c *Crawler) fetchLinks(ctx context.Context, config *Config, pageURL string, timeout time.Duration) ([]event.Link, error) {
	data, err := c.fetcher.Run(ctx, pageURL, config.Referer, timeout)
	if err != nil {
		return nil, err
	}

	switch config.Kind {
	case KindFeed:
		return c.feeds.Run(data)
	default:
		return c.html.Run(data, config.Selector)
	}
}

func politeDelay(settings Settings) time.Duration {
	lo, hi := settings.DelayMin, settings.DelayMax
	if hi <= 0 {
		return 0
	}
	seconds := lo
	if hi > lo {
		seconds += rand.Float64() * (hi - lo)
	}
	return time.Duration(seconds * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
