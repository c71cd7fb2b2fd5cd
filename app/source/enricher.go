package source

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability"

	"github.com/lysyi3m/event-comb/app/event"
)

// ImageEnricher fills missing images from the lead image of each record's detail
// page.
type ImageEnricher struct {
	fetcher *Fetcher
}

func NewImageEnricher(fetcher *Fetcher) *ImageEnricher {
	return &ImageEnricher{fetcher: fetcher}
}

// Run enriches at most limit records in place and returns how many gained an image.
// Failures leave the record untouched.
func (e *ImageEnricher) Run(ctx context.Context, records []event.Record, limit int, timeout time.Duration) int {
	enriched := 0
	attempts := 0

	for i := range records {
		if attempts >= limit {
			break
		}
		if records[i].ImgURL != nil {
			continue
		}

		select {
		case <-ctx.Done():
			return enriched
		default:
		}

		attempts++
		img, err := e.leadImage(ctx, records[i].URL, timeout)
		if err != nil {
			slog.Debug("Image enrichment failed", "url", records[i].URL, "error", err)
			continue
		}
		if img == "" {
			continue
		}

		records[i].ImgURL = &img
		enriched++
	}

	return enriched
}

func (e *ImageEnricher) leadImage(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	data, err := e.fetcher.Run(ctx, pageURL, "", timeout)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(bytes.NewReader(data), page)
	if err != nil {
		return "", err
	}

	return absoluteImage(article.Image, page), nil
}

func absoluteImage(src string, page *url.URL) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	abs := page.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
