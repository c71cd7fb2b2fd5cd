package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/source"
)

const (
	SourceStatusOK     = "ok"
	SourceStatusFailed = "failed"
)

// SourceResult is what one source contributed to a run.
type SourceResult struct {
	Source     string
	Platform   string
	Status     string
	Pages      int
	Links      int
	Rejected   int
	Duplicates int
	Filtered   int
	Enriched   int
	Records    []event.Record
	Attempts   int
	Duration   time.Duration
	Error      string
}

type CrawlSourceTask struct {
	Task
	SourceConfig *source.Config
	crawler      SourceCrawler
	extractor    RecordExtractor
	filterer     RecordFilterer
	enricher     ImageEnricher
	Result       SourceResult
}

func NewCrawlSourceTask(config *source.Config, crawler SourceCrawler, extractor RecordExtractor,
	filterer RecordFilterer, enricher ImageEnricher) *CrawlSourceTask {
	return &CrawlSourceTask{
		Task:         NewTask(TaskTypeCrawlSource, config.Name),
		SourceConfig: config,
		crawler:      crawler,
		extractor:    extractor,
		filterer:     filterer,
		enricher:     enricher,
	}
}

func (t *CrawlSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	config := t.SourceConfig

	pages, err := t.crawler.Run(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to crawl source: %w", err)
	}

	records, stats := t.extractor.Extract(config.Platform, config.Category, pages)

	filtered := 0
	if t.filterer != nil {
		records, filtered = t.filterer.Run(records, config)
	}

	enriched := 0
	if config.Settings.EnrichImages && t.enricher != nil {
		timeout := time.Duration(config.Settings.Timeout) * time.Second
		enriched = t.enricher.Run(ctx, records, config.Settings.MaxEnrich, timeout)
	}

	t.Result = SourceResult{
		Source:     t.SourceName,
		Platform:   config.Platform,
		Status:     SourceStatusOK,
		Pages:      len(pages),
		Links:      stats.Links,
		Rejected:   stats.Rejected,
		Duplicates: stats.Duplicates,
		Filtered:   filtered,
		Enriched:   enriched,
		Records:    records,
		Attempts:   t.RetryCount + 1,
		Duration:   t.GetDuration(),
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"pages", len(pages),
		"links", stats.Links,
		"rejected", stats.Rejected,
		"duplicates", stats.Duplicates,
		"filtered", filtered,
		"enriched", enriched,
		"records", len(records))

	return nil
}
