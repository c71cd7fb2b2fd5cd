package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/store"
)

const (
	RunStatusOK      = database.RunStatusOK
	RunStatusPartial = database.RunStatusPartial
	RunStatusFailed  = database.RunStatusFailed

	defaultTaskTimeout  = 5 * time.Minute
	notificationTimeout = 30 * time.Second
)

var _ RunnerInterface = (*Runner)(nil)

type RunRequest struct {
	ID     string
	Reason string
}

// RunReport summarizes one run across all sources.
type RunReport struct {
	ID         string
	Reason     string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    []SourceResult
	Links      int
	Records    int
	Merge      store.MergeResult
	Notified   bool
	Error      string
}

func (r *RunReport) FailedSources() int {
	failed := 0
	for _, src := range r.Sources {
		if src.Status == SourceStatusFailed {
			failed++
		}
	}
	return failed
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunnerDeps lists the collaborators of a Runner. Store, Sources, Crawler and
// Extractor are required; the rest may be left nil.
type RunnerDeps struct {
	Sources   SourceProvider
	Crawler   SourceCrawler
	Extractor RecordExtractor
	Filterer  RecordFilterer
	Enricher  ImageEnricher
	Store     store.Store
	Events    database.EventRepository
	Runs      database.RunRepository
	Notifier  Notifier
	Observer  RunObserver

	WorkerCount int
	TaskTimeout time.Duration
}

// Runner crawls every enabled source on a bounded worker pool, merges the combined
// batch into the store once and fans the outcome out to the mirror, run history,
// notifier and metrics.
type Runner struct {
	deps        RunnerDeps
	observer    RunObserver
	workerCount int
	taskTimeout time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRunner(deps RunnerDeps) *Runner {
	var observer RunObserver = noopObserver{}
	if deps.Observer != nil {
		observer = deps.Observer
	}

	workerCount := deps.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	return &Runner{
		deps:        deps,
		observer:    observer,
		workerCount: workerCount,
		taskTimeout: cmp.Or(deps.TaskTimeout, defaultTaskTimeout),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Run performs a complete run. Only a failure to persist the collection is returned
// as an error; failing sources make the run partial.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	report := &RunReport{
		ID:        cmp.Or(req.ID, uuid.NewString()),
		Reason:    cmp.Or(req.Reason, "manual"),
		StartedAt: r.now(),
	}

	configs := r.deps.Sources.GetEnabledConfigs()
	slog.Info("Run started", "id", report.ID, "reason", report.Reason, "sources", len(configs))

	report.Sources = r.crawlAll(ctx, configs)

	batch := make([]event.Record, 0)
	for _, src := range report.Sources {
		report.Links += src.Links
		report.Records += len(src.Records)
		batch = append(batch, src.Records...)
	}

	result, err := r.deps.Store.Merge(batch)
	if err != nil {
		report.Status = RunStatusFailed
		report.Error = err.Error()
		r.finish(report)
		return report, fmt.Errorf("failed to persist collection: %w", err)
	}
	report.Merge = result
	r.observer.ObserveMerge(len(result.Added), result.Updated, result.Total)

	r.syncMirror()
	r.notify(ctx, report)

	failed := report.FailedSources()
	switch {
	case len(report.Sources) > 0 && failed == len(report.Sources):
		report.Status = RunStatusFailed
		report.Error = "all sources failed"
	case failed > 0:
		report.Status = RunStatusPartial
	default:
		report.Status = RunStatusOK
	}

	r.finish(report)
	return report, nil
}

type crawlJob struct {
	index int
	task  *CrawlSourceTask
}

func (r *Runner) crawlAll(ctx context.Context, configs []*source.Config) []SourceResult {
	results := make([]SourceResult, len(configs))
	if len(configs) == 0 {
		return results
	}

	taskQueue := make(chan crawlJob, len(configs))
	for i, config := range configs {
		task := NewCrawlSourceTask(config, r.deps.Crawler, r.deps.Extractor, r.deps.Filterer, r.deps.Enricher)
		taskQueue <- crawlJob{index: i, task: task}
	}
	close(taskQueue)

	var wg sync.WaitGroup
	for id := range min(r.workerCount, len(configs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range taskQueue {
				results[job.index] = r.executeTask(ctx, id, job.task)
			}
		}()
	}
	wg.Wait()

	for _, res := range results {
		r.observer.ObserveSource(res.Source, res.Status, res.Links, len(res.Records))
	}

	return results
}

func (r *Runner) executeTask(ctx context.Context, workerID int, task *CrawlSourceTask) SourceResult {
	task.Start()

	for {
		taskCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
		err := task.Execute(taskCtx)
		cancel()

		if err == nil {
			return task.Result
		}

		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "error", err)

		if !task.CanRetry() || ctx.Err() != nil {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
			return failedResult(task, err)
		}

		task.IncrementRetryCount()
		delay := retryDelay(task.GetRetryCount())

		slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

		if err := r.sleep(ctx, delay); err != nil {
			return failedResult(task, err)
		}
	}
}

func failedResult(task *CrawlSourceTask, err error) SourceResult {
	return SourceResult{
		Source:   task.GetSourceName(),
		Platform: task.SourceConfig.Platform,
		Status:   SourceStatusFailed,
		Records:  []event.Record{},
		Attempts: task.GetRetryCount() + 1,
		Duration: task.GetDuration(),
		Error:    err.Error(),
	}
}

// syncMirror copies the canonical collection into SQLite. The JSON file stays the
// source of truth, so failures are only logged.
func (r *Runner) syncMirror() {
	if r.deps.Events == nil {
		return
	}

	records := r.deps.Store.Load()
	if err := r.deps.Events.SyncEvents(records); err != nil {
		slog.Warn("Failed to sync events mirror", "error", err)
		r.observer.ObserveMirrorError()
		return
	}

	slog.Debug("Events mirror synced", "events", len(records))
}

func (r *Runner) notify(ctx context.Context, report *RunReport) {
	if r.deps.Notifier == nil {
		return
	}

	// Additions are already persisted, so a cancelled run still reports them.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
	defer cancel()

	sent, err := r.deps.Notifier.Run(notifyCtx, report.Merge.Added)
	r.observer.ObserveNotification(sent, err)
	if err != nil {
		slog.Warn("Failed to send notification", "id", report.ID, "added", len(report.Merge.Added), "error", err)
		return
	}
	report.Notified = sent
}

func (r *Runner) finish(report *RunReport) {
	report.FinishedAt = r.now()

	if r.deps.Runs != nil {
		if err := r.deps.Runs.CreateRun(toRunRecord(report)); err != nil {
			slog.Warn("Failed to record run", "id", report.ID, "error", err)
		}
	}

	r.observer.ObserveRun(report.Status, report.Duration(), report.FinishedAt)

	slog.Info("Run completed",
		"id", report.ID,
		"status", report.Status,
		"duration", report.Duration(),
		"sources", len(report.Sources),
		"failed_sources", report.FailedSources(),
		"links", report.Links,
		"records", report.Records,
		"added", len(report.Merge.Added),
		"updated", report.Merge.Updated,
		"total", report.Merge.Total)
}

func toRunRecord(report *RunReport) database.Run {
	run := database.Run{
		ID:            report.ID,
		Reason:        report.Reason,
		Status:        report.Status,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Sources:       len(report.Sources),
		FailedSources: report.FailedSources(),
		Links:         report.Links,
		Records:       report.Records,
		Added:         len(report.Merge.Added),
		Updated:       report.Merge.Updated,
		Total:         report.Merge.Total,
		Error:         report.Error,
		SourceResults: make([]database.RunSource, 0, len(report.Sources)),
	}

	for _, src := range report.Sources {
		run.SourceResults = append(run.SourceResults, database.RunSource{
			Source:   src.Source,
			Platform: src.Platform,
			Status:   src.Status,
			Links:    src.Links,
			Records:  len(src.Records),
			Error:    src.Error,
		})
	}

	return run
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
