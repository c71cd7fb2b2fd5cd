package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/source"
)

// SourceCrawler turns a source definition into pages of raw links.
type SourceCrawler interface {
	Run(ctx context.Context, config *source.Config) ([]event.Page, error)
}

type RecordExtractor interface {
	Extract(platform, forcedCategory string, pages []event.Page) ([]event.Record, event.ExtractStats)
}

type RecordFilterer interface {
	Run(records []event.Record, config *source.Config) ([]event.Record, int)
}

type ImageEnricher interface {
	Run(ctx context.Context, records []event.Record, limit int, timeout time.Duration) int
}

type SourceProvider interface {
	GetEnabledConfigs() []*source.Config
}

type Notifier interface {
	Run(ctx context.Context, added []event.Record) (bool, error)
}

// RunObserver receives the numbers of a run as it progresses. metrics.Metrics
// implements it.
type RunObserver interface {
	ObserveSource(source, status string, links, records int)
	ObserveMerge(added, updated, total int)
	ObserveRun(status string, duration time.Duration, finishedAt time.Time)
	ObserveNotification(sent bool, err error)
	ObserveMirrorError()
}

type RunnerInterface interface {
	Run(ctx context.Context, req RunRequest) (*RunReport, error)
}

// TaskSchedulerInterface is what the API and main need from the scheduler.
//
//	scheduler := NewScheduler(runner, interval, runTimeout, true)
//	scheduler.Start()
//	defer scheduler.Stop()
//	id, err := scheduler.Trigger("manual")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Trigger(reason string) (string, error)
	IsRunning() bool
	LastReport() *RunReport
}

type noopObserver struct{}

func (noopObserver) ObserveSource(string, string, int, int) {}
func (noopObserver) ObserveMerge(int, int, int) {}
func (noopObserver) ObserveRun(string, time.Duration, time.Time) {}
func (noopObserver) ObserveNotification(bool, error) {}
func (noopObserver) ObserveMirrorError() {}
