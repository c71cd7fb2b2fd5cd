package api

import (
	"net/http"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/feed"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, records []event.Record) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// EventReader is the read side of database.EventRepository.
type EventReader interface {
	ListEvents(q database.EventQuery) ([]event.Record, int, error)
	GetEventCount() (int, error)
	CountBy(field string) (map[string]int, error)
}

type RunReader interface {
	GetRecentRuns(limit int) ([]database.Run, error)
	GetRun(id string) (*database.Run, error)
}

type SourceCacheInterface interface {
	GetConfigs() []*source.Config
	GetConfig(name string) (*source.Config, error)
	LoadConfig(name string) (*source.Config, error)
	GetConfigCount() int
}

var (
	_ EventReader          = (*database.SQLEventRepository)(nil)
	_ RunReader            = (*database.SQLRunRepository)(nil)
	_ SourceCacheInterface = (*source.SourceCache)(nil)
)

type Handler struct {
	eventRepo   EventReader
	runRepo     RunReader
	generator   GeneratorInterface
	sourceCache SourceCacheInterface
	scheduler   tasks.TaskSchedulerInterface
	metrics     http.Handler
	feedItems   int
}
