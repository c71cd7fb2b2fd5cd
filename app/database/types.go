package database

import (
	"time"

	"github.com/lysyi3m/event-comb/app/event"
)

// timeLayout is fixed-width and always written in UTC, so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	RunStatusOK      = "ok"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// Run is one recorded crawl.
type Run struct {
	ID            string
	Reason        string // scheduled, manual, startup, once
	Status        string
	StartedAt     time.Time
	FinishedAt    time.Time
	Sources       int
	FailedSources int
	Links         int
	Records       int
	Added         int
	Updated       int
	Total         int
	Error         string
	SourceResults []RunSource
}

type RunSource struct {
	Source   string
	Platform string
	Status   string
	Links    int
	Records  int
	Error    string
}

type EventQuery struct {
	Platform string
	Type     string
	Query    string // substring of title
	Limit    int
	Offset   int
}

type EventRepository interface {
	SyncEvents(records []event.Record) error
	ListEvents(q EventQuery) ([]event.Record, int, error)
	GetRecentEvents(limit int) ([]event.Record, error)
	GetEventCount() (int, error)
	CountBy(field string) (map[string]int, error)
}

type RunRepository interface {
	CreateRun(run Run) error
	GetRecentRuns(limit int) ([]Run, error)
	GetRun(id string) (*Run, error)
}
