package store

import (
	"github.com/lysyi3m/event-comb/app/event"
)

type MergeResult struct {
	Added   []event.Record
	Updated int
	Total   int
}

// Store is the durable, URL-keyed event collection.
type Store interface {
	Load() []event.Record
	Merge(batch []event.Record) (MergeResult, error)
}
