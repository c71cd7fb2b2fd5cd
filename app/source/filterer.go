package source

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/event-comb/app/event"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops records rejected by the source's include/exclude filters and reports how
// many were dropped.
func (f *Filterer) Run(records []event.Record, config *Config) ([]event.Record, int) {
	if len(config.Filters) == 0 {
		return records, 0
	}

	kept := make([]event.Record, 0, len(records))
	for _, record := range records {
		if filtered, reason := f.applyFilters(record, config.Filters); filtered {
			slog.Debug("Record filtered", "source", config.Name, "url", record.URL, "reason", reason)
			continue
		}
		kept = append(kept, record)
	}

	return kept, len(records) - len(kept)
}

func (f *Filterer) applyFilters(record event.Record, filters []Filter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(record, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(record event.Record, field string) string {
	switch field {
	case "title":
		return record.Title
	case "url":
		return record.URL
	case "type":
		return record.Type
	case "platform":
		return record.Platform
	default:
		return ""
	}
}
