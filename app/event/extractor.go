package event

import (
	"cmp"
)

type ExtractStats struct {
	Links      int
	Rejected   int
	Duplicates int
}

// Extract runs every link of a source's pages through the factory. The seen set lives
// only for this call, so a URL repeated across the pages of one source yields a single
// record (the first) while other sources and later runs are unaffected.
func (f *Factory) Extract(platform, forcedCategory string, pages []Page) ([]Record, ExtractStats) {
	var stats ExtractStats
	seen := make(map[string]struct{})
	records := make([]Record, 0)

	for _, page := range pages {
		forced := cmp.Or(page.Category, forcedCategory)

		for _, link := range page.Links {
			stats.Links++
			if link == nil {
				stats.Rejected++
				continue
			}

			record, ok := f.Run(link, platform, page.BaseURL, forced)
			if !ok {
				stats.Rejected++
				continue
			}

			if _, dup := seen[record.URL]; dup {
				stats.Duplicates++
				continue
			}
			seen[record.URL] = struct{}{}
			records = append(records, record)
		}
	}

	return records, stats
}
