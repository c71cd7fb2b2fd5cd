package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/store"
)

// MockCrawler returns one empty page per call, or the queued errors for a source
// until they run out.
type MockCrawler struct {
	mu     sync.Mutex
	errs   map[string][]error
	always map[string]error
	calls  map[string]int
	block  chan struct{}
}

func newMockCrawler() *MockCrawler {
	return &MockCrawler{
		errs:   make(map[string][]error),
		always: make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (m *MockCrawler) Run(ctx context.Context, config *source.Config) ([]event.Page, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[config.Name]++

	if err, ok := m.always[config.Name]; ok {
		return nil, err
	}
	if queued := m.errs[config.Name]; len(queued) > 0 {
		m.errs[config.Name] = queued[1:]
		return nil, queued[0]
	}

	return []event.Page{{BaseURL: config.BaseURL}}, nil
}

func (m *MockCrawler) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// MockExtractor hands out prepared records per platform.
type MockExtractor struct {
	records map[string][]event.Record
}

func (m *MockExtractor) Extract(platform, forcedCategory string, pages []event.Page) ([]event.Record, event.ExtractStats) {
	records := append([]event.Record(nil), m.records[platform]...)
	if forcedCategory != "" {
		for i := range records {
			records[i].Type = forcedCategory
		}
	}
	return records, event.ExtractStats{Links: len(records) + 1, Rejected: 1}
}

type MockEnricher struct {
	limit int
	calls int
}

func (m *MockEnricher) Run(ctx context.Context, records []event.Record, limit int, timeout time.Duration) int {
	m.calls++
	m.limit = limit
	if len(records) == 0 {
		return 0
	}
	img := "https://img.example.com/lead.jpg"
	records[0].ImgURL = &img
	return 1
}

type MockSources struct {
	configs []*source.Config
}

func (m *MockSources) GetEnabledConfigs() []*source.Config {
	return m.configs
}

// MockStore keeps the collection in memory.
type MockStore struct {
	mu      sync.Mutex
	records []event.Record
	batches [][]event.Record
	err     error
}

func (m *MockStore) Load() []event.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event.Record(nil), m.records...)
}

func (m *MockStore) Merge(batch []event.Record) (store.MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches = append(m.batches, batch)
	if m.err != nil {
		return store.MergeResult{}, m.err
	}

	result := store.MergeResult{Added: []event.Record{}}
	for _, record := range batch {
		found := false
		for i := range m.records {
			if m.records[i].URL == record.URL {
				m.records[i] = record
				result.Updated++
				found = true
			}
		}
		if !found {
			m.records = append(m.records, record)
			result.Added = append(result.Added, record)
		}
	}
	result.Total = len(m.records)
	return result, nil
}

type MockEventRepository struct {
	synced [][]event.Record
	err    error
}

func (m *MockEventRepository) SyncEvents(records []event.Record) error {
	m.synced = append(m.synced, records)
	return m.err
}

func (m *MockEventRepository) ListEvents(q database.EventQuery) ([]event.Record, int, error) {
	return nil, 0, nil
}

func (m *MockEventRepository) GetRecentEvents(limit int) ([]event.Record, error) {
	return nil, nil
}

func (m *MockEventRepository) GetEventCount() (int, error) {
	return 0, nil
}

func (m *MockEventRepository) CountBy(field string) (map[string]int, error) {
	return nil, nil
}

type MockRunRepository struct {
	mu   sync.Mutex
	runs []database.Run
}

func (m *MockRunRepository) CreateRun(run database.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *MockRunRepository) GetRecentRuns(limit int) ([]database.Run, error) {
	return nil, nil
}

func (m *MockRunRepository) GetRun(id string) (*database.Run, error) {
	return nil, database.ErrRunNotFound
}

type MockNotifier struct {
	added [][]event.Record
	err   error
}

func (m *MockNotifier) Run(ctx context.Context, added []event.Record) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if len(added) == 0 {
		return false, nil
	}
	m.added = append(m.added, added)
	return true, nil
}

type MockObserver struct {
	mu            sync.Mutex
	sources       map[string]string
	runs          []string
	notifications int
	mirrorErrors  int
	added         int
}

func (m *MockObserver) ObserveSource(source, status string, links, records int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sources == nil {
		m.sources = make(map[string]string)
	}
	m.sources[source] = status
}

func (m *MockObserver) ObserveMerge(added, updated, total int) {
	m.added += added
}

func (m *MockObserver) ObserveRun(status string, duration time.Duration, finishedAt time.Time) {
	m.runs = append(m.runs, status)
}

func (m *MockObserver) ObserveNotification(sent bool, err error) {
	m.notifications++
}

func (m *MockObserver) ObserveMirrorError() {
	m.mirrorErrors++
}

var errFetch = errors.New("connection refused")

func testConfig(name, platform string) *source.Config {
	return &source.Config{
		Name:     name,
		Platform: platform,
		Kind:     source.KindHTML,
		BaseURL:  "https://" + name + ".example.com/",
		Selector: "a",
		Pages:    []source.PageConfig{{URL: "https://" + name + ".example.com/list"}},
		Settings: source.Settings{Enabled: true, Timeout: 5, MaxEnrich: 20},
	}
}

func testRecords(platform string, n int) []event.Record {
	records := make([]event.Record, n)
	for i := range records {
		records[i] = event.Record{
			Title:     fmt.Sprintf("%s event %d", platform, i),
			URL:       fmt.Sprintf("https://%s.example.com/events/%d", platform, i),
			Platform:  platform,
			Date:      event.DatePlaceholder,
			Type:      "其他",
			ScrapedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, event.Taipei),
		}
	}
	return records
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
