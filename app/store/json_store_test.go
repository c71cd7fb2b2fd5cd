package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/event-comb/app/event"
)

func newRecord(url, title string) event.Record {
	return event.Record{
		Title:     title,
		URL:       url,
		Platform:  "KKTIX",
		Date:      event.DatePlaceholder,
		Type:      "其他",
		ScrapedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, event.Taipei),
	}
}

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	return NewJSONStore(filepath.Join(t.TempDir(), "docs", "data.json"))
}

func TestJSONStore_MergeIntoEmpty(t *testing.T) {
	s := newTestStore(t)

	result, err := s.Merge([]event.Record{
		newRecord("https://a.kktix.cc/events/one", "One"),
		newRecord("https://a.kktix.cc/events/two", "Two"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Added) != 2 || result.Updated != 0 || result.Total != 2 {
		t.Errorf("Expected 2 added, 0 updated, total 2, got %d/%d/%d", len(result.Added), result.Updated, result.Total)
	}

	loaded := s.Load()
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 persisted records, got %d", len(loaded))
	}
	if loaded[0].Title != "One" || loaded[1].Title != "Two" {
		t.Errorf("Expected insertion order preserved, got %s, %s", loaded[0].Title, loaded[1].Title)
	}
}

func TestJSONStore_UpsertReplacesFields(t *testing.T) {
	s := newTestStore(t)
	url := "https://a.kktix.cc/events/u"

	if _, err := s.Merge([]event.Record{newRecord(url, "Old")}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	img := "https://a.kktix.cc/poster.jpg"
	incoming := newRecord(url, "New")
	incoming.ImgURL = &img
	incoming.Type = "音樂會/演唱會"

	result, err := s.Merge([]event.Record{incoming})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Added) != 0 {
		t.Errorf("Expected 0 added, got %d", len(result.Added))
	}
	if result.Updated != 1 {
		t.Errorf("Expected 1 updated, got %d", result.Updated)
	}

	loaded := s.Load()
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(loaded))
	}
	if loaded[0].Title != "New" {
		t.Errorf("Expected title 'New', got '%s'", loaded[0].Title)
	}
	if loaded[0].Type != "音樂會/演唱會" {
		t.Errorf("Expected type to follow incoming record, got '%s'", loaded[0].Type)
	}
	if loaded[0].ImgURL == nil || *loaded[0].ImgURL != img {
		t.Errorf("Expected image to follow incoming record, got %v", loaded[0].ImgURL)
	}
}

func TestJSONStore_Monotonicity(t *testing.T) {
	s := newTestStore(t)

	var first []event.Record
	for i := 0; i < 5; i++ {
		first = append(first, newRecord(fmt.Sprintf("https://a.kktix.cc/events/%d", i), fmt.Sprintf("Event %d", i)))
	}
	if _, err := s.Merge(first); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var disjoint []event.Record
	for i := 5; i < 8; i++ {
		disjoint = append(disjoint, newRecord(fmt.Sprintf("https://a.kktix.cc/events/%d", i), fmt.Sprintf("Event %d", i)))
	}
	result, err := s.Merge(disjoint)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Total != 8 {
		t.Errorf("Expected total 8 after disjoint batch, got %d", result.Total)
	}

	overlapping := make([]event.Record, len(first))
	for i, r := range first {
		r.Title = r.Title + " (updated)"
		overlapping[i] = r
	}
	result, err = s.Merge(overlapping)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Total != 8 || len(result.Added) != 0 || result.Updated != 5 {
		t.Errorf("Expected total 8, 0 added, 5 updated, got %d/%d/%d", result.Total, len(result.Added), result.Updated)
	}

	for _, r := range s.Load()[:5] {
		if !strings.HasSuffix(r.Title, "(updated)") {
			t.Errorf("Expected incoming title, got '%s'", r.Title)
		}
	}
}

func TestJSONStore_DuplicateWithinBatch(t *testing.T) {
	s := newTestStore(t)
	url := "https://a.kktix.cc/events/dup"

	result, err := s.Merge([]event.Record{newRecord(url, "First"), newRecord(url, "Second")})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Added) != 1 || result.Updated != 1 || result.Total != 1 {
		t.Errorf("Expected 1 added, 1 updated, total 1, got %d/%d/%d", len(result.Added), result.Updated, result.Total)
	}
	if result.Added[0].Title != "Second" {
		t.Errorf("Expected added record to carry the latest fields, got '%s'", result.Added[0].Title)
	}
}

func TestJSONStore_CorruptFileRecovers(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if loaded := s.Load(); len(loaded) != 0 {
		t.Errorf("Expected empty collection, got %d records", len(loaded))
	}

	result, err := s.Merge([]event.Record{newRecord("https://a.kktix.cc/events/x", "Recovered")})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Total != 1 || len(result.Added) != 1 {
		t.Errorf("Expected fresh collection with 1 record, got total %d", result.Total)
	}

	backup, err := os.ReadFile(s.Path() + ".corrupt")
	if err != nil {
		t.Fatalf("Expected corrupt file to be kept aside, got %v", err)
	}
	if string(backup) != "{not json" {
		t.Errorf("Expected backup to hold the original bytes, got %q", backup)
	}
}

const legacyCollection = `[
  {
    "title": "Legacy Concert",
    "url": "https://a.kktix.cc/events/legacy-1",
    "platform": "KKTIX",
    "img_url": null,
    "date": "詳內文",
    "type": "音樂會/演唱會",
    "scraped_at": "2025-11-02T10:15:30.123456",
    "source_note": {"seen": 3}
  },
  {
    "title": 2026,
    "url": "https://a.kktix.cc/events/legacy-2",
    "platform": "KKTIX",
    "img_url": 17,
    "date": "詳內文",
    "type": ["not", "a", "string"],
    "scraped_at": "yesterday"
  },
  {"title": "Broken", "url": 42},
  "not an object"
]`

func TestJSONStore_LegacyEntriesSurvive(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte(legacyCollection), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded := s.Load()
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 usable legacy records, got %d", len(loaded))
	}

	want := time.Date(2025, 11, 2, 10, 15, 30, 123456000, event.Taipei)
	if !loaded[0].ScrapedAt.Equal(want) {
		t.Errorf("Expected offset-less timestamp read as UTC+8 %v, got %v", want, loaded[0].ScrapedAt)
	}
	if loaded[1].Title != "2026" || loaded[1].Type != "" || loaded[1].ImgURL == nil || *loaded[1].ImgURL != "17" {
		t.Errorf("Expected mistyped fields to degrade per field, got %+v", loaded[1])
	}
	if !loaded[1].ScrapedAt.IsZero() {
		t.Errorf("Expected unparseable scraped_at to be left empty, got %v", loaded[1].ScrapedAt)
	}

	result, err := s.Merge([]event.Record{newRecord("https://a.kktix.cc/events/new", "New Show")})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Added) != 1 || result.Total != 3 {
		t.Errorf("Expected 1 added on top of 2 legacy records, got added %d total %d", len(result.Added), result.Total)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Expected valid JSON array, got %v", err)
	}
	if len(raw) != 3 || raw[0]["url"] != "https://a.kktix.cc/events/legacy-1" {
		t.Fatalf("Expected legacy records kept first, got %v", raw)
	}
	note, ok := raw[0]["source_note"].(map[string]any)
	if !ok || note["seen"] != float64(3) {
		t.Errorf("Expected unknown key carried over, got %v", raw[0]["source_note"])
	}
	if _, err := os.Stat(s.Path() + ".corrupt"); !os.IsNotExist(err) {
		t.Error("Expected no backup for a readable collection")
	}
}

func TestJSONStore_UpdateKeepsUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	url := "https://a.kktix.cc/events/legacy-1"
	if err := os.WriteFile(s.Path(), []byte(legacyCollection), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Merge([]event.Record{newRecord(url, "Renamed")}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, `"title": "Renamed"`) || !strings.Contains(content, `"source_note"`) {
		t.Errorf("Expected new fields with the unknown key kept, got %s", content)
	}
}

func TestJSONStore_DropsEntriesWithoutURL(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	data := `[{"title":"No URL","platform":"KKTIX"},{"title":"Kept","url":"https://a.kktix.cc/events/k","type":"其他"}]`
	if err := os.WriteFile(s.Path(), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded := s.Load()
	if len(loaded) != 1 || loaded[0].Title != "Kept" {
		t.Errorf("Expected only the entry with url to survive, got %+v", loaded)
	}
}

func TestJSONStore_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.Merge([]event.Record{newRecord(fmt.Sprintf("https://a.kktix.cc/events/%d", i), "Event")}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "data.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only data.json, got %v", names)
	}
}

func TestJSONStore_FileFormat(t *testing.T) {
	s := newTestStore(t)
	record := newRecord("https://a.kktix.cc/events/x?a=1&b=2", "爵士之夜")

	if _, err := s.Merge([]event.Record{record}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "爵士之夜") {
		t.Error("Expected non-ASCII title written unescaped")
	}
	if !strings.Contains(content, "a=1&b=2") {
		t.Error("Expected ampersand written unescaped")
	}
	if !strings.Contains(content, `"img_url": null`) {
		t.Error("Expected null img_url")
	}
	if !strings.Contains(content, `"scraped_at": "2026-03-01T12:00:00+08:00"`) {
		t.Errorf("Expected UTC+8 timestamp, got %s", content)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Expected valid JSON array, got %v", err)
	}
	for _, key := range []string{"title", "url", "platform", "img_url", "date", "type", "scraped_at"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("Expected key %s in persisted record", key)
		}
	}
}

func TestJSONStore_WriteErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "docs")
	if err := os.WriteFile(blocker, []byte("file, not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewJSONStore(filepath.Join(blocker, "data.json"))
	if _, err := s.Merge([]event.Record{newRecord("https://a.kktix.cc/events/x", "Event")}); err == nil {
		t.Error("Expected write error, got nil")
	}
}
