package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/lysyi3m/event-comb/app/event"
)

var _ Store = (*JSONStore)(nil)

// JSONStore keeps the collection as a pretty-printed JSON array on disk. Records keep
// the order in which their URL was first seen.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Path() string {
	return s.path
}

// Load returns the persisted collection. Read problems never fail the caller: a
// missing or unreadable file yields an empty collection, and a single bad entry only
// drops that entry.
func (s *JSONStore) Load() []event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, _ := s.load()
	return c.records
}

// Merge upserts batch into the collection and persists the result once. An incoming
// record with a known URL replaces the stored one in place; keys the store does not
// know about are carried over.
func (s *JSONStore) Merge(batch []event.Record) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, corrupt := s.load()
	if corrupt {
		s.backup()
	}

	result := MergeResult{Added: make([]event.Record, 0)}
	addedAt := make(map[string]int)

	for _, record := range batch {
		if record.URL == "" {
			continue
		}

		if i, ok := c.index[record.URL]; ok {
			c.records[i] = record
			result.Updated++
			if j, ok := addedAt[record.URL]; ok {
				result.Added[j] = record
			}
			continue
		}

		c.index[record.URL] = len(c.records)
		c.records = append(c.records, record)
		addedAt[record.URL] = len(result.Added)
		result.Added = append(result.Added, record)
	}

	if err := s.write(c); err != nil {
		return MergeResult{}, err
	}

	result.Total = len(c.records)

	slog.Debug("Collection merged",
		"path", s.path,
		"batch", len(batch),
		"added", len(result.Added),
		"updated", result.Updated,
		"total", result.Total)

	return result, nil
}

type collection struct {
	records []event.Record
	index   map[string]int
	extra   map[string]map[string]json.RawMessage // by url
}

// load reads the collection entry by entry. corrupt is set only when the file exists
// but is not a JSON array at all.
func (s *JSONStore) load() (c collection, corrupt bool) {
	c = collection{
		records: make([]event.Record, 0),
		index:   make(map[string]int),
		extra:   make(map[string]map[string]json.RawMessage),
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("No existing collection, starting empty", "path", s.path)
		return c, false
	}
	if err != nil {
		slog.Warn("Failed to read collection, starting empty", "path", s.path, "error", err)
		return c, false
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return c, false
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Collection is corrupt, starting empty", "path", s.path, "error", err)
		return c, true
	}

	dropped := 0
	for _, raw := range entries {
		var record event.Record
		if err := json.Unmarshal(raw, &record); err != nil || record.URL == "" {
			dropped++
			continue
		}

		extra := unknownFields(raw)
		if i, ok := c.index[record.URL]; ok {
			c.records[i] = record
		} else {
			c.index[record.URL] = len(c.records)
			c.records = append(c.records, record)
		}
		if len(extra) > 0 {
			if c.extra[record.URL] == nil {
				c.extra[record.URL] = extra
			} else {
				maps.Copy(c.extra[record.URL], extra)
			}
		}
	}

	if dropped > 0 {
		slog.Warn("Dropped stored entries without usable url", "path", s.path, "count", dropped)
	}

	return c, false
}

// backup moves an unreadable collection aside so the next write does not destroy it.
func (s *JSONStore) backup() {
	target := s.path + ".corrupt"
	if err := os.Rename(s.path, target); err != nil {
		slog.Warn("Failed to back up corrupt collection", "path", s.path, "error", err)
		return
	}
	slog.Warn("Corrupt collection moved aside", "path", s.path, "backup", target)
}

func unknownFields(raw json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	for key := range fields {
		if event.IsRecordField(key) {
			delete(fields, key)
		}
	}
	return fields
}

// encodeEntry renders a record followed by its carried-over keys in sorted order.
func encodeEntry(record event.Record, extra map[string]json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	entry := bytes.TrimRight(buf.Bytes(), "\n")
	if len(extra) == 0 {
		return entry, nil
	}

	entry = entry[:len(entry)-1]
	for _, key := range slices.Sorted(maps.Keys(extra)) {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		entry = append(entry, ',')
		entry = append(entry, name...)
		entry = append(entry, ':')
		entry = append(entry, extra[key]...)
	}
	return append(entry, '}'), nil
}

func (s *JSONStore) write(c collection) error {
	entries := make([]json.RawMessage, 0, len(c.records))
	for _, record := range c.records {
		entry, err := encodeEntry(record, c.extra[record.URL])
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", record.URL, err)
		}
		entries = append(entries, entry)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		cleanup()
		return fmt.Errorf("failed to write collection: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close collection: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set collection permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace collection: %w", err)
	}

	return nil
}
