package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/event-comb/app/event"
)

var _ EventRepository = (*SQLEventRepository)(nil)

// SQLEventRepository mirrors the JSON collection into the events table
type SQLEventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *SQLEventRepository {
	return &SQLEventRepository{db: db}
}

// SyncEvents replaces the table contents with records, keeping collection order in
// the position column.
func (r *SQLEventRepository) SyncEvents(records []event.Record) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO events (url, title, platform, img_url, date, type, scraped_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			title = excluded.title,
			platform = excluded.platform,
			img_url = excluded.img_url,
			date = excluded.date,
			type = excluded.type,
			scraped_at = excluded.scraped_at,
			position = excluded.position
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, record := range records {
		var img sql.NullString
		if record.ImgURL != nil {
			img = sql.NullString{String: *record.ImgURL, Valid: true}
		}

		_, err := stmt.Exec(record.URL, record.Title, record.Platform, img, record.Date,
			record.Type, record.ScrapedAt.UTC().Format(timeLayout), i)
		if err != nil {
			return fmt.Errorf("failed to store event %s: %w", record.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	return nil
}

// ListEvents returns a page of events, newest additions first, and the total number
// of matches.
func (r *SQLEventRepository) ListEvents(q EventQuery) ([]event.Record, int, error) {
	var where []string
	var args []any

	if q.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, q.Platform)
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, q.Type)
	}
	if q.Query != "" {
		where = append(where, "title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q.Query)+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM events `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT url, title, platform, img_url, date, type, scraped_at
		FROM events `+clause+`
		ORDER BY position DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	records, err := scanEvents(rows)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// GetRecentEvents returns the most recently scraped events
func (r *SQLEventRepository) GetRecentEvents(limit int) ([]event.Record, error) {
	rows, err := r.db.Query(`
		SELECT url, title, platform, img_url, date, type, scraped_at
		FROM events
		ORDER BY scraped_at DESC, position DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventCount returns the number of mirrored events
func (r *SQLEventRepository) GetEventCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	return count, nil
}

// CountBy groups events by platform or type
func (r *SQLEventRepository) CountBy(field string) (map[string]int, error) {
	if field != "platform" && field != "type" {
		return nil, fmt.Errorf("cannot group events by %q", field)
	}

	rows, err := r.db.Query(`SELECT ` + field + `, COUNT(*) FROM events GROUP BY ` + field)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by %s: %w", field, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}

	return counts, nil
}

func scanEvents(rows *sql.Rows) ([]event.Record, error) {
	records := make([]event.Record, 0)
	for rows.Next() {
		var record event.Record
		var img sql.NullString
		var scrapedAt string

		err := rows.Scan(&record.URL, &record.Title, &record.Platform, &img,
			&record.Date, &record.Type, &scrapedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		if img.Valid {
			record.ImgURL = &img.String
		}
		if t, err := time.Parse(timeLayout, scrapedAt); err == nil {
			record.ScrapedAt = t.In(event.Taipei)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return records, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
