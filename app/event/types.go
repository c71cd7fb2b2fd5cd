package event

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DatePlaceholder is stored in Record.Date; no structured date is parsed from listings.
const DatePlaceholder = "詳內文"

// Taipei is the fixed UTC+8 offset used for scraped_at timestamps.
var Taipei = time.FixedZone("UTC+8", 8*60*60)

type Record struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	ImgURL    *string   `json:"img_url"`
	Date      string    `json:"date"`
	Type      string    `json:"type"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// UnmarshalJSON reads a stored record leniently: a field that is missing or has an
// unexpected type is left empty instead of failing the whole record. The url must be a
// string. Only a value that is not a JSON object is an error.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("record is not an object")
	}

	*r = Record{
		Title:    jsonText(fields["title"]),
		URL:      strings.TrimSpace(jsonString(fields["url"])),
		Platform: jsonText(fields["platform"]),
		Date:     jsonText(fields["date"]),
		Type:     jsonText(fields["type"]),
	}
	if img := strings.TrimSpace(jsonText(fields["img_url"])); img != "" {
		r.ImgURL = &img
	}
	if t, ok := ParseTimestamp(jsonText(fields["scraped_at"])); ok {
		r.ScrapedAt = t
	}
	return nil
}

// IsRecordField reports whether key is one of the persisted Record keys.
func IsRecordField(key string) bool {
	switch key {
	case "title", "url", "platform", "img_url", "date", "type", "scraped_at":
		return true
	}
	return false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the offset-less ISO forms found in older
// collections. Values without an offset are taken as UTC+8.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, Taipei); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func jsonString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// jsonText returns a string value, the literal of a number or bool, or "".
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// Element is a node of a parsed page that exposes attributes and flattened text.
type Element interface {
	Attr(name string) (string, bool)
	Text() string
}

// Link is a raw anchor candidate produced by a source adapter.
type Link interface {
	Element
	Href() string
	NestedByClass(pattern *regexp.Regexp) (Element, bool)
	Image() (Element, bool)
}

// Page groups the links selected from one fetched document.
type Page struct {
	BaseURL  string
	Links    []Link
	Category string // forced category for every record of this page, optional
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}
