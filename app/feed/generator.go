package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/lysyi3m/event-comb/app/cfg"
	"github.com/lysyi3m/event-comb/app/event"
)

// Channel describes the feed as a whole. SelfPath is appended to the public base URL,
// which also serves as Link when none is given.
type Channel struct {
	Title       string
	Link        string
	Description string
	SelfPath    string
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders records as an RSS 2.0 document, in the order given.
func (g *Generator) Run(channel Channel, records []event.Record) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", cmp.Or(channel.Link, g.baseURL()), 4)
	description := channel.Description
	if description == "" {
		description = fmt.Sprintf("%d events collected from Taiwanese ticketing platforms", len(records))
	}
	g.writeElement(&buf, "description", description, 4)

	selfLink := g.baseURL() + channel.SelfPath
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	g.writeElement(&buf, "lastBuildDate", g.lastBuildDate(records).Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Event-Comb/%s", cfg.Get().Version), 4)
	g.writeElement(&buf, "language", "zh-TW", 4)

	for _, record := range records {
		g.writeItem(&buf, record)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, record event.Record) {
	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(record.URL)))
	xml.EscapeText(buf, []byte(record.URL))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", record.Title, 6)
	g.writeElement(buf, "link", record.URL, 6)
	g.writeElement(buf, "description", fmt.Sprintf("%s · %s · %s", record.Platform, record.Type, record.Date), 6)

	if !record.ScrapedAt.IsZero() {
		g.writeElement(buf, "pubDate", record.ScrapedAt.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "category", record.Type, 6)

	// RSS 2.0 requires length on enclosures; 0 is the accepted value for unknown.
	if record.ImgURL != nil && *record.ImgURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(*record.ImgURL),
			html.EscapeString(g.imageType(*record.ImgURL))))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) baseURL() string {
	if base := cfg.Get().BaseUrl; base != "" {
		return strings.TrimRight(base, "/")
	}
	return fmt.Sprintf("http://localhost:%s", cfg.Get().Port)
}

func (g *Generator) lastBuildDate(records []event.Record) time.Time {
	var latest time.Time
	for _, record := range records {
		if record.ScrapedAt.After(latest) {
			latest = record.ScrapedAt
		}
	}
	if latest.IsZero() {
		return time.Now().In(time.Local)
	}
	return latest
}

func (g *Generator) imageType(imgURL string) string {
	if u, err := url.Parse(imgURL); err == nil {
		if t := mime.TypeByExtension(strings.ToLower(path.Ext(u.Path))); strings.HasPrefix(t, "image/") {
			return t
		}
	}
	return "image/jpeg"
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
