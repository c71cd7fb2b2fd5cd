package source

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/event-comb/app/event"
)

var _ event.Link = (*feedLink)(nil)

// FeedParser turns RSS/Atom documents into links for the record factory.
type FeedParser struct {
	gofeedParser *gofeed.Parser
}

func NewFeedParser() *FeedParser {
	return &FeedParser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *FeedParser) Run(data []byte) ([]event.Link, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	links := make([]event.Link, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		links = append(links, &feedLink{item: item})
	}

	return links, nil
}

type feedLink struct {
	item *gofeed.Item
}

func (l *feedLink) Href() string {
	return l.item.Link
}

func (l *feedLink) Attr(name string) (string, bool) {
	if name == "title" && l.item.Title != "" {
		return l.item.Title, true
	}
	return "", false
}

func (l *feedLink) NestedByClass(*regexp.Regexp) (event.Element, bool) {
	return nil, false
}

func (l *feedLink) Image() (event.Element, bool) {
	src := ""
	if l.item.Image != nil {
		src = l.item.Image.URL
	}
	if src == "" {
		for _, enc := range l.item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				src = enc.URL
				break
			}
		}
	}
	if src == "" {
		return nil, false
	}
	return &attrElement{attrs: map[string]string{"src": src, "alt": l.item.Title}}, true
}

// Text is the item description with markup removed.
func (l *feedLink) Text() string {
	desc := strings.TrimSpace(l.item.Description)
	if desc == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return desc
	}
	return flattenText(doc.Selection)
}

type attrElement struct {
	attrs map[string]string
}

func (e *attrElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *attrElement) Text() string {
	return ""
}
