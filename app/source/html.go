package source

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/lysyi3m/event-comb/app/event"
)

var (
	_ event.Element = (*htmlElement)(nil)
	_ event.Link    = (*htmlLink)(nil)
)

type htmlElement struct {
	sel *goquery.Selection
}

func (e *htmlElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *htmlElement) Text() string {
	return flattenText(e.sel)
}

// htmlLink adapts a selected anchor to event.Link.
type htmlLink struct {
	htmlElement
}

func (l *htmlLink) Href() string {
	href, _ := l.sel.Attr("href")
	return href
}

// NestedByClass returns the first descendant, in document order, whose class or name
// attribute matches pattern.
func (l *htmlLink) NestedByClass(pattern *regexp.Regexp) (event.Element, bool) {
	var found *goquery.Selection
	l.sel.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"class", "name"} {
			if v, ok := s.Attr(attr); ok && v != "" && pattern.MatchString(v) {
				found = s
				return false
			}
		}
		return true
	})

	if found == nil {
		return nil, false
	}
	return &htmlElement{sel: found}, true
}

func (l *htmlLink) Image() (event.Element, bool) {
	img := l.sel.Find("img").First()
	if img.Length() == 0 {
		return nil, false
	}
	return &htmlElement{sel: img}, true
}

// HTMLAdapter selects candidate links from a page with a CSS selector.
type HTMLAdapter struct{}

func NewHTMLAdapter() *HTMLAdapter {
	return &HTMLAdapter{}
}

func (a *HTMLAdapter) Run(body []byte, selector string) ([]event.Link, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := make([]event.Link, 0)
	doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		links = append(links, &htmlLink{htmlElement{sel: s}})
	})

	return links, nil
}

// flattenText joins the trimmed text nodes under sel with single spaces, so
// "<b>Jazz</b><span>Night</span>" reads "Jazz Night" rather than "JazzNight".
func flattenText(sel *goquery.Selection) string {
	var parts []string

	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if text := strings.TrimSpace(c.Text()); text != "" {
					parts = append(parts, text)
				}
			case "script", "style", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(sel)

	return strings.Join(parts, " ")
}
