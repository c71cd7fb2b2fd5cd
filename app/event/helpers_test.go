package event

import (
	"regexp"
	"testing"
	"time"
)

type fakeElement struct {
	attrs map[string]string
	text  string
	class string
}

func (e *fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *fakeElement) Text() string {
	return e.text
}

type fakeLink struct {
	fakeElement
	href   string
	nested []*fakeElement
	image  *fakeElement
}

func (l *fakeLink) Href() string {
	return l.href
}

func (l *fakeLink) NestedByClass(pattern *regexp.Regexp) (Element, bool) {
	for _, el := range l.nested {
		if pattern.MatchString(el.class) {
			return el, true
		}
	}
	return nil, false
}

func (l *fakeLink) Image() (Element, bool) {
	if l.image == nil {
		return nil, false
	}
	return l.image, true
}

const testRulesYAML = `
min_title_length: 3
default_category: other
leading_markers: "«»•"
placeholders: [more, details, buy]
noise: [Read More, Buy Now, Next Page]
title_cut:
  tix:
    - "NT$"
whitelist:
  tix: 'https?://tix\.example\.com/activity/detail/[A-Za-z0-9]+'
  shop: 'https?://(www\.)?shop\.example\.com/UTK0201_\.aspx\?PRODUCT_ID=[A-Z0-9]+$'
  pass: 'https?://pass\.example\.com/event/[a-z0-9]+$'
templates:
  shop:
    base: https://shop.example.com/UTK0201_.aspx
    param: PRODUCT_ID
strip_query: [pass]
categories:
  - label: music
    keywords: [concert, recital, Live]
  - label: theatre
    keywords: [drama, musical]
  - label: kids
    keywords: [family]
`

func testRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := ParseRules([]byte(testRulesYAML))
	if err != nil {
		t.Fatalf("Failed to parse test rules: %v", err)
	}
	return rules
}

func defaultRulesForTest(t *testing.T) *Rules {
	t.Helper()
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("Failed to parse embedded rules: %v", err)
	}
	return rules
}

var fixedNow = time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}
