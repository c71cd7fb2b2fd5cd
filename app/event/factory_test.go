package event

import (
	"testing"
	"time"
)

func posterLink(href, alt string) *fakeLink {
	return &fakeLink{
		href:  href,
		image: &fakeElement{attrs: map[string]string{"alt": alt, "src": "/images/poster.jpg"}},
	}
}

func TestFactory_Run(t *testing.T) {
	factory := NewFactory(defaultRulesForTest(t), fixedClock())

	link := posterLink("/activity/detail/ABC123", "2026 Spring Concert")
	record, ok := factory.Run(link, "拓元售票", "https://tixcraft.com/", "")
	if !ok {
		t.Fatal("Expected record to be built")
	}

	if record.Title != "2026 Spring Concert" {
		t.Errorf("Expected title '2026 Spring Concert', got '%s'", record.Title)
	}
	if record.URL != "https://tixcraft.com/activity/detail/ABC123" {
		t.Errorf("Expected canonical URL, got '%s'", record.URL)
	}
	if record.Platform != "拓元售票" {
		t.Errorf("Expected platform '拓元售票', got '%s'", record.Platform)
	}
	if record.Type != "音樂會/演唱會" {
		t.Errorf("Expected type '音樂會/演唱會', got '%s'", record.Type)
	}
	if record.Date != DatePlaceholder {
		t.Errorf("Expected date placeholder, got '%s'", record.Date)
	}
	if record.ImgURL == nil || *record.ImgURL != "https://tixcraft.com/images/poster.jpg" {
		t.Errorf("Expected resolved image URL, got %v", record.ImgURL)
	}

	_, offset := record.ScrapedAt.Zone()
	if offset != 8*60*60 {
		t.Errorf("Expected UTC+8 offset, got %d", offset)
	}
	if !record.ScrapedAt.Equal(fixedNow) {
		t.Errorf("Expected scraped_at %v, got %v", fixedNow, record.ScrapedAt)
	}
	if got := record.ScrapedAt.Format(time.RFC3339); got != "2026-03-01T12:00:00+08:00" {
		t.Errorf("Expected local timestamp, got %s", got)
	}
}

func TestFactory_Idempotent(t *testing.T) {
	factory := NewFactory(defaultRulesForTest(t), fixedClock())
	link := posterLink("https://tixcraft.com/activity/detail/ABC123#info", "★ 2026 Spring Concert")

	first, ok1 := factory.Run(link, "拓元售票", "https://tixcraft.com/", "")
	second, ok2 := factory.Run(link, "拓元售票", "https://tixcraft.com/", "")
	if !ok1 || !ok2 {
		t.Fatal("Expected both runs to succeed")
	}
	if first.Title != second.Title || first.URL != second.URL || first.Type != second.Type {
		t.Errorf("Expected identical records, got %+v and %+v", first, second)
	}
	if first.Title != "2026 Spring Concert" {
		t.Errorf("Expected leading marker stripped, got '%s'", first.Title)
	}
}

func TestFactory_Rejections(t *testing.T) {
	factory := NewFactory(testRules(t), fixedClock())

	tests := []struct {
		name     string
		link     *fakeLink
		platform string
	}{
		{
			name:     "not on whitelist",
			link:     &fakeLink{href: "/activity/list", fakeElement: fakeElement{text: "All Events"}},
			platform: "tix",
		},
		{
			name:     "no usable title",
			link:     &fakeLink{href: "/activity/detail/A1", fakeElement: fakeElement{text: "more"}},
			platform: "tix",
		},
		{
			name:     "title is noise",
			link:     &fakeLink{href: "/activity/detail/A1", fakeElement: fakeElement{text: "Next Page"}},
			platform: "tix",
		},
		{
			name:     "platform without whitelist",
			link:     &fakeLink{href: "/activity/detail/A1", fakeElement: fakeElement{text: "Jazz Night"}},
			platform: "elsewhere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if record, ok := factory.Run(tt.link, tt.platform, "https://tix.example.com/", ""); ok {
				t.Errorf("Expected rejection, got %+v", record)
			}
		})
	}
}

func TestFactory_ForcedCategory(t *testing.T) {
	factory := NewFactory(testRules(t), fixedClock())
	link := &fakeLink{href: "/activity/detail/A1", fakeElement: fakeElement{text: "Spring Concert"}}

	record, ok := factory.Run(link, "tix", "https://tix.example.com/", "kids")
	if !ok {
		t.Fatal("Expected record to be built")
	}
	if record.Type != "kids" {
		t.Errorf("Expected forced category 'kids', got '%s'", record.Type)
	}

	record, _ = factory.Run(link, "tix", "https://tix.example.com/", "")
	if record.Type != "music" {
		t.Errorf("Expected classified category 'music', got '%s'", record.Type)
	}
}

func TestFactory_ImageFallbacks(t *testing.T) {
	factory := NewFactory(testRules(t), fixedClock())

	tests := []struct {
		name     string
		attrs    map[string]string
		expected string
	}{
		{"src", map[string]string{"src": "/a.jpg"}, "https://tix.example.com/a.jpg"},
		{"lazy data-src", map[string]string{"src": "", "data-src": "/b.jpg"}, "https://tix.example.com/b.jpg"},
		{"inline placeholder skipped", map[string]string{"src": "data:image/gif;base64,R0lG", "data-original": "//cdn.example.com/c.jpg"}, "https://cdn.example.com/c.jpg"},
		{"nothing usable", map[string]string{"alt": "x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &fakeLink{
				href:        "/activity/detail/A1",
				fakeElement: fakeElement{text: "Jazz Night"},
				image:       &fakeElement{attrs: tt.attrs},
			}
			record, ok := factory.Run(link, "tix", "https://tix.example.com/", "")
			if !ok {
				t.Fatal("Expected record to be built")
			}
			if tt.expected == "" {
				if record.ImgURL != nil {
					t.Errorf("Expected no image, got '%s'", *record.ImgURL)
				}
				return
			}
			if record.ImgURL == nil || *record.ImgURL != tt.expected {
				t.Errorf("Expected image '%s', got %v", tt.expected, record.ImgURL)
			}
		})
	}
}

func TestFactory_NilClockUsesSystemTime(t *testing.T) {
	factory := NewFactory(testRules(t), nil)
	link := &fakeLink{href: "/activity/detail/A1", fakeElement: fakeElement{text: "Jazz Night"}}

	before := time.Now()
	record, ok := factory.Run(link, "tix", "https://tix.example.com/", "")
	if !ok {
		t.Fatal("Expected record to be built")
	}
	if record.ScrapedAt.Before(before.Add(-time.Second)) {
		t.Errorf("Expected current time, got %v", record.ScrapedAt)
	}
}
