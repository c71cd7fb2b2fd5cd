package event

import (
	"cmp"
)

// Lazy-loading markup keeps the real image in a data attribute.
var imageAttrs = []string{"src", "data-src", "data-original"}

// Factory composes resolver, scrubber, normalizer and classifier into records.
type Factory struct {
	resolver   *TitleResolver
	scrubber   *Scrubber
	normalizer *Normalizer
	classifier *Classifier
	clock      Clock
}

func NewFactory(rules *Rules, clock Clock) *Factory {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Factory{
		resolver:   NewTitleResolver(rules),
		scrubber:   NewScrubber(rules),
		normalizer: NewNormalizer(rules),
		classifier: NewClassifier(rules),
		clock:      clock,
	}
}

// Run builds a record from a raw link. A false result is a normal filtering outcome,
// not an error. forcedCategory, when set, replaces the classifier's verdict.
func (f *Factory) Run(link Link, platform, baseURL, forcedCategory string) (Record, bool) {
	candidate, _ := f.resolver.Run(link)

	title, ok := f.scrubber.Run(candidate, platform)
	if !ok {
		return Record{}, false
	}

	canonical, ok := f.normalizer.Run(link.Href(), baseURL, platform)
	if !ok {
		return Record{}, false
	}

	record := Record{
		Title:     title,
		URL:       canonical,
		Platform:  platform,
		ImgURL:    f.imageURL(link, baseURL),
		Date:      DatePlaceholder,
		Type:      cmp.Or(forcedCategory, f.classifier.Run(title)),
		ScrapedAt: f.clock.Now().In(Taipei),
	}

	return record, true
}

func (f *Factory) imageURL(link Link, baseURL string) *string {
	img, ok := link.Image()
	if !ok {
		return nil
	}

	for _, name := range imageAttrs {
		src, ok := img.Attr(name)
		if !ok || src == "" {
			continue
		}
		if abs, ok := f.normalizer.Asset(src, baseURL); ok {
			return &abs
		}
	}
	return nil
}
