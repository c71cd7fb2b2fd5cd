package event

import (
	"strings"
)

// Attributes probed, in order, for an explicit title on the anchor itself.
var titleAttrs = []string{"title", "aria-label", "data-title"}

// TitleResolver picks the best title candidate from the places listing markup tends
// to put one.
type TitleResolver struct {
	rules *Rules
}

func NewTitleResolver(rules *Rules) *TitleResolver {
	return &TitleResolver{rules: rules}
}

// Run walks the fallback chain: explicit attribute, nested title-ish element, nested
// image alt/title, then the anchor's flattened text. The first usable candidate wins.
func (r *TitleResolver) Run(link Link) (string, bool) {
	for _, name := range titleAttrs {
		if v, ok := link.Attr(name); ok {
			if title, ok := r.usable(v); ok {
				return title, true
			}
		}
	}

	if el, ok := link.NestedByClass(r.rules.titleClass); ok {
		if title, ok := r.usable(el.Text()); ok {
			return title, true
		}
	}

	if img, ok := link.Image(); ok {
		for _, name := range []string{"alt", "title"} {
			if v, ok := img.Attr(name); ok {
				if title, ok := r.usable(v); ok {
					return title, true
				}
			}
		}
	}

	if title, ok := r.usable(link.Text()); ok {
		return title, true
	}

	return "", false
}

func (r *TitleResolver) usable(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || r.rules.isPlaceholder(candidate) {
		return "", false
	}
	return candidate, true
}
