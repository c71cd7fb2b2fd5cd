package event

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// A date, optionally followed by the end of a range ("2026/01/02-01/05").
	datePattern   = regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}(?:\s*[-~～–]\s*(?:\d{4}[-/])?\d{1,2}[-/]\d{1,2})?`)
	digitsPattern = regexp.MustCompile(`^[0-9０-９]+$`)
)

// Scrubber cleans candidate titles. It is pure: the same input always yields the same
// output.
type Scrubber struct {
	rules *Rules
}

func NewScrubber(rules *Rules) *Scrubber {
	return &Scrubber{rules: rules}
}

// Run returns the cleaned title, or false when the candidate is absent, pure
// boilerplate, or too short to be a real event name once cleaned.
func (s *Scrubber) Run(title, platform string) (string, bool) {
	if title == "" {
		return "", false
	}

	title = s.cut(title, platform)

	trimmed := strings.TrimSpace(title)
	if s.rules.isNoise(trimmed) {
		return "", false
	}

	cleaned := trimmed
	if s.rules.noiseStrip != nil {
		cleaned = s.rules.noiseStrip.ReplaceAllString(cleaned, "")
	}
	cleaned = datePattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimLeftFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(s.rules.leadingMarkers, r)
	})
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if cleaned == "" || digitsPattern.MatchString(cleaned) {
		return "", false
	}
	if utf8.RuneCountInString(cleaned) < s.rules.minTitleLength {
		return "", false
	}

	return cleaned, true
}

// cut drops everything from the first platform-specific marker on; some listings glue
// price text onto the title.
func (s *Scrubber) cut(title, platform string) string {
	for _, marker := range s.rules.titleCut[platform] {
		if i := strings.Index(title, marker); i >= 0 {
			title = title[:i]
		}
	}
	return title
}
