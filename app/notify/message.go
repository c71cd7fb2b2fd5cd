package notify

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/event-comb/app/event"
)

const (
	MaxListed      = 5
	MaxTitleLength = 30
)

// BuildMessage lists the first MaxListed additions with truncated titles. It returns
// an empty string when nothing was added.
func BuildMessage(added []event.Record) string {
	if len(added) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New events: %d\n", len(added))

	for i, record := range added {
		if i == MaxListed {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s [%s]\n%s\n", i+1, truncate(record.Title, MaxTitleLength), record.Platform, record.URL)
	}

	if rest := len(added) - MaxListed; rest > 0 {
		fmt.Fprintf(&b, "\n…and %d more", rest)
	}

	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
