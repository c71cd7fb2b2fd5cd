package event

import (
	"strings"
)

type Classifier struct {
	rules *Rules
}

func NewClassifier(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Run returns the label of the first category, in table order, with a keyword
// contained in title. Order matters more than fit: a title matching two categories
// always lands in the earlier one.
func (c *Classifier) Run(title string) string {
	folded := foldKey(title)
	if folded == "" {
		return c.rules.defaultCategory
	}

	for _, cat := range c.rules.categories {
		for _, kw := range cat.keywords {
			if strings.Contains(folded, kw) {
				return cat.label
			}
		}
	}

	return c.rules.defaultCategory
}
