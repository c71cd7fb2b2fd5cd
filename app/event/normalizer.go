package event

import (
	"net/url"
	"strings"
)

// Normalizer turns hrefs into canonical detail-page URLs and gates them against the
// platform whitelist.
type Normalizer struct {
	rules *Rules
}

func NewNormalizer(rules *Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// Run resolves href against baseURL and returns the canonical URL. It fails closed:
// unparseable hrefs, non-web schemes, template links that are off-site or lack a
// product id, and anything the whitelist does not accept are all rejected.
func (n *Normalizer) Run(href, baseURL, platform string) (string, bool) {
	abs, ok := resolve(href, baseURL)
	if !ok {
		return "", false
	}

	canonical := abs.String()

	if tpl, ok := n.rules.templates[platform]; ok {
		if !tpl.accepts(abs.Hostname()) {
			return "", false
		}
		m := tpl.id.FindStringSubmatch(canonical)
		if m == nil {
			return "", false
		}
		canonical = tpl.build(m[1])
	} else if _, ok := n.rules.stripQuery[platform]; ok {
		abs.RawQuery = ""
		abs.ForceQuery = false
		canonical = abs.String()
	}

	wl, ok := n.rules.whitelist[platform]
	if !ok || !wl.MatchString(canonical) {
		return "", false
	}

	return canonical, true
}

// Asset resolves an image or other asset reference without whitelist gating.
func (n *Normalizer) Asset(src, baseURL string) (string, bool) {
	if strings.HasPrefix(strings.TrimSpace(src), "data:") {
		return "", false
	}
	abs, ok := resolve(src, baseURL)
	if !ok {
		return "", false
	}
	return abs.String(), true
}

func resolve(href, baseURL string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	if abs.Host == "" {
		return nil, false
	}

	abs.Host = strings.ToLower(abs.Host)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, true
}
