package event

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

//go:embed rules/default.yml
var defaultRules []byte

type rulesFile struct {
	MinTitleLength    int                     `yaml:"min_title_length"`
	DefaultCategory   string                  `yaml:"default_category"`
	TitleClassPattern string                  `yaml:"title_class_pattern"`
	LeadingMarkers    string                  `yaml:"leading_markers"`
	Placeholders      []string                `yaml:"placeholders"`
	Noise             []string                `yaml:"noise"`
	TitleCut          map[string][]string     `yaml:"title_cut"`
	Whitelist         map[string]string       `yaml:"whitelist"`
	Templates         map[string]templateSpec `yaml:"templates"`
	StripQuery        []string                `yaml:"strip_query"`
	Categories        []categorySpec          `yaml:"categories"`
}

type templateSpec struct {
	Base    string `yaml:"base"`
	Param   string `yaml:"param"`
	Pattern string `yaml:"pattern"` // product id, defaults to alphanumerics
}

type categorySpec struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

type urlTemplate struct {
	base  string
	host  string
	param string
	id    *regexp.Regexp
}

// accepts reports whether host belongs to the template's site, ignoring a www. prefix.
func (t urlTemplate) accepts(host string) bool {
	return strings.TrimPrefix(strings.ToLower(host), "www.") == t.host
}

func (t urlTemplate) build(id string) string {
	return t.base + "?" + t.param + "=" + id
}

type category struct {
	label    string
	keywords []string
}

// Rules holds the compiled, read-only tables the pipeline runs on. A Rules value is
// safe for concurrent use once built.
type Rules struct {
	minTitleLength  int
	defaultCategory string
	titleClass      *regexp.Regexp
	leadingMarkers  string
	placeholders    map[string]struct{}
	noiseExact      map[string]struct{}
	noiseStrip      *regexp.Regexp
	titleCut        map[string][]string
	whitelist       map[string]*regexp.Regexp
	templates       map[string]urlTemplate
	stripQuery      map[string]struct{}
	categories      []category
}

// DefaultRules returns the rules embedded in the binary.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads rules from path, or the embedded defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

func ParseRules(data []byte) (*Rules, error) {
	var raw rulesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.MinTitleLength <= 0 {
		raw.MinTitleLength = 3
	}
	if raw.DefaultCategory == "" {
		return nil, fmt.Errorf("default category is required")
	}
	if raw.TitleClassPattern == "" {
		raw.TitleClassPattern = "title|name|subject|header|caption"
	}

	titleClass, err := regexp.Compile("(?i)" + raw.TitleClassPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid title class pattern: %w", err)
	}

	r := &Rules{
		minTitleLength:  raw.MinTitleLength,
		defaultCategory: raw.DefaultCategory,
		titleClass:      titleClass,
		leadingMarkers:  raw.LeadingMarkers,
		placeholders:    make(map[string]struct{}, len(raw.Placeholders)),
		noiseExact:      make(map[string]struct{}, len(raw.Noise)),
		titleCut:        raw.TitleCut,
		whitelist:       make(map[string]*regexp.Regexp, len(raw.Whitelist)),
		templates:       make(map[string]urlTemplate, len(raw.Templates)),
		stripQuery:      make(map[string]struct{}, len(raw.StripQuery)),
		categories:      make([]category, 0, len(raw.Categories)),
	}

	for _, p := range raw.Placeholders {
		r.placeholders[foldKey(p)] = struct{}{}
	}

	noise := make([]string, 0, len(raw.Noise))
	for _, n := range raw.Noise {
		if strings.TrimSpace(n) == "" {
			continue
		}
		r.noiseExact[foldKey(n)] = struct{}{}
		noise = append(noise, n)
	}
	if len(noise) > 0 {
		// Longest first so "Read More" is removed whole before "More" could match.
		sort.SliceStable(noise, func(i, j int) bool { return len(noise[i]) > len(noise[j]) })
		quoted := make([]string, len(noise))
		for i, n := range noise {
			quoted[i] = regexp.QuoteMeta(n)
		}
		r.noiseStrip = regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
	}

	for platform, pattern := range raw.Whitelist {
		re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid whitelist pattern for %s: %w", platform, err)
		}
		r.whitelist[platform] = re
	}

	for platform, tpl := range raw.Templates {
		if tpl.Base == "" || tpl.Param == "" {
			return nil, fmt.Errorf("template for %s needs base and param", platform)
		}
		base, err := url.Parse(tpl.Base)
		if err != nil || base.Hostname() == "" {
			return nil, fmt.Errorf("template base for %s must be an absolute URL", platform)
		}
		pattern := tpl.Pattern
		if pattern == "" {
			pattern = `[A-Za-z0-9]+`
		}
		id, err := regexp.Compile(`(?i)[?&]` + regexp.QuoteMeta(tpl.Param) + `=(` + pattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("invalid template pattern for %s: %w", platform, err)
		}
		r.templates[platform] = urlTemplate{
			base:  tpl.Base,
			host:  strings.TrimPrefix(strings.ToLower(base.Hostname()), "www."),
			param: tpl.Param,
			id:    id,
		}
	}

	for _, platform := range raw.StripQuery {
		r.stripQuery[platform] = struct{}{}
	}

	for i, c := range raw.Categories {
		if c.Label == "" {
			return nil, fmt.Errorf("category at index %d has no label", i)
		}
		keywords := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if kw = foldKey(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		r.categories = append(r.categories, category{label: c.Label, keywords: keywords})
	}

	return r, nil
}

// Platforms returns the platforms that have a whitelist entry, sorted.
func (r *Rules) Platforms() []string {
	platforms := make([]string, 0, len(r.whitelist))
	for p := range r.whitelist {
		platforms = append(platforms, p)
	}
	slices.Sort(platforms)
	return platforms
}

func (r *Rules) HasWhitelist(platform string) bool {
	_, ok := r.whitelist[platform]
	return ok
}

// Categories returns the category labels in priority order followed by the default.
func (r *Rules) Categories() []string {
	labels := make([]string, 0, len(r.categories)+1)
	for _, c := range r.categories {
		labels = append(labels, c.label)
	}
	if !slices.Contains(labels, r.defaultCategory) {
		labels = append(labels, r.defaultCategory)
	}
	return labels
}

func (r *Rules) DefaultCategory() string {
	return r.defaultCategory
}

func (r *Rules) isPlaceholder(s string) bool {
	_, ok := r.placeholders[foldKey(s)]
	return ok
}

func (r *Rules) isNoise(s string) bool {
	_, ok := r.noiseExact[foldKey(s)]
	return ok
}

// foldKey normalizes a string for case- and width-insensitive comparison.
func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(width.Fold.String(s)), " "))
}
