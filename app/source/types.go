package source

type Kind string

const (
	KindHTML Kind = "html"
	KindFeed Kind = "feed"
)

// Config describes one source. Name is derived from the file name.
type Config struct {
	Name     string
	Platform string       `yaml:"platform" validate:"required"`
	Kind     Kind         `yaml:"kind" validate:"oneof=html feed"`
	BaseURL  string       `yaml:"base_url" validate:"required,http_url"`
	Referer  string       `yaml:"referer" validate:"omitempty,http_url"`
	Selector string       `yaml:"selector" validate:"required_if=Kind html"`
	Category string       `yaml:"category"`
	Pages    []PageConfig `yaml:"pages" validate:"required,min=1,dive"`
	Settings Settings     `yaml:"settings"`
	Filters  []Filter     `yaml:"filters" validate:"dive"`
}

type PageConfig struct {
	URL      string `yaml:"url" validate:"required,http_url"`
	Category string `yaml:"category"`
}

type Settings struct {
	Enabled      bool    `yaml:"enabled"`
	Timeout      int     `yaml:"timeout" validate:"gte=0"` // seconds
	DelayMin     float64 `yaml:"delay_min" validate:"gte=0"`
	DelayMax     float64 `yaml:"delay_max" validate:"gtefield=DelayMin"`
	EnrichImages bool    `yaml:"enrich_images"`
	MaxEnrich    int     `yaml:"max_enrich" validate:"gte=0"`
}

type Filter struct {
	Field    string   `yaml:"field" validate:"oneof=title url type platform"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
