package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SourceCache loads source definitions from a directory of YAML files and keeps them
// in memory for the scheduler and API.
type SourceCache struct {
	sourcesDir   string
	cache        map[string]*Config
	validate     *validator.Validate
	hasWhitelist func(platform string) bool
	mu           sync.RWMutex
}

func NewSourceCache(sourcesDir string) *SourceCache {
	return &SourceCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := sc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", name, "platform", config.Platform, "enabled", config.Settings.Enabled, "pages", len(config.Pages))
	}

	return nil
}

func (sc *SourceCache) LoadConfig(name string) (*Config, error) {
	configFile := filepath.Join(sc.sourcesDir, name+".yml")

	config, err := sc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}
	config.Name = name

	if err := sc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", configFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.hasWhitelist != nil && !sc.hasWhitelist(config.Platform) {
		return nil, fmt.Errorf("invalid source %s: platform %q has no whitelist entry", configFile, config.Platform)
	}
	sc.cache[name] = config

	return config, nil
}

func (sc *SourceCache) GetConfig(name string) (*Config, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	config, ok := sc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source with name '%s' not found", name)
	}
	return config, nil
}

// GetConfigs returns all sources ordered by name.
func (sc *SourceCache) GetConfigs() []*Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	configs := make([]*Config, 0, len(sc.cache))
	for _, config := range sc.cache {
		configs = append(configs, config)
	}
	slices.SortFunc(configs, func(a, b *Config) int { return strings.Compare(a.Name, b.Name) })
	return configs
}

// GetEnabledConfigs returns enabled sources ordered by name.
func (sc *SourceCache) GetEnabledConfigs() []*Config {
	enabled := make([]*Config, 0)
	for _, config := range sc.GetConfigs() {
		if config.Settings.Enabled {
			enabled = append(enabled, config)
		}
	}
	return enabled
}

func (sc *SourceCache) GetConfigCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

// RequireWhitelist makes every later load, including API reloads, reject a definition
// whose platform has no whitelist entry. The cached definition is then left untouched.
func (sc *SourceCache) RequireWhitelist(hasWhitelist func(platform string) bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.hasWhitelist = hasWhitelist
}

// CheckPlatforms returns an error naming every source whose platform has no whitelist
// entry. Such a source could never produce a record.
func (sc *SourceCache) CheckPlatforms(hasWhitelist func(platform string) bool) error {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	var missing []string
	for name, config := range sc.cache {
		if !hasWhitelist(config.Platform) {
			missing = append(missing, fmt.Sprintf("%s (%s)", name, config.Platform))
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("sources without whitelist entry: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (sc *SourceCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Kind == "" {
		config.Kind = KindHTML
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 15
	}
	if config.Settings.MaxEnrich == 0 {
		config.Settings.MaxEnrich = 20
	}

	return &config, nil
}

func (sc *SourceCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if err := sc.validate.Struct(config); err != nil {
		return err
	}

	if config.Kind == KindHTML {
		if _, err := cascadia.Compile(config.Selector); err != nil {
			return fmt.Errorf("invalid selector %q: %w", config.Selector, err)
		}
	}

	for i, filter := range config.Filters {
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
