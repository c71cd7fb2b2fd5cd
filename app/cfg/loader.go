package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DataFile string `long:"data-file" env:"DATA_FILE" default:"docs/data.json" description:"Path of the JSON event collection"`
	DBPath   string `long:"db-path" env:"DB_PATH" default:"data/events.db" description:"SQLite mirror used by the HTTP API"`

	// Sources and rules
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`
	RulesFile  string `long:"rules-file" env:"RULES_FILE" description:"Override for the embedded normalization rules (YAML)"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://events.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of workers crawling sources in parallel"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"21600" description:"Seconds between scheduled runs"`
	RunTimeout        int    `long:"run-timeout" env:"RUN_TIMEOUT" default:"900" description:"Upper bound for a whole run in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	FeedItems         int    `long:"feed-items" env:"FEED_ITEMS" default:"100" description:"Number of records rendered in the RSS feed"`
	Once              bool   `long:"once" env:"ONCE" description:"Run a single crawl and exit instead of serving"`

	// Notification
	TelegramToken  string `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token (notifications disabled when empty)"`
	TelegramChatID string `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat receiving new-event notifications"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" description:"Fixed user agent for HTTP requests (rotated browser agents when empty)"`
	Timezone  string `long:"timezone" env:"TZ" default:"Asia/Taipei" description:"Timezone for log and API timestamps"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses args instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DataFile:          raw.DataFile,
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		RulesFile:         raw.RulesFile,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		RunTimeout:        raw.RunTimeout,
		APIAccessKey:      raw.APIAccessKey,
		FeedItems:         raw.FeedItems,
		Once:              raw.Once,
		TelegramToken:     raw.TelegramToken,
		TelegramChatID:    raw.TelegramChatID,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// NotificationsEnabled reports whether both Telegram credentials are present.
func (c *Cfg) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

func validate(cfg *Cfg) error {
	positive := map[string]int{
		"worker count":       cfg.WorkerCount,
		"scheduler interval": cfg.SchedulerInterval,
		"run timeout":        cfg.RunTimeout,
		"feed items":         cfg.FeedItems,
	}

	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	if cfg.DataFile == "" {
		return fmt.Errorf("data file is required")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
