package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgs_Defaults(t *testing.T) {
	t.Setenv("TZ", "UTC")

	cfg, err := LoadArgs([]string{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DataFile != "docs/data.json" {
		t.Errorf("Expected data file 'docs/data.json', got '%s'", cfg.DataFile)
	}
	if cfg.SourcesDir != "./sources" {
		t.Errorf("Expected sources dir './sources', got '%s'", cfg.SourcesDir)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("Expected worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.SchedulerInterval != 21600 {
		t.Errorf("Expected scheduler interval 21600, got %d", cfg.SchedulerInterval)
	}
	if cfg.FeedItems != 100 {
		t.Errorf("Expected feed items 100, got %d", cfg.FeedItems)
	}
	if cfg.Once {
		t.Error("Expected once mode to be off")
	}
	if cfg.RulesFile != "" {
		t.Errorf("Expected embedded rules by default, got '%s'", cfg.RulesFile)
	}
	if cfg.NotificationsEnabled() {
		t.Error("Expected notifications disabled without credentials")
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestLoadArgs_FlagsAndEnv(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("WORKER_COUNT", "3")

	cfg, err := LoadArgs([]string{"--once", "--data-file", "/tmp/out.json", "--debug"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !cfg.Once {
		t.Error("Expected once mode")
	}
	if cfg.DataFile != "/tmp/out.json" {
		t.Errorf("Expected data file '/tmp/out.json', got '%s'", cfg.DataFile)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
	if cfg.WorkerCount != 3 {
		t.Errorf("Expected worker count 3 from env, got %d", cfg.WorkerCount)
	}
	if !cfg.NotificationsEnabled() {
		t.Error("Expected notifications enabled with both credentials")
	}
}

func TestLoadArgs_Invalid(t *testing.T) {
	t.Setenv("TZ", "UTC")

	if _, err := LoadArgs([]string{"--worker-count", "0"}); err == nil {
		t.Error("Expected error for zero workers")
	}
	if _, err := LoadArgs([]string{"--no-such-flag"}); err == nil {
		t.Error("Expected error for unknown flag")
	}
}
