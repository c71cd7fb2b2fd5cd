package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/event-comb/app/api"
	"github.com/lysyi3m/event-comb/app/cfg"
	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/metrics"
	"github.com/lysyi3m/event-comb/app/notify"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/store"
	"github.com/lysyi3m/event-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting Event Comb", "version", appCfg.Version, "once", appCfg.Once, "data_file", appCfg.DataFile)

	rules, err := event.LoadRules(appCfg.RulesFile)
	if err != nil {
		fatal("Failed to load rules", err)
	}
	slog.Debug("Rules loaded", "platforms", len(rules.Platforms()), "categories", len(rules.Categories()))

	sourceCache := source.NewSourceCache(appCfg.SourcesDir)
	if err := sourceCache.Run(); err != nil {
		fatal("Failed to load source definitions", err)
	}
	if err := sourceCache.CheckPlatforms(rules.HasWhitelist); err != nil {
		fatal("Source definitions reference unknown platforms", err)
	}
	sourceCache.RequireWhitelist(rules.HasWhitelist)
	slog.Info("Sources loaded", "dir", appCfg.SourcesDir, "total", sourceCache.GetConfigCount(), "enabled", len(sourceCache.GetEnabledConfigs()))

	httpClient := &http.Client{Timeout: 30 * time.Second}
	fetcher := source.NewFetcher(httpClient, appCfg.UserAgent)
	appMetrics := metrics.New()

	deps := tasks.RunnerDeps{
		Sources:     sourceCache,
		Crawler:     source.NewCrawler(fetcher),
		Extractor:   event.NewFactory(rules, event.SystemClock{}),
		Filterer:    source.NewFilterer(),
		Enricher:    source.NewImageEnricher(fetcher),
		Store:       store.NewJSONStore(appCfg.DataFile),
		Observer:    appMetrics,
		WorkerCount: appCfg.WorkerCount,
	}

	if appCfg.NotificationsEnabled() {
		sender := notify.NewTelegramSender(httpClient, appCfg.TelegramToken, appCfg.TelegramChatID)
		deps.Notifier = notify.NewNotifier(sender)
		slog.Info("Telegram notifications enabled")
	} else {
		slog.Info("Notifications disabled (TELEGRAM_TOKEN or TELEGRAM_CHAT_ID not set)")
	}

	db, err := openDatabase(appCfg.DBPath)
	if err != nil {
		if !appCfg.Once {
			fatal("Failed to open database", err)
		}
		slog.Warn("Database unavailable, continuing without mirror", "path", appCfg.DBPath, "error", err)
	}

	var eventRepo *database.SQLEventRepository
	var runRepo *database.SQLRunRepository
	if db != nil {
		defer db.Close()
		eventRepo = database.NewEventRepository(db)
		runRepo = database.NewRunRepository(db)
		deps.Events = eventRepo
		deps.Runs = runRepo
	}

	runner := tasks.NewRunner(deps)
	runTimeout := time.Duration(appCfg.RunTimeout) * time.Second

	if appCfg.Once {
		code := runOnce(runner, runTimeout)
		if db != nil {
			db.Close()
		}
		os.Exit(code)
	}

	if eventRepo != nil {
		if err := eventRepo.SyncEvents(deps.Store.Load()); err != nil {
			slog.Warn("Failed to sync events mirror on startup", "error", err)
		}
	}

	scheduler := tasks.NewScheduler(runner, time.Duration(appCfg.SchedulerInterval)*time.Second, runTimeout, true)
	scheduler.Start()

	handler := api.NewHandler(sourceCache, eventRepo, runRepo, scheduler, appMetrics.Handler(), appCfg.FeedItems)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	scheduler.Stop()
	slog.Info("Scheduler stopped")

	slog.Info("Event Comb shutdown complete")
}

// runOnce performs a single run and returns the process exit code.
func runOnce(runner *tasks.Runner, timeout time.Duration) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := runner.Run(ctx, tasks.RunRequest{Reason: "once"})
	if err != nil {
		slog.Error("Run failed", "error", err)
		return 1
	}

	for _, src := range report.Sources {
		if src.Status == tasks.SourceStatusFailed {
			slog.Warn("Source failed", "source", src.Source, "error", src.Error)
		}
	}

	return 0
}

func openDatabase(path string) (*database.DB, error) {
	db, err := database.NewConnection(path)
	if err != nil {
		return nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Database ready", "path", path, "migration_version", version, "dirty", dirty)

	return db, nil
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
