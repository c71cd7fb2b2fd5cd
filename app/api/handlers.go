package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/feed"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/tasks"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	recentRuns      = 10
)

func NewHandler(sourceCache SourceCacheInterface, eventRepo EventReader, runRepo RunReader,
	scheduler tasks.TaskSchedulerInterface, metrics http.Handler, feedItems int) *Handler {
	return &Handler{
		eventRepo:   eventRepo,
		runRepo:     runRepo,
		generator:   feed.NewGenerator(),
		sourceCache: sourceCache,
		scheduler:   scheduler,
		metrics:     metrics,
		feedItems:   feedItems,
	}
}

func (h *Handler) GetEvents(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}
	limit = min(limit, maxPageSize)

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
		return
	}

	events, total, err := h.eventRepo.ListEvents(database.EventQuery{
		Platform: c.Query("platform"),
		Type:     c.Query("type"),
		Query:    c.Query("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetEventsFeed(c *gin.Context) {
	platform := c.Query("platform")
	eventType := c.Query("type")

	events, _, err := h.eventRepo.ListEvents(database.EventQuery{
		Platform: platform,
		Type:     eventType,
		Limit:    h.feedItems,
	})
	if err != nil {
		slog.Error("Database error", "operation", "feed_events", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	title := "Event Comb"
	for _, part := range []string{platform, eventType} {
		if part != "" {
			title += " · " + part
		}
	}

	selfPath := c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		selfPath += "?" + c.Request.URL.RawQuery
	}

	rss, err := h.generator.Run(feed.Channel{Title: title, SelfPath: selfPath}, events)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(events)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.eventRepo.GetEventCount(); err == nil {
		health["events"] = count
	}

	health["loaded_sources"] = h.sourceCache.GetConfigCount()

	if h.scheduler != nil {
		health["run_in_progress"] = h.scheduler.IsRunning()
		if report := h.scheduler.LastReport(); report != nil {
			health["last_run"] = gin.H{
				"id":          report.ID,
				"status":      report.Status,
				"finished_at": report.FinishedAt.In(time.Local).Format(time.RFC3339),
			}
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	total, err := h.eventRepo.GetEventCount()
	if err != nil {
		slog.Error("Database error", "operation", "event_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	byPlatform, err := h.eventRepo.CountBy("platform")
	if err != nil {
		slog.Error("Database error", "operation", "count_by_platform", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	byType, err := h.eventRepo.CountBy("type")
	if err != nil {
		slog.Error("Database error", "operation", "count_by_type", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	runs, err := h.runRepo.GetRecentRuns(recentRuns)
	if err != nil {
		slog.Error("Database error", "operation", "recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	recent := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		recent = append(recent, runView(run))
	}

	c.JSON(http.StatusOK, gin.H{
		"events":      total,
		"by_platform": byPlatform,
		"by_type":     byType,
		"sources":     h.sourceCache.GetConfigCount(),
		"recent_runs": recent,
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not running"})
		return
	}

	id, err := h.scheduler.Trigger("manual")
	if errors.Is(err, tasks.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "A run is already in progress"})
		return
	}
	if err != nil {
		slog.Error("Error triggering run", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to trigger run",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Run triggered via API", "id", id)

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"id":      id,
		"status":  "/api/runs/" + id,
	})
}

func (h *Handler) APIListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", recentRuns)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	runs, err := h.runRepo.GetRecentRuns(min(limit, maxPageSize))
	if err != nil {
		slog.Error("Database error", "operation", "recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView(run))
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  views,
		"total": len(views),
	})
}

func (h *Handler) APIGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.runRepo.GetRun(id)
	if errors.Is(err, database.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_run", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	view := runView(*run)
	sources := make([]gin.H, 0, len(run.SourceResults))
	for _, src := range run.SourceResults {
		sources = append(sources, gin.H{
			"source":   src.Source,
			"platform": src.Platform,
			"status":   src.Status,
			"links":    src.Links,
			"records":  src.Records,
			"error":    src.Error,
		})
	}
	view["sources"] = sources

	c.JSON(http.StatusOK, view)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.sourceCache.GetConfigs()

	sources := make([]gin.H, 0, len(configs))
	for _, config := range configs {
		sources = append(sources, sourceView(config))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

// APIReloadSource re-reads a source definition from disk. The next run picks it up.
func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.sourceCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	config, err := h.sourceCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Source reloaded via API", "source", name, "enabled", config.Settings.Enabled)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded successfully",
		"source":  sourceView(config),
	})
}

func runView(run database.Run) gin.H {
	return gin.H{
		"id":             run.ID,
		"reason":         run.Reason,
		"status":         run.Status,
		"started_at":     run.StartedAt.In(time.Local).Format(time.RFC3339),
		"finished_at":    run.FinishedAt.In(time.Local).Format(time.RFC3339),
		"duration":       run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
		"sources":        run.Sources,
		"failed_sources": run.FailedSources,
		"links":          run.Links,
		"records":        run.Records,
		"added":          run.Added,
		"updated":        run.Updated,
		"total":          run.Total,
		"error":          run.Error,
	}
}

func sourceView(config *source.Config) gin.H {
	return gin.H{
		"name":          config.Name,
		"platform":      config.Platform,
		"kind":          config.Kind,
		"base_url":      config.BaseURL,
		"pages":         len(config.Pages),
		"category":      config.Category,
		"enabled":       config.Settings.Enabled,
		"timeout":       (time.Duration(config.Settings.Timeout) * time.Second).String(),
		"enrich_images": config.Settings.EnrichImages,
		"filters":       len(config.Filters),
	}
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
