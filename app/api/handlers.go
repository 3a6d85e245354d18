package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iccc-team/hawker-notifier/app/database"
	"github.com/iccc-team/hawker-notifier/app/feed"
	"github.com/iccc-team/hawker-notifier/app/tasks"
)

const (
	defaultAnnouncementLimit = 20
	maxAnnouncementLimit     = 200
)

func NewHandler(configCache *feed.ConfigCache, dispatchers map[string]DispatcherInterface,
	announcements database.AnnouncementRepository, reminders database.ReminderRepository,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		configCache:   configCache,
		dispatchers:   dispatchers,
		announcements: announcements,
		reminders:     reminders,
		scheduler:     scheduler,
		startedAt:     time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":                "ok",
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
		"dispatchers":           len(h.dispatchers),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	running := 0
	for _, d := range h.dispatchers {
		if d.Running() {
			running++
		}
	}

	stats := map[string]interface{}{
		"feeds":          h.configCache.GetConfigCount(),
		"enabled_feeds":  len(h.configCache.GetEnabledConfigs()),
		"running_cycles": running,
		"uptime":         time.Since(h.startedAt).Round(time.Second).String(),
		"started_at":     h.startedAt.Format(time.RFC3339),
	}

	if h.announcements != nil {
		if count, err := h.announcements.Count(ctx, ""); err == nil {
			stats["announcements"] = count
		} else {
			slog.Error("Database error", "operation", "count_announcements", "error", err)
		}
	}

	if h.reminders != nil {
		if pending, err := h.reminders.CountPending(ctx); err == nil {
			stats["pending_reminders"] = pending
		} else {
			slog.Error("Database error", "operation", "count_reminders", "error", err)
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	feeds := make([]map[string]interface{}, 0, len(configs))
	for _, name := range names {
		feedConfig := configs[name]

		feedInfo := map[string]interface{}{
			"name":              feedConfig.Name,
			"kind":              feedConfig.Kind,
			"channel_id":        feedConfig.ChannelID,
			"enabled":           feedConfig.Settings.Enabled,
			"refresh_interval":  feedConfig.RefreshInterval().String(),
			"timeout":           feedConfig.Timeout().String(),
			"duplicate_check":   feedConfig.Settings.DuplicateCheck,
			"halt_on_duplicate": feedConfig.HaltOnDuplicate(),
		}

		if d, ok := h.dispatchers[name]; ok {
			feedInfo["running"] = d.Running()
			feedInfo["cache"] = d.Cache().Snapshot()
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIListAnnouncements(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	limit := defaultAnnouncementLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxAnnouncementLimit)
	}

	announcements, err := h.announcements.ListRecent(c.Request.Context(), name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_announcements", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":          name,
		"announcements": announcements,
		"total":         len(announcements),
	})
}

func (h *Handler) APICheckFeed(c *gin.Context) {
	name := c.Param("name")

	err := h.scheduler.EnqueueFeedCheck(name)
	switch {
	case err == nil:
	case errors.Is(err, tasks.ErrUnknownFeed):
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	case errors.Is(err, tasks.ErrTaskInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "A cycle for this feed is already queued or running"})
		return
	default:
		slog.Error("Error enqueueing feed check", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue feed check",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Feed check requested", "feed", name)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Feed check enqueued",
		"feed":    name,
	})
}
