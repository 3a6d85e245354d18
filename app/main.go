package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iccc-team/hawker-notifier/app/announce"
	"github.com/iccc-team/hawker-notifier/app/api"
	"github.com/iccc-team/hawker-notifier/app/cfg"
	"github.com/iccc-team/hawker-notifier/app/chat"
	"github.com/iccc-team/hawker-notifier/app/database"
	"github.com/iccc-team/hawker-notifier/app/feed"
	"github.com/iccc-team/hawker-notifier/app/metrics"
	"github.com/iccc-team/hawker-notifier/app/sources"
	"github.com/iccc-team/hawker-notifier/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting Hawker Notifier", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		fatal("Failed to run migrations", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		fatal("Failed to load feed configurations", err)
	}
	slog.Info("Feed configurations loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	httpClient := sources.NewHTTPClient(sources.DefaultTimeout)
	src := newSources(appCfg, httpClient)

	discord, err := chat.NewDiscord(appCfg.DiscordToken, httpClient, appCfg.UserAgent)
	if err != nil {
		fatal("Failed to create Discord session", err)
	}
	if err := discord.Open(); err != nil {
		fatal("Failed to connect to Discord", err)
	}
	defer discord.Close()
	slog.Info("Connected to Discord", "user_id", discord.SelfID(), "client_id", appCfg.DiscordClientID)

	announcementRepo := database.NewAnnouncementRepository(db)
	reminderRepo := database.NewReminderRepository(db)

	cyclers := make(map[string]tasks.Cycler)
	dispatchers := make(map[string]api.DispatcherInterface)
	for name, feedConfig := range configCache.GetConfigs() {
		dispatcher, err := feedConfig.NewDispatcher(src, discord, discord.SelfID(), announce.Options{
			Journal:   announcementRepo,
			FollowUps: reminderRepo,
			Observer:  metrics.Observer{},
		})
		if err != nil {
			slog.Error("Feed disabled, dispatcher could not be built", "feed", name, "error", err)
			continue
		}
		cyclers[name] = dispatcher
		dispatchers[name] = dispatcher
	}

	scheduler := tasks.NewScheduler(configCache, cyclers, reminderRepo, discord,
		time.Duration(appCfg.SchedulerInterval)*time.Second, appCfg.WorkerCount)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval, "feeds", len(cyclers))
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(configCache, dispatchers, announcementRepo, reminderRepo, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

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
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Hawker Notifier started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler, Discord session and database are closed via defer
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

// newSources builds the platform clients the credentials allow. A feed whose
// client is missing fails to build its dispatcher and is skipped.
func newSources(appCfg *cfg.Cfg, httpClient *http.Client) feed.Sources {
	github := sources.NewGitHubClient(httpClient, appCfg.GitHubToken, appCfg.UserAgent)
	youtubeFeed := sources.NewYouTubeFeedSearcher(httpClient, "", appCfg.UserAgent)

	src := feed.Sources{
		Releases:  github,
		VideoFeed: youtubeFeed,
	}

	if appCfg.NexusAPIKey != "" {
		nexus := sources.NewNexusClient(httpClient, "", appCfg.NexusAPIKey, appCfg.UserAgent)
		src.ModFiles = nexus
		src.TrackedMods = nexus
	} else {
		slog.Warn("NEXUS_API_KEY not set, mod feeds disabled")
	}

	if appCfg.HasTwitch() {
		src.Streams = sources.NewTwitchClient(httpClient, sources.TwitchConfig{
			ClientID:     appCfg.TwitchClientID,
			ClientSecret: appCfg.TwitchClientSecret,
			UserAgent:    appCfg.UserAgent,
		})
	} else {
		slog.Warn("Twitch credentials not set, stream feeds disabled")
	}

	if appCfg.YouTubeAPIKey != "" {
		youtube := sources.NewYouTubeClient(httpClient, "", appCfg.YouTubeAPIKey, appCfg.UserAgent)
		src.VideoSearch = youtube
		src.Videos = youtube
	} else {
		slog.Warn("YOUTUBE_API_KEY not set, video feeds disabled")
	}

	return src
}
