package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Discord configuration
	DiscordToken    string `long:"discord-token" env:"DISCORD_TOKEN" description:"Discord bot token (required)" required:"true"`
	DiscordClientID string `long:"discord-client-id" env:"DISCORD_CLIENT_ID" description:"Discord application id"`

	// Platform credentials
	GitHubToken        string `long:"github-token" env:"GITHUB_TOKEN" description:"GitHub token for the releases API (optional)"`
	NexusAPIKey        string `long:"nexus-api-key" env:"NEXUS_API_KEY" description:"Nexus Mods personal API key"`
	TwitchClientID     string `long:"twitch-client-id" env:"TWITCH_CLIENT_ID" description:"Twitch application client id"`
	TwitchClientSecret string `long:"twitch-client-secret" env:"TWITCH_CLIENT_SECRET" description:"Twitch application client secret"`
	YouTubeAPIKey      string `long:"youtube-api-key" env:"YOUTUBE_API_KEY" description:"YouTube Data API key"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	DBPath            string `long:"db-path" env:"DB_PATH" default:"./data/hawker.db" description:"Path of the sqlite database"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for feed checks"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Hawker Notifier/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", raw.WorkerCount)
	}
	if raw.SchedulerInterval < 1 {
		return nil, fmt.Errorf("scheduler interval must be at least 1 second, got %d", raw.SchedulerInterval)
	}

	cfg := &Cfg{
		DiscordToken:       raw.DiscordToken,
		DiscordClientID:    raw.DiscordClientID,
		GitHubToken:        raw.GitHubToken,
		NexusAPIKey:        raw.NexusAPIKey,
		TwitchClientID:     raw.TwitchClientID,
		TwitchClientSecret: raw.TwitchClientSecret,
		YouTubeAPIKey:      raw.YouTubeAPIKey,
		FeedsDir:           raw.FeedsDir,
		DBPath:             raw.DBPath,
		Port:               raw.Port,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		APIAccessKey:       raw.APIAccessKey,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
