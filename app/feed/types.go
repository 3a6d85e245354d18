package feed

import (
	"time"
)

type Kind string

const (
	KindRelease    Kind = "release"
	KindMod        Kind = "mod"
	KindModCatalog Kind = "mod_catalog"
	KindStream     Kind = "stream"
	KindVideo      Kind = "video"
)

// Configuration types

type Config struct {
	Name      string         // Derived from filename (without .yml extension)
	Kind      Kind           `yaml:"kind"`
	ChannelID string         `yaml:"channel_id"`
	RoleID    string         `yaml:"role_id"`
	Creator   string         `yaml:"creator"`
	Settings  ConfigSettings `yaml:"settings"`

	Release *ReleaseConfig `yaml:"release"`
	Mod     *ModConfig     `yaml:"mod"`
	Catalog *CatalogConfig `yaml:"catalog"`
	Stream  *StreamConfig  `yaml:"stream"`
	Video   *VideoConfig   `yaml:"video"`

	Topic TopicConfig `yaml:"topic"`
	Roles RolesConfig `yaml:"roles"`
}

type ConfigSettings struct {
	Enabled         bool     `yaml:"enabled"`
	RefreshInterval int      `yaml:"refresh_interval"` // seconds
	Timeout         int      `yaml:"timeout"`          // seconds
	HistoryLimit    int      `yaml:"history_limit"`
	DuplicateCheck  []string `yaml:"duplicate_check"`
	HaltOnDuplicate *bool    `yaml:"halt_on_duplicate"`
}

type ReleaseConfig struct {
	Owner             string        `yaml:"owner"`
	Repo              string        `yaml:"repo"`
	FeedbackChannelID string        `yaml:"feedback_channel_id"`
	FeedbackWindow    time.Duration `yaml:"feedback_window"`
}

type ModConfig struct {
	Game  string `yaml:"game"`
	ModID int    `yaml:"mod_id"`
}

type CatalogConfig struct {
	Game    string `yaml:"game"`
	Exclude []int  `yaml:"exclude"`
}

type StreamConfig struct {
	UserID string `yaml:"user_id"`
}

type VideoConfig struct {
	ChannelID string `yaml:"channel_id"`
	Search    string `yaml:"search"` // "api" or "feed"
}

type TopicConfig struct {
	Keyword string `yaml:"keyword"`
	Name    string `yaml:"name"`
}

type RolesConfig struct {
	Primary string `yaml:"primary"`
	Other   string `yaml:"other"`
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Settings.RefreshInterval) * time.Second
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}

// HaltOnDuplicate defaults to true.
func (c *Config) HaltOnDuplicate() bool {
	return c.Settings.HaltOnDuplicate == nil || *c.Settings.HaltOnDuplicate
}
