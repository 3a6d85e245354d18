package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

const (
	defaultTimeout        = 30  // seconds
	defaultCatalogTimeout = 600 // seconds
)

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive feed name from filename (remove .yml extension)
		fileName := filepath.Base(file)
		feedName := fileName[:len(fileName)-4] // Remove .yml extension

		config, err := cc.LoadConfig(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "feed", feedName, "kind", config.Kind, "enabled", config.Settings.Enabled, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile := cc.getConfigFilePath(feedName)
	feedConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	// Set feed name from parameter
	feedConfig.Name = feedName

	if err := cc.validateConfig(feedConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	// Store in cache
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[feedConfig.Name] = feedConfig

	return feedConfig, nil
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
	}
	return feedConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// ids and secrets stay in the environment
	data = []byte(os.ExpandEnv(string(data)))

	var feedConfig Config
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if feedConfig.Settings.RefreshInterval == 0 {
		feedConfig.Settings.RefreshInterval = 3600
	}
	if feedConfig.Settings.Timeout == 0 {
		feedConfig.Settings.Timeout = defaultTimeout
		if feedConfig.Kind == KindModCatalog {
			// one rate-limited request per tracked mod
			feedConfig.Settings.Timeout = defaultCatalogTimeout
		}
	}
	if feedConfig.Settings.HistoryLimit == 0 {
		feedConfig.Settings.HistoryLimit = announce.DefaultHistoryLimit
	}
	if len(feedConfig.Settings.DuplicateCheck) == 0 {
		feedConfig.Settings.DuplicateCheck = []string{string(announce.StrategyIdentity), string(announce.StrategyHistory)}
	}

	switch feedConfig.Kind {
	case KindMod:
		if feedConfig.Mod != nil && feedConfig.Mod.Game == "" {
			feedConfig.Mod.Game = announce.DefaultModGame
		}
	case KindModCatalog:
		if feedConfig.Catalog == nil {
			feedConfig.Catalog = &CatalogConfig{}
		}
		if feedConfig.Catalog.Game == "" {
			feedConfig.Catalog.Game = announce.DefaultModGame
		}
	case KindRelease:
		if feedConfig.Release != nil && feedConfig.Release.FeedbackWindow == 0 {
			feedConfig.Release.FeedbackWindow = announce.DefaultFeedbackWindow
		}
	case KindVideo:
		if feedConfig.Video != nil && feedConfig.Video.Search == "" {
			feedConfig.Video.Search = "api"
		}
	}

	return &feedConfig, nil
}

func (cc *ConfigCache) validateConfig(feedConfig *Config) error {
	if feedConfig == nil {
		return fmt.Errorf("feedConfig is nil")
	}

	requiredFeedFields := map[string]string{
		"feed name":  feedConfig.Name,
		"kind":       string(feedConfig.Kind),
		"channel id": feedConfig.ChannelID,
	}

	for fieldName, fieldValue := range requiredFeedFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"refresh interval": feedConfig.Settings.RefreshInterval,
		"timeout":          feedConfig.Settings.Timeout,
		"history limit":    feedConfig.Settings.HistoryLimit,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, s := range feedConfig.Settings.DuplicateCheck {
		if _, err := announce.ParseStrategy(s); err != nil {
			return fmt.Errorf("invalid duplicate check at index %d: %w", i, err)
		}
	}

	switch feedConfig.Kind {
	case KindRelease:
		if feedConfig.Release == nil || feedConfig.Release.Owner == "" || feedConfig.Release.Repo == "" {
			return fmt.Errorf("release feed requires release.owner and release.repo")
		}
	case KindMod:
		if feedConfig.Mod == nil || feedConfig.Mod.ModID <= 0 {
			return fmt.Errorf("mod feed requires mod.mod_id")
		}
	case KindModCatalog:
	case KindStream:
		if feedConfig.Stream == nil || feedConfig.Stream.UserID == "" {
			return fmt.Errorf("stream feed requires stream.user_id")
		}
	case KindVideo:
		if feedConfig.Video == nil || feedConfig.Video.ChannelID == "" {
			return fmt.Errorf("video feed requires video.channel_id")
		}
		if feedConfig.Video.Search != "api" && feedConfig.Video.Search != "feed" {
			return fmt.Errorf("invalid video search %q, expected api or feed", feedConfig.Video.Search)
		}
	default:
		return fmt.Errorf("unknown feed kind: %s", feedConfig.Kind)
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(feedName string) string {
	return filepath.Join(cc.feedsDir, feedName+".yml")
}
