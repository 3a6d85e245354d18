package feed

import (
	"fmt"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

// Sources are the platform clients feeds read from. A nil client makes the
// feeds that need it fail to build.
type Sources struct {
	Releases    announce.ReleaseLister
	ModFiles    announce.ModFilesGetter
	TrackedMods announce.TrackedModsLister
	Streams     announce.StreamGetter
	VideoSearch announce.VideoSearcher
	VideoFeed   announce.VideoSearcher
	Videos      announce.VideoGetter
}

func (c *Config) Strategies() ([]announce.Strategy, error) {
	strategies := make([]announce.Strategy, 0, len(c.Settings.DuplicateCheck))
	for _, s := range c.Settings.DuplicateCheck {
		strategy, err := announce.ParseStrategy(s)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strategy)
	}
	return strategies, nil
}

// Feed builds the announce feed for the config's kind.
func (c *Config) Feed(src Sources) (announce.Feed, error) {
	topic := announce.TopicRule{Keyword: c.Topic.Keyword, Name: c.Topic.Name}
	roles := announce.TopicRoles{Primary: c.Roles.Primary, Other: c.Roles.Other}

	switch c.Kind {
	case KindRelease:
		if src.Releases == nil {
			return nil, fmt.Errorf("feed %s: no release client configured", c.Name)
		}
		return announce.NewReleaseFeed(announce.ReleaseFeedConfig{
			Name:              c.Name,
			Owner:             c.Release.Owner,
			Repo:              c.Release.Repo,
			RoleID:            c.RoleID,
			FeedbackChannelID: c.Release.FeedbackChannelID,
			FeedbackWindow:    c.Release.FeedbackWindow,
		}, src.Releases), nil

	case KindMod:
		if src.ModFiles == nil {
			return nil, fmt.Errorf("feed %s: no mod client configured", c.Name)
		}
		return announce.NewModFeed(announce.ModFeedConfig{
			Name:   c.Name,
			Game:   c.Mod.Game,
			ModID:  c.Mod.ModID,
			RoleID: c.RoleID,
		}, src.ModFiles), nil

	case KindModCatalog:
		if src.ModFiles == nil || src.TrackedMods == nil {
			return nil, fmt.Errorf("feed %s: no mod client configured", c.Name)
		}
		return announce.NewModCatalogFeed(announce.ModCatalogFeedConfig{
			Name:    c.Name,
			Game:    c.Catalog.Game,
			Creator: c.Creator,
			Exclude: c.Catalog.Exclude,
		}, src.TrackedMods, src.ModFiles), nil

	case KindStream:
		if src.Streams == nil {
			return nil, fmt.Errorf("feed %s: no stream client configured", c.Name)
		}
		return announce.NewStreamFeed(announce.StreamFeedConfig{
			Name:    c.Name,
			UserID:  c.Stream.UserID,
			Creator: c.Creator,
			Topic:   topic,
			Roles:   roles,
		}, src.Streams), nil

	case KindVideo:
		searcher := src.VideoSearch
		if c.Video.Search == "feed" {
			searcher = src.VideoFeed
		}
		if searcher == nil || src.Videos == nil {
			return nil, fmt.Errorf("feed %s: no video client configured", c.Name)
		}
		return announce.NewVideoFeed(announce.VideoFeedConfig{
			Name:      c.Name,
			ChannelID: c.Video.ChannelID,
			Creator:   c.Creator,
			Topic:     topic,
			Roles:     roles,
		}, searcher, src.Videos), nil

	default:
		return nil, fmt.Errorf("unknown feed kind: %s", c.Kind)
	}
}

// NewDispatcher wires the config's feed, duplicate checks and channel into
// a dispatcher with its own cache. selfID is the bot's chat user id.
func (c *Config) NewDispatcher(src Sources, gateway announce.ChatGateway, selfID string, opts announce.Options) (*announce.Dispatcher, error) {
	f, err := c.Feed(src)
	if err != nil {
		return nil, err
	}

	strategies, err := c.Strategies()
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", c.Name, err)
	}

	opts.Resolver = announce.NewResolver(strategies, gateway, c.Settings.HistoryLimit, selfID)
	opts.HaltOnDuplicate = c.HaltOnDuplicate()

	return announce.NewDispatcher(f, c.ChannelID, gateway, announce.NewCache(), opts), nil
}
