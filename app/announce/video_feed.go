package announce

import (
	"context"
	"fmt"

	"github.com/iccc-team/hawker-notifier/app/sources"
)

type VideoSearcher interface {
	SearchLatestVideo(ctx context.Context, channelID string) (string, error)
}

type VideoGetter interface {
	GetVideoMetadata(ctx context.Context, videoID string) (*sources.Video, error)
}

type VideoFeedConfig struct {
	Name      string
	ChannelID string
	Creator   string
	Topic     TopicRule
	Roles     TopicRoles
}

// VideoFeed announces the latest upload of a channel. The primary and other
// topics keep separate cache slots.
type VideoFeed struct {
	cfg      VideoFeedConfig
	searcher VideoSearcher
	videos   VideoGetter
}

var _ SingleFeed = (*VideoFeed)(nil)

func NewVideoFeed(cfg VideoFeedConfig, searcher VideoSearcher, videos VideoGetter) *VideoFeed {
	return &VideoFeed{cfg: cfg, searcher: searcher, videos: videos}
}

func (f *VideoFeed) Name() string {
	return f.cfg.Name
}

func (f *VideoFeed) Candidate(ctx context.Context) (Candidate, error) {
	videoID, err := f.searcher.SearchLatestVideo(ctx, f.cfg.ChannelID)
	if err != nil {
		return Candidate{}, Abort(StageFetching, ErrTransientFetch, err, "failed to search videos of channel %s", f.cfg.ChannelID)
	}
	if videoID == "" {
		return Candidate{}, Abort(StageFetching, ErrEmptyResult, nil, "no videos found for channel %s", f.cfg.ChannelID)
	}

	video, err := f.videos.GetVideoMetadata(ctx, videoID)
	if err != nil {
		return Candidate{}, Abort(StageFetching, ErrTransientFetch, err, "failed to get metadata of video %s", videoID)
	}
	if video == nil {
		return Candidate{}, Abort(StageFetching, ErrEmptyResult, nil, "no metadata for video %s; it may be deleted, private or restricted", videoID)
	}

	item := RemoteItem{
		ID:          Identity(video.ID),
		Title:       video.Title,
		URL:         video.URL(),
		PublishedAt: video.PublishedAt,
		Tags:        video.Tags,
		Description: video.Description,
	}

	class := ClassifyTopic(item, f.cfg.Topic)
	return Candidate{
		Item:   item,
		Sub:    string(class.Topic),
		Topic:  class.Topic,
		RoleID: f.cfg.Roles.For(class.Topic),
	}, nil
}

func (f *VideoFeed) Compose(c Candidate, channel Channel) Announcement {
	text := fmt.Sprintf("%s %s uploaded **%s** at %s\n%s",
		RoleMention(c.RoleID),
		creatorOr(f.cfg.Creator),
		c.Item.Title,
		DiscordTimestamp(c.Item.PublishedAt, ""),
		c.Item.URL)
	// the watch URL is unique per video and free of the topic's role
	return Announcement{Channel: channel, Text: text, Marker: c.Item.URL}
}
