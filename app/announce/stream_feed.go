package announce

import (
	"context"
	"fmt"

	"github.com/iccc-team/hawker-notifier/app/sources"
)

type StreamGetter interface {
	GetLiveStream(ctx context.Context, userID string) (*sources.Stream, error)
}

// TopicRoles maps a topic to the role that is mentioned for it.
type TopicRoles struct {
	Primary string
	Other   string
}

func (r TopicRoles) For(topic Topic) string {
	if topic == TopicPrimary {
		return r.Primary
	}
	return r.Other
}

type StreamFeedConfig struct {
	Name    string
	UserID  string
	Creator string
	Topic   TopicRule
	Roles   TopicRoles
}

// StreamFeed announces the creator going live. Only live streams are returned
// by the client, so every stream is eligible and classification picks the
// role and cache slot.
type StreamFeed struct {
	cfg    StreamFeedConfig
	client StreamGetter
}

var _ SingleFeed = (*StreamFeed)(nil)

func NewStreamFeed(cfg StreamFeedConfig, client StreamGetter) *StreamFeed {
	return &StreamFeed{cfg: cfg, client: client}
}

func (f *StreamFeed) Name() string {
	return f.cfg.Name
}

func (f *StreamFeed) Candidate(ctx context.Context) (Candidate, error) {
	stream, err := f.client.GetLiveStream(ctx, f.cfg.UserID)
	if err != nil {
		return Candidate{}, Abort(StageFetching, ErrTransientFetch, err, "failed to get stream of user %s", f.cfg.UserID)
	}
	if stream == nil {
		return Candidate{}, Abort(StageFetching, ErrEmptyResult, nil, "%s is not live", creatorOr(f.cfg.Creator))
	}

	item := RemoteItem{
		ID:          Identity(stream.ID),
		Title:       stream.Title,
		URL:         stream.URL(),
		PublishedAt: stream.StartedAt,
		Tags:        stream.Tags,
		Category:    stream.GameName,
	}

	class := ClassifyTopic(item, f.cfg.Topic)
	return Candidate{
		Item:   item,
		Sub:    string(class.Topic),
		Topic:  class.Topic,
		RoleID: f.cfg.Roles.For(class.Topic),
	}, nil
}

// Compose renders the live message. The marker leaves out the role mention so
// a stream that changed topic still matches its earlier announcement.
func (f *StreamFeed) Compose(c Candidate, channel Channel) Announcement {
	marker := fmt.Sprintf("%s is live on twitch!\nStarted streaming at %s",
		creatorOr(f.cfg.Creator),
		DiscordTimestamp(c.Item.PublishedAt, ""))
	text := fmt.Sprintf("%s\n%s\nTitle: **%s**\nWatch here: %s",
		RoleMention(c.RoleID),
		marker,
		c.Item.Title,
		c.Item.URL)
	return Announcement{Channel: channel, Text: text, Marker: marker}
}
