package announce

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/iccc-team/hawker-notifier/app/sources"
)

const DefaultFeedbackWindow = 7 * 24 * time.Hour

type ReleaseLister interface {
	ListReleases(ctx context.Context, owner, repo string) ([]sources.Release, error)
}

type ReleaseFeedConfig struct {
	Name              string
	Owner             string
	Repo              string
	RoleID            string
	FeedbackChannelID string
	FeedbackWindow    time.Duration
}

// ReleaseFeed announces the newest pre-release of a repository and schedules
// the end-of-feedback reply.
type ReleaseFeed struct {
	cfg    ReleaseFeedConfig
	client ReleaseLister
	now    func() time.Time
}

var (
	_ SingleFeed  = (*ReleaseFeed)(nil)
	_ FollowUpper = (*ReleaseFeed)(nil)
)

func NewReleaseFeed(cfg ReleaseFeedConfig, client ReleaseLister) *ReleaseFeed {
	if cfg.FeedbackWindow <= 0 {
		cfg.FeedbackWindow = DefaultFeedbackWindow
	}
	return &ReleaseFeed{cfg: cfg, client: client, now: time.Now}
}

func (f *ReleaseFeed) Name() string {
	return f.cfg.Name
}

func (f *ReleaseFeed) Candidate(ctx context.Context) (Candidate, error) {
	releases, err := f.client.ListReleases(ctx, f.cfg.Owner, f.cfg.Repo)
	if err != nil {
		return Candidate{}, Abort(StageFetching, ErrTransientFetch, err, "failed to list releases of %s/%s", f.cfg.Owner, f.cfg.Repo)
	}
	if len(releases) == 0 {
		return Candidate{}, Abort(StageFetching, ErrEmptyResult, nil, "%s/%s has no releases", f.cfg.Owner, f.cfg.Repo)
	}

	items := make([]RemoteItem, 0, len(releases))
	for _, r := range releases {
		items = append(items, releaseItem(r))
	}

	latest, _ := SelectLatestRelease(items)
	class := ClassifyRelease(latest)
	if !class.Eligible {
		return Candidate{}, Abort(StageClassifying, ErrNotEligible, nil, "%s", class.Reason)
	}

	return Candidate{Item: latest, RoleID: f.cfg.RoleID}, nil
}

func releaseItem(r sources.Release) RemoteItem {
	return RemoteItem{
		ID:          Identity(strconv.FormatInt(r.ID, 10)),
		Title:       r.Name,
		URL:         r.HTMLURL,
		PublishedAt: r.PublishedAt,
		Prerelease:  r.Prerelease,
		TagName:     r.TagName,
	}
}

func (f *ReleaseFeed) Compose(c Candidate, channel Channel) Announcement {
	feedbackEnds := f.now().Add(f.cfg.FeedbackWindow)
	marker := releaseMarker(c.Item.ID)

	text := fmt.Sprintf("%s %s. Feedback for this version will stop being collected %s in %s. Be sure to add the tag `%s` in your message so developers know which version you're referring to.\n%s",
		RoleMention(c.RoleID),
		marker,
		DiscordTimestamp(feedbackEnds, "R"),
		ChannelMention(f.cfg.FeedbackChannelID),
		c.Item.TagName,
		c.Item.URL)

	return Announcement{Channel: channel, Text: text, Marker: marker}
}

func releaseMarker(id Identity) string {
	return fmt.Sprintf("A new beta test build (id: `%s`) has been released", id)
}

// FollowUp schedules the reply that closes the feedback window.
func (f *ReleaseFeed) FollowUp(c Candidate, sent Message) (FollowUp, bool) {
	if sent.ID == "" {
		return FollowUp{}, false
	}

	start := sent.CreatedAt
	if start.IsZero() {
		start = f.now()
	}

	return FollowUp{
		Feed:      f.cfg.Name,
		ItemID:    c.Item.ID,
		ChannelID: sent.ChannelID,
		MessageID: sent.ID,
		Text: fmt.Sprintf("%s Feedback for this build (id: `%s`) has stopped being collected. Thank you all who participated.",
			RoleMention(c.RoleID), c.Item.ID),
		DueAt: start.Add(f.cfg.FeedbackWindow),
	}, true
}
