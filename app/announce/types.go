package announce

import (
	"time"
)

// Identity is the platform-defined key of a remote item. Two items with the
// same Identity are the same announcement target.
type Identity string

// RemoteItem is a release, mod file, stream or video normalized for
// classification and message composition.
type RemoteItem struct {
	ID          Identity
	Title       string
	URL         string
	PublishedAt time.Time
	Tags        []string
	Category    string
	Description string
	Prerelease  bool
	TagName     string // release tag
	Name        string // mod name
	Version     string // mod version
}

type Topic string

const (
	TopicNone    Topic = ""
	TopicPrimary Topic = "primary"
	TopicOther   Topic = "other"
)

type Classification struct {
	Eligible bool
	Reason   string
	Topic    Topic
}

// Candidate is an eligible item ready to be checked and announced.
type Candidate struct {
	Item   RemoteItem
	Sub    string // cache sub-key; empty for single-item feeds
	RoleID string
	Topic  Topic
}

type Channel struct {
	ID   string
	Name string
}

type Message struct {
	ID        string
	ChannelID string
	Content   string
	AuthorID  string
	CreatedAt time.Time
}

// Announcement is the composed text for one candidate. When Marker is set the
// history scan looks for it instead of the exact text.
type Announcement struct {
	Channel Channel
	Text    string
	Marker  string
}

// FollowUp is a message to post as a reply to an announcement at a later time.
type FollowUp struct {
	Feed      string
	ItemID    Identity
	ChannelID string
	MessageID string
	Text      string
	DueAt     time.Time
}

// Record describes one announcement that was sent.
type Record struct {
	Feed      string
	Sub       string
	ItemID    Identity
	ChannelID string
	MessageID string
	SentAt    time.Time
}
