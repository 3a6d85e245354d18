package announce

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Key addresses one cache slot. Sub is empty for single-item feeds and holds
// the entity id (mod id, topic) otherwise.
type Key struct {
	Feed string
	Sub  string
}

// Entry is the per-slot memo of what was last announced.
type Entry struct {
	LastAnnouncedItemID Identity
	Channel             *Channel
	LastSentMessage     *Message
}

func (e Entry) Announced() bool {
	return e.LastAnnouncedItemID != ""
}

// Cache holds announcement state for a single dispatcher. It lives for the
// process lifetime and is never persisted.
type Cache struct {
	mu       sync.RWMutex
	entries  map[Key]Entry
	channels map[string]*Channel
}

func NewCache() *Cache {
	return &Cache{
		entries:  make(map[Key]Entry),
		channels: make(map[string]*Channel),
	}
}

func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return entry, ok
}

// FindItem returns an entry of feed that last announced id, whatever its
// sub key.
func (c *Cache) FindItem(feed string, id Identity) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for key, entry := range c.entries {
		if key.Feed == feed && entry.Announced() && entry.LastAnnouncedItemID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// Put replaces the entry for key.
func (c *Cache) Put(key Key, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// ResolveChannel returns the memoized channel for feed or calls fetch. Only
// successful lookups are memoized and they are never refreshed.
func (c *Cache) ResolveChannel(ctx context.Context, feed string, fetch func(ctx context.Context) (*Channel, error)) *Channel {
	c.mu.RLock()
	cached, ok := c.channels[feed]
	c.mu.RUnlock()
	if ok {
		slog.Debug("Channel already cached, skipping fetch", "feed", feed, "channel", cached.Name)
		return cached
	}

	channel, err := fetch(ctx)
	if err != nil {
		slog.Error("Failed to fetch channel", "feed", feed, "error", err)
		return nil
	}
	if channel == nil {
		slog.Error("Channel lookup returned nothing", "feed", feed)
		return nil
	}

	c.mu.Lock()
	c.channels[feed] = channel
	c.mu.Unlock()

	slog.Info("Fetched and cached channel", "feed", feed, "channel", channel.Name)
	return channel
}

// SnapshotEntry is a read-only view of one slot for status reporting.
type SnapshotEntry struct {
	Feed                string `json:"feed"`
	Sub                 string `json:"sub,omitempty"`
	LastAnnouncedItemID string `json:"last_announced_item_id"`
	ChannelID           string `json:"channel_id,omitempty"`
	LastSentMessageID   string `json:"last_sent_message_id,omitempty"`
}

func (c *Cache) Snapshot() []SnapshotEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SnapshotEntry, 0, len(c.entries))
	for key, entry := range c.entries {
		s := SnapshotEntry{
			Feed:                key.Feed,
			Sub:                 key.Sub,
			LastAnnouncedItemID: string(entry.LastAnnouncedItemID),
		}
		if entry.Channel != nil {
			s.ChannelID = entry.Channel.ID
		}
		if entry.LastSentMessage != nil {
			s.LastSentMessageID = entry.LastSentMessage.ID
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Feed != out[j].Feed {
			return out[i].Feed < out[j].Feed
		}
		return out[i].Sub < out[j].Sub
	})
	return out
}
