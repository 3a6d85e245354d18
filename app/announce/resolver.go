package announce

import (
	"context"
	"fmt"
	"strings"
)

type Strategy string

const (
	StrategyIdentity Strategy = "identity"
	StrategyHistory  Strategy = "history"
)

const DefaultHistoryLimit = 100

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyIdentity:
		return StrategyIdentity, nil
	case StrategyHistory:
		return StrategyHistory, nil
	default:
		return "", fmt.Errorf("unknown duplicate check strategy: %q", s)
	}
}

// HistoryReader reads recent channel messages.
type HistoryReader interface {
	FetchRecentMessages(ctx context.Context, channel Channel, limit int) ([]Message, error)
}

// Match describes how a duplicate was found. Message is nil when the identity
// strategy matched and no sent message was cached.
type Match struct {
	Strategy Strategy
	Message  *Message
}

// Resolver applies the configured duplicate checks in order.
type Resolver struct {
	strategies []Strategy
	history    HistoryReader
	limit      int
	selfID     string
}

// NewResolver creates a resolver. selfID is the bot's own user id; marker
// matches only consider messages it authored when it is set.
func NewResolver(strategies []Strategy, history HistoryReader, limit int, selfID string) *Resolver {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Resolver{
		strategies: strategies,
		history:    history,
		limit:      limit,
		selfID:     selfID,
	}
}

// IsDuplicate reports whether the candidate identified by id has already been
// announced. A nil Match means it has not. A history read failure is
// returned as an error so the caller does not send.
func (r *Resolver) IsDuplicate(ctx context.Context, ann Announcement, id Identity, entry Entry) (*Match, error) {
	for _, strategy := range r.strategies {
		switch strategy {
		case StrategyIdentity:
			if entry.Announced() && entry.LastAnnouncedItemID == id {
				return &Match{Strategy: StrategyIdentity, Message: entry.LastSentMessage}, nil
			}

		case StrategyHistory:
			msg, err := r.scan(ctx, ann)
			if err != nil {
				return nil, err
			}
			if msg != nil {
				return &Match{Strategy: StrategyHistory, Message: msg}, nil
			}
		}
	}
	return nil, nil
}

func (r *Resolver) scan(ctx context.Context, ann Announcement) (*Message, error) {
	if r.history == nil {
		return nil, fmt.Errorf("%w: no history reader configured", ErrHistory)
	}

	messages, err := r.history.FetchRecentMessages(ctx, ann.Channel, r.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistory, err)
	}

	for i := range messages {
		if r.matches(messages[i], ann) {
			found := messages[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (r *Resolver) matches(m Message, ann Announcement) bool {
	if ann.Marker == "" {
		return m.Content == ann.Text
	}
	if r.selfID != "" && m.AuthorID != r.selfID {
		return false
	}
	return strings.Contains(m.Content, ann.Marker)
}
