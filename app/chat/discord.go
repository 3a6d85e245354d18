package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

// maxPageSize is the largest page the message history endpoint returns.
const maxPageSize = 100

// Discord is the bot's gateway session.
type Discord struct {
	session *discordgo.Session
	selfID  string
}

var _ announce.ChatGateway = (*Discord)(nil)

func NewDiscord(token string, httpClient *http.Client, userAgent string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	if httpClient != nil {
		session.Client = httpClient
	}
	if userAgent != "" {
		session.UserAgent = userAgent
	}

	d := &Discord{session: session}
	session.AddHandler(d.onReady)
	return d, nil
}

func (d *Discord) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("Discord session ready", "user", r.User.Username, "guilds", len(r.Guilds))
}

// Open connects to the gateway and records the bot's user id. The session
// has received READY by the time it returns.
func (d *Discord) Open() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	if d.session.State != nil && d.session.State.User != nil {
		d.selfID = d.session.State.User.ID
	}
	return nil
}

func (d *Discord) Close() error {
	return d.session.Close()
}

// SelfID is the bot's user id, known once the session is open.
func (d *Discord) SelfID() string {
	return d.selfID
}

func (d *Discord) FetchChannel(ctx context.Context, channelID string) (*announce.Channel, error) {
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %s: %w", channelID, err)
	}
	return &announce.Channel{ID: ch.ID, Name: ch.Name}, nil
}

// FetchRecentMessages returns up to limit messages, newest first.
func (d *Discord) FetchRecentMessages(ctx context.Context, channel announce.Channel, limit int) ([]announce.Message, error) {
	out := make([]announce.Message, 0, limit)
	before := ""

	for len(out) < limit {
		page := min(limit-len(out), maxPageSize)
		messages, err := d.session.ChannelMessages(channel.ID, page, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to get messages of #%s: %w", channel.Name, err)
		}

		for _, m := range messages {
			out = append(out, toMessage(m))
		}

		if len(messages) < page {
			break
		}
		before = messages[len(messages)-1].ID
	}

	slog.Debug("Fetched channel history", "channel", channel.Name, "messages", len(out))
	return out, nil
}

func (d *Discord) Send(ctx context.Context, channel announce.Channel, text string) (announce.Message, error) {
	m, err := d.session.ChannelMessageSend(channel.ID, text, discordgo.WithContext(ctx))
	if err != nil {
		return announce.Message{}, fmt.Errorf("failed to send message to #%s: %w", channel.Name, err)
	}
	return toMessage(m), nil
}

// Reply posts text as a reply to an earlier message.
func (d *Discord) Reply(ctx context.Context, channelID, messageID, text string) (announce.Message, error) {
	ref := &discordgo.MessageReference{MessageID: messageID, ChannelID: channelID}
	m, err := d.session.ChannelMessageSendReply(channelID, text, ref, discordgo.WithContext(ctx))
	if err != nil {
		return announce.Message{}, fmt.Errorf("failed to reply to message %s: %w", messageID, err)
	}
	return toMessage(m), nil
}

func toMessage(m *discordgo.Message) announce.Message {
	msg := announce.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg
}
