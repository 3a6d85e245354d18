package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iccc-team/hawker-notifier/app/announce"
	"github.com/iccc-team/hawker-notifier/app/database"
	"github.com/iccc-team/hawker-notifier/app/metrics"
)

// Replier posts a reply to an earlier chat message.
type Replier interface {
	Reply(ctx context.Context, channelID, messageID, text string) (announce.Message, error)
}

type SendReminderTask struct {
	Task
	reminder  database.Reminder
	replier   Replier
	reminders database.ReminderRepository
}

func NewSendReminderTask(reminder database.Reminder, replier Replier, reminders database.ReminderRepository) *SendReminderTask {
	return &SendReminderTask{
		Task:      NewTask(TaskTypeSendReminder, reminder.Feed, reminderKey(reminder.ID)),
		reminder:  reminder,
		replier:   replier,
		reminders: reminders,
	}
}

func reminderKey(id string) string {
	return "reminder:" + id
}

func (t *SendReminderTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sent, err := t.replier.Reply(ctx, t.reminder.ChannelID, t.reminder.MessageID, t.reminder.Text)
	if err != nil {
		abandoned, markErr := t.reminders.MarkFailed(ctx, t.reminder.ID, err.Error())
		if markErr != nil {
			slog.Error("Failed to record reminder failure", "feed", t.FeedName, "reminder", t.reminder.ID, "error", markErr)
		}
		if abandoned {
			metrics.RecordReminder(t.FeedName, "abandoned")
			slog.Error("Reminder abandoned", "feed", t.FeedName, "reminder", t.reminder.ID, "item", t.reminder.ItemID, "error", err)
			return nil
		}
		metrics.RecordReminder(t.FeedName, "failed")
		return fmt.Errorf("failed to send reminder %s: %w", t.reminder.ID, err)
	}

	sentAt := sent.CreatedAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	if err := t.reminders.MarkSent(ctx, t.reminder.ID, sentAt); err != nil {
		// the reply is out; retrying would post it twice
		slog.Error("Failed to mark reminder sent", "feed", t.FeedName, "reminder", t.reminder.ID, "error", err)
	}
	metrics.RecordReminder(t.FeedName, "sent")

	slog.Info("Task completed",
		"type", "SentReminder",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"item", t.reminder.ItemID,
		"reply_to", t.reminder.MessageID)

	return nil
}
