package database

import (
	"context"
	"time"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

type AnnouncementRepository interface {
	RecordAnnouncement(ctx context.Context, record announce.Record) error
	ListRecent(ctx context.Context, feed string, limit int) ([]Announcement, error)
	Count(ctx context.Context, feed string) (int, error)
}

type ReminderRepository interface {
	ScheduleFollowUp(ctx context.Context, followUp announce.FollowUp) error
	Due(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) (bool, error)
	CountPending(ctx context.Context) (int, error)
}
