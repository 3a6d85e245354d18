package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

// SQLAnnouncementRepository is the journal of sent announcements. It is read
// for reporting only and never consulted for duplicate checks.
type SQLAnnouncementRepository struct {
	db *DB
}

var _ AnnouncementRepository = (*SQLAnnouncementRepository)(nil)

func NewAnnouncementRepository(db *DB) *SQLAnnouncementRepository {
	return &SQLAnnouncementRepository{db: db}
}

func (r *SQLAnnouncementRepository) RecordAnnouncement(ctx context.Context, record announce.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO announcements (id, feed, sub, item_id, channel_id, message_id, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), record.Feed, record.Sub, string(record.ItemID), record.ChannelID, record.MessageID,
		record.SentAt.Unix(), time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to record announcement: %w", err)
	}

	return nil
}

// ListRecent returns the latest announcements of feed, newest first.
func (r *SQLAnnouncementRepository) ListRecent(ctx context.Context, feed string, limit int) ([]Announcement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, feed, sub, item_id, channel_id, message_id, sent_at
		FROM announcements
		WHERE feed = ?
		ORDER BY sent_at DESC, created_at DESC
		LIMIT ?
	`, feed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	announcements := []Announcement{}
	for rows.Next() {
		var a Announcement
		var sentAt int64
		if err := rows.Scan(&a.ID, &a.Feed, &a.Sub, &a.ItemID, &a.ChannelID, &a.MessageID, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement row: %w", err)
		}
		a.SentAt = time.Unix(sentAt, 0).UTC()
		announcements = append(announcements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating announcement rows: %w", err)
	}

	return announcements, nil
}

// Count returns the number of announcements for feed, or for all feeds when
// feed is empty.
func (r *SQLAnnouncementRepository) Count(ctx context.Context, feed string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM announcements WHERE ? = '' OR feed = ?", feed, feed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get announcement count: %w", err)
	}
	return count, nil
}
