package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

// SQLReminderRepository persists follow-up replies so they survive restarts.
type SQLReminderRepository struct {
	db *DB
}

var _ ReminderRepository = (*SQLReminderRepository)(nil)

func NewReminderRepository(db *DB) *SQLReminderRepository {
	return &SQLReminderRepository{db: db}
}

// ScheduleFollowUp stores a pending reminder. Scheduling the same reply twice
// is a no-op.
func (r *SQLReminderRepository) ScheduleFollowUp(ctx context.Context, f announce.FollowUp) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (id, feed, item_id, channel_id, message_id, text, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed, item_id, message_id) DO NOTHING
	`, uuid.NewString(), f.Feed, string(f.ItemID), f.ChannelID, f.MessageID, f.Text, f.DueAt.Unix(), time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}

	return nil
}

// Due returns pending reminders whose due time has passed, oldest first.
func (r *SQLReminderRepository) Due(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, feed, item_id, channel_id, message_id, text, due_at, status, attempts, last_error, sent_at
		FROM reminders
		WHERE status = ? AND due_at <= ?
		ORDER BY due_at
		LIMIT ?
	`, ReminderPending, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var rem Reminder
		var dueAt int64
		var sentAt sql.NullInt64
		err := rows.Scan(&rem.ID, &rem.Feed, &rem.ItemID, &rem.ChannelID, &rem.MessageID, &rem.Text,
			&dueAt, &rem.Status, &rem.Attempts, &rem.LastError, &sentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		rem.DueAt = time.Unix(dueAt, 0).UTC()
		if sentAt.Valid {
			t := time.Unix(sentAt.Int64, 0).UTC()
			rem.SentAt = &t
		}
		reminders = append(reminders, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder rows: %w", err)
	}

	return reminders, nil
}

func (r *SQLReminderRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reminders
		SET status = ?, sent_at = ?, attempts = attempts + 1, last_error = ''
		WHERE id = ?
	`, ReminderSent, sentAt.Unix(), id)

	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	return nil
}

// MarkFailed records a failed delivery and reports whether the reminder was
// abandoned.
func (r *SQLReminderRepository) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	var status ReminderStatus
	err := r.db.QueryRowContext(ctx, `
		UPDATE reminders
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?
		RETURNING status
	`, reason, MaxReminderAttempts, ReminderAbandoned, id).Scan(&status)

	if err != nil {
		return false, fmt.Errorf("failed to mark reminder failed: %w", err)
	}

	return status == ReminderAbandoned, nil
}

func (r *SQLReminderRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reminders WHERE status = ?", ReminderPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending reminder count: %w", err)
	}
	return count, nil
}
