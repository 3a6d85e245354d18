package database

import (
	"time"
)

type Announcement struct {
	ID        string    `json:"id"`
	Feed      string    `json:"feed"`
	Sub       string    `json:"sub,omitempty"`
	ItemID    string    `json:"item_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderAbandoned ReminderStatus = "abandoned"
)

// MaxReminderAttempts is the number of failed deliveries after which a
// reminder is abandoned.
const MaxReminderAttempts = 5

type Reminder struct {
	ID        string
	Feed      string
	ItemID    string
	ChannelID string
	MessageID string
	Text      string
	DueAt     time.Time
	Status    ReminderStatus
	Attempts  int
	LastError string
	SentAt    *time.Time
}
