package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iccc-team/hawker-notifier/app/announce"
	"github.com/iccc-team/hawker-notifier/app/database"
)

// MockCycler records how often it ran and can block until released.
type MockCycler struct {
	mu      sync.Mutex
	name    string
	runs    int
	block   chan struct{}
	started chan struct{}
}

func (m *MockCycler) Name() string {
	return m.name
}

func (m *MockCycler) RunCycle(ctx context.Context) announce.CycleResult {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
		}
	}
	return announce.CycleResult{ID: "cycle", Feed: m.name, Outcome: announce.OutcomeIdle}
}

func (m *MockCycler) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// MockReplier fails with err when set.
type MockReplier struct {
	mu      sync.Mutex
	err     error
	replies []string
}

func (m *MockReplier) Reply(ctx context.Context, channelID, messageID, text string) (announce.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return announce.Message{}, m.err
	}
	m.replies = append(m.replies, messageID+":"+text)
	return announce.Message{ID: "reply", ChannelID: channelID, Content: text, CreatedAt: time.Unix(1700000000, 0)}, nil
}

func (m *MockReplier) Replies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.replies...)
}

// MockReminderRepository keeps reminders in memory.
type MockReminderRepository struct {
	mu        sync.Mutex
	due       []database.Reminder
	attempts  map[string]int
	sent      map[string]time.Time
	dueErr    error
	markErr   error
	dueCalls  int
	abandoned map[string]bool
}

func NewMockReminderRepository(due ...database.Reminder) *MockReminderRepository {
	return &MockReminderRepository{
		due:       due,
		attempts:  make(map[string]int),
		sent:      make(map[string]time.Time),
		abandoned: make(map[string]bool),
	}
}

func (m *MockReminderRepository) ScheduleFollowUp(ctx context.Context, followUp announce.FollowUp) error {
	return nil
}

func (m *MockReminderRepository) Due(ctx context.Context, now time.Time, limit int) ([]database.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dueCalls++
	if m.dueErr != nil {
		return nil, m.dueErr
	}

	var out []database.Reminder
	for _, r := range m.due {
		if _, ok := m.sent[r.ID]; ok || m.abandoned[r.ID] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MockReminderRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.markErr != nil {
		return m.markErr
	}
	m.sent[id] = sentAt
	return nil
}

func (m *MockReminderRepository) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.markErr != nil {
		return false, m.markErr
	}
	m.attempts[id]++
	if m.attempts[id] >= database.MaxReminderAttempts {
		m.abandoned[id] = true
		return true, nil
	}
	return false, nil
}

func (m *MockReminderRepository) CountPending(ctx context.Context) (int, error) {
	reminders, err := m.Due(ctx, time.Now(), 0)
	return len(reminders), err
}

func (m *MockReminderRepository) Attempts(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[id]
}

func (m *MockReminderRepository) Sent(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.sent[id]
	return at, ok
}

var errDiscordDown = errors.New("discord unavailable")
