package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/iccc-team/hawker-notifier/app/database"
)

func testReminder(id string) database.Reminder {
	return database.Reminder{
		ID:        id,
		Feed:      "beta",
		ItemID:    "200",
		ChannelID: "feedback",
		MessageID: "msg-1",
		Text:      "How is the beta going?",
		DueAt:     time.Unix(1700000000, 0),
		Status:    database.ReminderPending,
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeCheckFeed, "beta", "feed:beta")

	if task.ID == "" {
		t.Error("Expected task ID to be generated")
	}
	if task.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected max retries %d, got %d", DefaultMaxRetries, task.MaxRetries)
	}
	if task.GetDuration() != 0 {
		t.Errorf("Expected zero duration before start, got %v", task.GetDuration())
	}

	task.Start()
	if task.StartedAt == nil {
		t.Error("Expected StartedAt to be set")
	}

	task.IncrementRetryCount()
	task.IncrementRetryCount()
	task.IncrementRetryCount()
	if task.CanRetry() {
		t.Error("Expected task to be out of retries")
	}
}

func TestCheckFeedTaskRunsCycle(t *testing.T) {
	cycler := &MockCycler{name: "beta"}
	task := NewCheckFeedTask(cycler, time.Second)

	if task.GetKey() != "feed:beta" {
		t.Errorf("Expected key 'feed:beta', got '%s'", task.GetKey())
	}
	if task.CanRetry() {
		t.Error("Expected feed checks not to retry")
	}

	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cycler.Runs() != 1 {
		t.Errorf("Expected 1 cycle, got %d", cycler.Runs())
	}
}

func TestCheckFeedTaskCancelled(t *testing.T) {
	cycler := &MockCycler{name: "beta"}
	task := NewCheckFeedTask(cycler, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := task.Execute(ctx); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if cycler.Runs() != 0 {
		t.Errorf("Expected no cycle, got %d", cycler.Runs())
	}
}

func TestCheckFeedTaskTimeout(t *testing.T) {
	cycler := &MockCycler{name: "beta", block: make(chan struct{})}
	task := NewCheckFeedTask(cycler, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- task.Execute(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected cycle to be bounded by the feed timeout")
	}
}

func TestSendReminderTaskSuccess(t *testing.T) {
	replier := &MockReplier{}
	repo := NewMockReminderRepository()
	task := NewSendReminderTask(testReminder("r1"), replier, repo)

	if task.GetKey() != "reminder:r1" {
		t.Errorf("Expected key 'reminder:r1', got '%s'", task.GetKey())
	}

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	replies := replier.Replies()
	if len(replies) != 1 || replies[0] != "msg-1:How is the beta going?" {
		t.Errorf("Expected one reply to msg-1, got %v", replies)
	}

	sentAt, ok := repo.Sent("r1")
	if !ok {
		t.Fatal("Expected reminder to be marked sent")
	}
	if !sentAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Expected sent at from reply, got %v", sentAt)
	}
}

func TestSendReminderTaskFailureRetries(t *testing.T) {
	replier := &MockReplier{err: errDiscordDown}
	repo := NewMockReminderRepository()
	task := NewSendReminderTask(testReminder("r1"), replier, repo)

	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error so the scheduler retries")
	}
	if repo.Attempts("r1") != 1 {
		t.Errorf("Expected 1 recorded attempt, got %d", repo.Attempts("r1"))
	}
}

func TestSendReminderTaskAbandoned(t *testing.T) {
	replier := &MockReplier{err: errDiscordDown}
	repo := NewMockReminderRepository()
	repo.attempts["r1"] = database.MaxReminderAttempts - 1
	task := NewSendReminderTask(testReminder("r1"), replier, repo)

	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected abandoned reminder not to be retried, got %v", err)
	}
	if repo.Attempts("r1") != database.MaxReminderAttempts {
		t.Errorf("Expected %d attempts, got %d", database.MaxReminderAttempts, repo.Attempts("r1"))
	}
}

func TestSendReminderTaskMarkSentFailure(t *testing.T) {
	replier := &MockReplier{}
	repo := NewMockReminderRepository()
	repo.markErr = errDiscordDown
	task := NewSendReminderTask(testReminder("r1"), replier, repo)

	// the reply went out, so the task must not be retried
	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(replier.Replies()) != 1 {
		t.Errorf("Expected 1 reply, got %d", len(replier.Replies()))
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(tt.retry); got != tt.expected {
			t.Errorf("Expected delay %v for retry %d, got %v", tt.expected, tt.retry, got)
		}
	}
}
