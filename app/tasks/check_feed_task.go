package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

// Cycler runs one poll cycle of a feed.
type Cycler interface {
	Name() string
	RunCycle(ctx context.Context) announce.CycleResult
}

// CheckFeedTask runs a single dispatcher cycle. It never retries: the next
// refresh is the retry.
type CheckFeedTask struct {
	Task
	cycler  Cycler
	timeout time.Duration
}

func NewCheckFeedTask(cycler Cycler, timeout time.Duration) *CheckFeedTask {
	task := NewTask(TaskTypeCheckFeed, cycler.Name(), feedKey(cycler.Name()))
	task.MaxRetries = 0

	return &CheckFeedTask{
		Task:    task,
		cycler:  cycler,
		timeout: timeout,
	}
}

func feedKey(name string) string {
	return "feed:" + name
}

func (t *CheckFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	result := t.cycler.RunCycle(ctx)

	slog.Info("Task completed",
		"type", "CheckedFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"cycle_id", result.ID,
		"outcome", result.Outcome,
		"sent", result.Sent,
		"duplicates", result.Duplicates)

	return nil
}
