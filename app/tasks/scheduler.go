package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iccc-team/hawker-notifier/app/database"
	"github.com/iccc-team/hawker-notifier/app/feed"
	"github.com/iccc-team/hawker-notifier/app/metrics"
)

var (
	ErrUnknownFeed   = errors.New("unknown feed")
	ErrTaskInFlight  = errors.New("task already queued or running")
	ErrQueueFull     = errors.New("task queue is full")
	reminderBatch    = 50
	taskTimeout      = 15 * time.Minute
	maxRetryDelay    = 30 * time.Second
	defaultQueueSize = 300
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache *feed.ConfigCache
	cyclers     map[string]Cycler
	reminders   database.ReminderRepository
	replier     Replier
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu       sync.Mutex
	nextRun  map[string]time.Time
	inFlight map[string]bool
	now      func() time.Time
}

// NewScheduler creates a scheduler for the given feed cyclers. reminders and
// replier may be nil, which disables follow-up delivery.
func NewScheduler(configCache *feed.ConfigCache, cyclers map[string]Cycler, reminders database.ReminderRepository,
	replier Replier, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		cyclers:     cyclers,
		reminders:   reminders,
		replier:     replier,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, defaultQueueSize),
		nextRun:     make(map[string]time.Time),
		inFlight:    make(map[string]bool),
		now:         time.Now,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	// taskQueue stays open: a pending retry timer may still try to enqueue
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		metrics.SetQueueDepth(len(s.taskQueue))
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return ErrQueueFull
	}
}

// EnqueueFeedCheck queues an out-of-band cycle for feedName.
func (s *Scheduler) EnqueueFeedCheck(feedName string) error {
	cycler, ok := s.cyclers[feedName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFeed, feedName)
	}

	config, err := s.configCache.GetConfig(feedName)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownFeed, feedName)
	}

	return s.enqueueKeyed(NewCheckFeedTask(cycler, config.Timeout()))
}

// enqueueKeyed queues task unless a task with the same key is pending.
func (s *Scheduler) enqueueKeyed(task TaskInterface) error {
	s.mu.Lock()
	if s.inFlight[task.GetKey()] {
		s.mu.Unlock()
		return ErrTaskInFlight
	}
	s.inFlight[task.GetKey()] = true
	s.mu.Unlock()

	if err := s.EnqueueTask(task); err != nil {
		s.release(task)
		return err
	}
	return nil
}

func (s *Scheduler) release(task TaskInterface) {
	s.mu.Lock()
	delete(s.inFlight, task.GetKey())
	s.mu.Unlock()
}

func (s *Scheduler) enqueueTasks() {
	s.enqueueFeedChecks()
	s.enqueueReminders()
}

func (s *Scheduler) enqueueFeedChecks() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed configurations found")
		return
	}

	slog.Debug("Processing enabled feed configurations for task scheduling", "count", len(feedConfigs))

	now := s.now()
	for name, feedConfig := range feedConfigs {
		cycler, ok := s.cyclers[name]
		if !ok {
			slog.Warn("No dispatcher for feed, skipping", "feed", name)
			continue
		}

		s.mu.Lock()
		next, scheduled := s.nextRun[name]
		s.mu.Unlock()

		if scheduled && next.After(now) {
			slog.Debug("Feed not due for refresh yet", "feed", name, "next_run_at", next)
			continue
		}

		err := s.enqueueKeyed(NewCheckFeedTask(cycler, feedConfig.Timeout()))
		if errors.Is(err, ErrTaskInFlight) {
			slog.Debug("Feed check still in flight, skipping", "feed", name)
			continue
		}
		if err != nil {
			slog.Warn("Failed to enqueue CheckFeedTask", "feed", name, "error", err)
			continue
		}

		s.mu.Lock()
		s.nextRun[name] = now.Add(feedConfig.RefreshInterval())
		s.mu.Unlock()
	}
}

func (s *Scheduler) enqueueReminders() {
	if s.reminders == nil || s.replier == nil {
		return
	}

	due, err := s.reminders.Due(s.ctx, s.now(), reminderBatch)
	if err != nil {
		slog.Error("Failed to get due reminders", "error", err)
		return
	}

	for _, reminder := range due {
		err := s.enqueueKeyed(NewSendReminderTask(reminder, s.replier, s.reminders))
		if err != nil && !errors.Is(err, ErrTaskInFlight) {
			slog.Warn("Failed to enqueue SendReminderTask", "feed", reminder.Feed, "reminder", reminder.ID, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			metrics.SetQueueDepth(len(s.taskQueue))
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.release(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task)
			}
		}
	}()
}

func retryDelay(retryCount int) time.Duration {
	delay := time.Duration(1<<uint(retryCount-1)) * time.Second
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
