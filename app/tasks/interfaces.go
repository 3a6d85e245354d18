package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the admin API.
// Example usage:
//
//	scheduler := NewScheduler(configCache, dispatchers, reminders, discord, interval, workers)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueFeedCheck("beta-builds")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueFeedCheck(feedName string) error
}
