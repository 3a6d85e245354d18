package api

import (
	"time"

	"github.com/iccc-team/hawker-notifier/app/announce"
	"github.com/iccc-team/hawker-notifier/app/database"
	"github.com/iccc-team/hawker-notifier/app/feed"
	"github.com/iccc-team/hawker-notifier/app/tasks"
)

// DispatcherInterface is the read side of a dispatcher the API reports on.
type DispatcherInterface interface {
	Running() bool
	Cache() *announce.Cache
}

var _ DispatcherInterface = (*announce.Dispatcher)(nil)

type Handler struct {
	configCache   *feed.ConfigCache
	dispatchers   map[string]DispatcherInterface
	announcements database.AnnouncementRepository
	reminders     database.ReminderRepository
	scheduler     tasks.TaskSchedulerInterface
	startedAt     time.Time
}
