// Package metrics provides Prometheus metrics for the notifier.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

const namespace = "hawker"

var (
	// CyclesTotal counts poll cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of poll cycles",
		},
		[]string{"feed", "outcome"},
	)

	// CycleDuration measures poll cycle duration.
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	// AnnouncementsTotal counts messages sent.
	AnnouncementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcements_total",
			Help:      "Total number of announcements sent",
		},
		[]string{"feed"},
	)

	// DuplicatesTotal counts candidates found to be already announced.
	DuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_total",
			Help:      "Total number of candidates already announced",
		},
		[]string{"feed"},
	)

	// AbortsTotal counts aborted cycles by stage and kind.
	AbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aborts_total",
			Help:      "Total number of aborted cycles",
		},
		[]string{"feed", "stage", "kind"},
	)

	// RemindersTotal counts follow-up replies by status.
	RemindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Total number of follow-up replies",
		},
		[]string{"feed", "status"},
	)

	// QueueDepth tracks tasks waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Number of tasks waiting in the queue",
		},
	)
)

// Observer records dispatcher cycle results.
type Observer struct{}

var _ announce.Observer = Observer{}

func (Observer) ObserveCycle(r announce.CycleResult) {
	CyclesTotal.WithLabelValues(r.Feed, string(r.Outcome)).Inc()
	if r.Outcome == announce.OutcomeSkipped {
		return
	}

	CycleDuration.WithLabelValues(r.Feed).Observe(r.Duration.Seconds())

	if r.Sent > 0 {
		AnnouncementsTotal.WithLabelValues(r.Feed).Add(float64(r.Sent))
	}
	if r.Duplicates > 0 {
		DuplicatesTotal.WithLabelValues(r.Feed).Add(float64(r.Duplicates))
	}
	if r.Err != nil {
		AbortsTotal.WithLabelValues(r.Feed, string(r.Err.Stage), r.Err.KindName()).Inc()
	}
}

// RecordReminder records a follow-up reply attempt.
func RecordReminder(feed, status string) {
	RemindersTotal.WithLabelValues(feed, status).Inc()
}

func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}
