package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ChatGateway is the chat platform as seen by the dispatcher.
type ChatGateway interface {
	HistoryReader
	FetchChannel(ctx context.Context, channelID string) (*Channel, error)
	Send(ctx context.Context, channel Channel, text string) (Message, error)
}

// Feed composes the message for a candidate. Implementations are SingleFeed
// or CatalogFeed.
type Feed interface {
	Name() string
	Compose(c Candidate, channel Channel) Announcement
}

// SingleFeed yields at most one candidate per cycle. Candidate covers the
// FETCHING, VALIDATING and CLASSIFYING stages.
type SingleFeed interface {
	Feed
	Candidate(ctx context.Context) (Candidate, error)
}

// CatalogFeed announces several independent entities per cycle.
type CatalogFeed interface {
	Feed
	Entities(ctx context.Context) ([]string, error)
	Candidate(ctx context.Context, entity string) (Candidate, error)
}

// FollowUpper is implemented by feeds that schedule a reply after sending.
type FollowUpper interface {
	FollowUp(c Candidate, sent Message) (FollowUp, bool)
}

type Journal interface {
	RecordAnnouncement(ctx context.Context, record Record) error
}

type FollowUpStore interface {
	ScheduleFollowUp(ctx context.Context, followUp FollowUp) error
}

type Observer interface {
	ObserveCycle(result CycleResult)
}

type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeAborted   Outcome = "aborted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeIdle      Outcome = "idle"
)

// CycleResult summarizes one cycle. Err is set when Outcome is aborted.
type CycleResult struct {
	ID         string
	Feed       string
	Outcome    Outcome
	Stage      Stage
	Sent       int
	Duplicates int
	Failed     int
	Duration   time.Duration
	Err        *AbortError
}

type Options struct {
	Resolver        *Resolver
	Journal         Journal
	FollowUps       FollowUpStore
	Observer        Observer
	HaltOnDuplicate bool
}

// Dispatcher runs poll cycles for one feed. Cycles never overlap: a trigger
// that arrives while a cycle is running is skipped.
type Dispatcher struct {
	feed            Feed
	channelID       string
	gateway         ChatGateway
	cache           *Cache
	resolver        *Resolver
	journal         Journal
	followUps       FollowUpStore
	observer        Observer
	haltOnDuplicate bool
	tracer          trace.Tracer
	running         atomic.Bool
	now             func() time.Time
}

func NewDispatcher(feed Feed, channelID string, gateway ChatGateway, cache *Cache, opts Options) *Dispatcher {
	if cache == nil {
		cache = NewCache()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = NewResolver([]Strategy{StrategyIdentity, StrategyHistory}, gateway, DefaultHistoryLimit, "")
	}

	return &Dispatcher{
		feed:            feed,
		channelID:       channelID,
		gateway:         gateway,
		cache:           cache,
		resolver:        resolver,
		journal:         opts.Journal,
		followUps:       opts.FollowUps,
		observer:        opts.Observer,
		haltOnDuplicate: opts.HaltOnDuplicate,
		tracer:          otel.Tracer("github.com/iccc-team/hawker-notifier/app/announce"),
		now:             time.Now,
	}
}

func (d *Dispatcher) Name() string {
	return d.feed.Name()
}

func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

func (d *Dispatcher) Cache() *Cache {
	return d.cache
}

// RunCycle performs one poll cycle. Every failure is logged and reported in
// the result; nothing is returned as an error and panics are recovered.
func (d *Dispatcher) RunCycle(ctx context.Context) (result CycleResult) {
	result = CycleResult{ID: uuid.NewString(), Feed: d.feed.Name(), Stage: StageFetching}

	if !d.running.CompareAndSwap(false, true) {
		slog.Warn("Cycle already in progress, skipping", "feed", result.Feed)
		result.Outcome = OutcomeSkipped
		return result
	}
	defer d.running.Store(false)

	start := d.now()
	ctx, span := d.tracer.Start(ctx, "announce.cycle", trace.WithAttributes(
		attribute.String("feed", result.Feed),
		attribute.String("cycle_id", result.ID),
	))

	defer func() {
		if r := recover(); r != nil {
			d.abort(&result, Abort(result.Stage, ErrPanic, fmt.Errorf("%v", r), "recovered from panic"))
		}
		result.Duration = d.now().Sub(start)

		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		if result.Err != nil && !isQuiet(result.Err) {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Reason)
		}
		span.End()

		if d.observer != nil {
			d.observer.ObserveCycle(result)
		}

		slog.Info("Cycle completed",
			"feed", result.Feed,
			"cycle_id", result.ID,
			"outcome", result.Outcome,
			"stage", result.Stage,
			"sent", result.Sent,
			"duplicates", result.Duplicates,
			"failed", result.Failed,
			"duration", result.Duration)
	}()

	switch f := d.feed.(type) {
	case CatalogFeed:
		d.runCatalog(ctx, f, &result)
	case SingleFeed:
		d.runSingle(ctx, f, &result)
	default:
		d.abort(&result, Abort(StageFetching, ErrValidation, nil, "feed %T has no candidate source", d.feed))
	}

	return result
}

func (d *Dispatcher) runSingle(ctx context.Context, f SingleFeed, result *CycleResult) {
	candidate, err := f.Candidate(ctx)
	if err != nil {
		d.abort(result, err)
		return
	}

	outcome, err := d.announce(ctx, candidate, result)
	if err != nil {
		d.abort(result, err)
		return
	}

	result.Outcome = outcome
	result.Stage = StageDone
	switch outcome {
	case OutcomeSent:
		result.Sent++
	case OutcomeDuplicate:
		result.Duplicates++
	}
}

// runCatalog walks the feed's entities, skipping the ones already adopted in
// this process. With haltOnDuplicate the pass stops at the first duplicate.
func (d *Dispatcher) runCatalog(ctx context.Context, f CatalogFeed, result *CycleResult) {
	entities, err := f.Entities(ctx)
	if err != nil {
		d.abort(result, err)
		return
	}

	pending := make([]string, 0, len(entities))
	for _, entity := range entities {
		if entry, ok := d.cache.Get(Key{Feed: result.Feed, Sub: entity}); ok && entry.Announced() {
			continue
		}
		pending = append(pending, entity)
	}

	if len(pending) == 0 {
		slog.Info("No new entities to check", "feed", result.Feed, "tracked", len(entities))
		result.Outcome = OutcomeIdle
		result.Stage = StageDone
		return
	}

	slog.Debug("Checking catalog entities", "feed", result.Feed, "pending", pending)

	var lastErr *AbortError

loop:
	for _, entity := range pending {
		select {
		case <-ctx.Done():
			lastErr = d.logAbort(result.Feed, Abort(result.Stage, ErrTransientFetch, ctx.Err(), "cycle cancelled"), "entity", entity)
			result.Failed++
			break loop
		default:
		}

		candidate, err := f.Candidate(ctx, entity)
		if err != nil {
			lastErr = d.logAbort(result.Feed, err, "entity", entity)
			result.Failed++
			continue
		}

		outcome, err := d.announce(ctx, candidate, result)
		if err != nil {
			lastErr = d.logAbort(result.Feed, err, "entity", entity)
			result.Failed++
			continue
		}

		switch outcome {
		case OutcomeSent:
			result.Sent++
		case OutcomeDuplicate:
			result.Duplicates++
			if d.haltOnDuplicate {
				slog.Info("Duplicate found, halting catalog pass", "feed", result.Feed, "entity", entity)
				break loop
			}
		}
	}

	switch {
	case result.Sent > 0:
		result.Outcome = OutcomeSent
		result.Stage = StageDone
	case result.Duplicates > 0:
		result.Outcome = OutcomeDuplicate
		result.Stage = StageDone
	case lastErr != nil:
		result.Outcome = OutcomeAborted
		result.Stage = lastErr.Stage
		result.Err = lastErr
	default:
		result.Outcome = OutcomeIdle
		result.Stage = StageDone
	}
}

// announce runs the channel, duplicate and send stages for one candidate.
func (d *Dispatcher) announce(ctx context.Context, c Candidate, result *CycleResult) (Outcome, error) {
	feedName := d.feed.Name()
	key := Key{Feed: feedName, Sub: c.Sub}

	result.Stage = StageResolvingChannel
	channel := d.cache.ResolveChannel(ctx, feedName, func(ctx context.Context) (*Channel, error) {
		return d.gateway.FetchChannel(ctx, d.channelID)
	})
	if channel == nil {
		return "", Abort(StageResolvingChannel, ErrChannelResolution, nil, "could not get channel %s", d.channelID)
	}

	result.Stage = StageCheckingDuplicate
	entry, _ := d.cache.Get(key)
	if entry.LastAnnouncedItemID != c.Item.ID {
		// the item may sit in another slot when its sub key changed between cycles
		if other, ok := d.cache.FindItem(feedName, c.Item.ID); ok {
			entry = other
		}
	}
	announcement := d.feed.Compose(c, *channel)

	match, err := d.resolver.IsDuplicate(ctx, announcement, c.Item.ID, entry)
	if err != nil {
		return "", Abort(StageCheckingDuplicate, ErrHistory, err, "could not check #%s for earlier announcements", channel.Name)
	}
	if match != nil {
		entry.LastAnnouncedItemID = c.Item.ID
		entry.Channel = channel
		if match.Message != nil {
			entry.LastSentMessage = match.Message
		}
		d.cache.Put(key, entry)

		attrs := []any{"feed", feedName, "item", c.Item.ID, "channel", channel.Name, "strategy", match.Strategy}
		if match.Message != nil {
			attrs = append(attrs, "message_id", match.Message.ID, "announced_at", match.Message.CreatedAt)
		}
		slog.Info("Item already announced", attrs...)
		return OutcomeDuplicate, nil
	}

	result.Stage = StageComposing
	if announcement.Text == "" {
		return "", Abort(StageComposing, ErrValidation, nil, "empty announcement for item %s", c.Item.ID)
	}

	result.Stage = StageSending
	slog.Info("Sending announcement", "feed", feedName, "item", c.Item.ID, "channel", channel.Name)
	sent, err := d.gateway.Send(ctx, *channel, announcement.Text)
	if err != nil {
		return "", Abort(StageSending, ErrDispatch, err, "failed to send announcement for item %s", c.Item.ID)
	}

	d.cache.Put(key, Entry{
		LastAnnouncedItemID: c.Item.ID,
		Channel:             channel,
		LastSentMessage:     &sent,
	})

	d.record(ctx, c, sent)
	d.scheduleFollowUp(ctx, c, sent)

	return OutcomeSent, nil
}

func (d *Dispatcher) record(ctx context.Context, c Candidate, sent Message) {
	if d.journal == nil {
		return
	}

	sentAt := sent.CreatedAt
	if sentAt.IsZero() {
		sentAt = d.now()
	}

	err := d.journal.RecordAnnouncement(ctx, Record{
		Feed:      d.feed.Name(),
		Sub:       c.Sub,
		ItemID:    c.Item.ID,
		ChannelID: sent.ChannelID,
		MessageID: sent.ID,
		SentAt:    sentAt,
	})
	if err != nil {
		slog.Warn("Failed to record announcement", "feed", d.feed.Name(), "item", c.Item.ID, "error", err)
	}
}

func (d *Dispatcher) scheduleFollowUp(ctx context.Context, c Candidate, sent Message) {
	f, ok := d.feed.(FollowUpper)
	if !ok || d.followUps == nil {
		return
	}

	followUp, ok := f.FollowUp(c, sent)
	if !ok {
		return
	}

	if err := d.followUps.ScheduleFollowUp(ctx, followUp); err != nil {
		slog.Error("Failed to schedule follow-up", "feed", d.feed.Name(), "item", c.Item.ID, "error", err)
		return
	}
	slog.Info("Follow-up scheduled", "feed", d.feed.Name(), "item", c.Item.ID, "due_at", followUp.DueAt)
}

func (d *Dispatcher) abort(result *CycleResult, err error) {
	ae := d.logAbort(result.Feed, err)
	result.Outcome = OutcomeAborted
	result.Stage = ae.Stage
	result.Err = ae
	result.Failed++
}

// logAbort normalizes err into an AbortError and logs it. Expected outcomes
// such as an ineligible item are logged at info level.
func (d *Dispatcher) logAbort(feed string, err error, attrs ...any) *AbortError {
	var ae *AbortError
	if !errors.As(err, &ae) {
		ae = Abort(StageFetching, ErrTransientFetch, err, "unexpected error")
	}
	ae.Feed = feed

	args := append([]any{"feed", feed, "stage", ae.Stage, "kind", ae.KindName(), "reason", ae.Reason}, attrs...)
	if ae.Err != nil {
		args = append(args, "error", ae.Err)
	}

	if isQuiet(ae) {
		slog.Info("Cycle stopped", args...)
	} else {
		slog.Error("Cycle aborted", args...)
	}
	return ae
}
