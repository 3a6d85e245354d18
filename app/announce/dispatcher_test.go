package announce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iccc-team/hawker-notifier/app/sources"
)

func newSingle(id string) *MockSingleFeed {
	return &MockSingleFeed{
		name:      "test",
		candidate: Candidate{Item: RemoteItem{ID: Identity(id)}},
	}
}

func TestDispatcherIdempotence(t *testing.T) {
	gw := NewMockGateway()
	d := NewDispatcher(newSingle("42"), "chan-1", gw, nil, Options{})

	first := d.RunCycle(context.Background())
	if first.Outcome != OutcomeSent {
		t.Fatalf("Expected sent, got %s (%v)", first.Outcome, first.Err)
	}

	second := d.RunCycle(context.Background())
	if second.Outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate, got %s", second.Outcome)
	}
	if gw.sendCalls != 1 {
		t.Errorf("Expected 1 send, got %d", gw.sendCalls)
	}
	// the second cycle is settled by the cached identity
	if gw.historyCalls != 1 {
		t.Errorf("Expected 1 history fetch, got %d", gw.historyCalls)
	}
	if gw.channelCalls != 1 {
		t.Errorf("Expected channel to be fetched once, got %d", gw.channelCalls)
	}
}

func TestDispatcherColdCacheRecovery(t *testing.T) {
	gw := NewMockGateway()
	gw.messages = []Message{{ID: "old", Content: "announce 42", AuthorID: "bot"}}

	d := NewDispatcher(newSingle("42"), "chan-1", gw, nil, Options{})
	result := d.RunCycle(context.Background())

	if result.Outcome != OutcomeDuplicate {
		t.Fatalf("Expected duplicate, got %s", result.Outcome)
	}
	if gw.sendCalls != 0 {
		t.Errorf("Expected no send, got %d", gw.sendCalls)
	}

	entry, ok := d.Cache().Get(Key{Feed: "test"})
	if !ok || entry.LastAnnouncedItemID != "42" {
		t.Fatalf("Expected cache to adopt item 42, got %+v", entry)
	}
	if entry.LastSentMessage == nil || entry.LastSentMessage.ID != "old" {
		t.Errorf("Expected cached message old, got %+v", entry.LastSentMessage)
	}
}

func TestDispatcherHistoryFailureDoesNotSend(t *testing.T) {
	gw := NewMockGateway()
	gw.historyErr = errors.New("missing access")

	d := NewDispatcher(newSingle("42"), "chan-1", gw, nil, Options{})
	result := d.RunCycle(context.Background())

	if result.Outcome != OutcomeAborted {
		t.Fatalf("Expected aborted, got %s", result.Outcome)
	}
	if result.Stage != StageCheckingDuplicate {
		t.Errorf("Expected stage %s, got %s", StageCheckingDuplicate, result.Stage)
	}
	if !errors.Is(result.Err, ErrHistory) {
		t.Errorf("Expected ErrHistory, got %v", result.Err)
	}
	if gw.sendCalls != 0 {
		t.Errorf("Expected no send, got %d", gw.sendCalls)
	}
}

func TestDispatcherSendFailureLeavesCacheUntouched(t *testing.T) {
	gw := NewMockGateway()
	gw.sendErr = errors.New("rate limited")

	d := NewDispatcher(newSingle("42"), "chan-1", gw, nil, Options{})
	result := d.RunCycle(context.Background())

	if result.Outcome != OutcomeAborted || result.Stage != StageSending {
		t.Fatalf("Expected abort at SENDING, got %s at %s", result.Outcome, result.Stage)
	}
	if !errors.Is(result.Err, ErrDispatch) {
		t.Errorf("Expected ErrDispatch, got %v", result.Err)
	}
	if entry, _ := d.Cache().Get(Key{Feed: "test"}); entry.Announced() {
		t.Errorf("Expected no cache adoption after failed send, got %+v", entry)
	}

	gw.sendErr = nil
	result = d.RunCycle(context.Background())
	if result.Outcome != OutcomeSent {
		t.Errorf("Expected retry to send, got %s", result.Outcome)
	}
}

func TestDispatcherChannelResolutionFailure(t *testing.T) {
	gw := NewMockGateway()
	gw.channelErr = errors.New("unknown channel")

	d := NewDispatcher(newSingle("42"), "chan-1", gw, nil, Options{})
	result := d.RunCycle(context.Background())

	if result.Stage != StageResolvingChannel || !errors.Is(result.Err, ErrChannelResolution) {
		t.Errorf("Expected channel resolution abort, got %s (%v)", result.Stage, result.Err)
	}
	if gw.historyCalls != 0 || gw.sendCalls != 0 {
		t.Errorf("Expected no history or send, got %d/%d", gw.historyCalls, gw.sendCalls)
	}
}

func TestDispatcherCandidateAbort(t *testing.T) {
	gw := NewMockGateway()
	feed := newSingle("1")
	feed.err = Abort(StageClassifying, ErrNotEligible, nil, "not a pre-release")

	observer := &MockObserver{}
	d := NewDispatcher(feed, "chan-1", gw, nil, Options{Observer: observer})
	result := d.RunCycle(context.Background())

	if result.Outcome != OutcomeAborted || result.Stage != StageClassifying {
		t.Errorf("Expected abort at CLASSIFYING, got %s at %s", result.Outcome, result.Stage)
	}
	if result.Err.Feed != "test" {
		t.Errorf("Expected feed name on abort error, got %q", result.Err.Feed)
	}
	if gw.channelCalls != 0 {
		t.Errorf("Expected no channel fetch, got %d", gw.channelCalls)
	}
	if len(observer.results) != 1 {
		t.Errorf("Expected observer to see 1 cycle, got %d", len(observer.results))
	}
}

func TestDispatcherNonReentrant(t *testing.T) {
	gw := NewMockGateway()
	d := NewDispatcher(newSingle("42"), "chan-1", gw, nil, Options{})

	var nested CycleResult
	gw.onSend = func() {
		nested = d.RunCycle(context.Background())
	}

	result := d.RunCycle(context.Background())
	if result.Outcome != OutcomeSent {
		t.Fatalf("Expected sent, got %s", result.Outcome)
	}
	if nested.Outcome != OutcomeSkipped {
		t.Errorf("Expected nested cycle to be skipped, got %s", nested.Outcome)
	}
	if d.Running() {
		t.Error("Expected dispatcher to be idle after the cycle")
	}
}

func TestDispatcherRecoversPanic(t *testing.T) {
	gw := NewMockGateway()
	feed := newSingle("1")
	feed.panicMsg = "boom"

	d := NewDispatcher(feed, "chan-1", gw, nil, Options{})
	result := d.RunCycle(context.Background())

	if result.Outcome != OutcomeAborted || !errors.Is(result.Err, ErrPanic) {
		t.Errorf("Expected panic abort, got %s (%v)", result.Outcome, result.Err)
	}
	if d.Running() {
		t.Error("Expected guard to be released after panic")
	}
}

func TestDispatcherCatalogHaltOnDuplicate(t *testing.T) {
	gw := NewMockGateway()
	gw.messages = []Message{{ID: "m2", Content: "mod 2 file-2"}}
	feed := &MockCatalogFeed{name: "mods", entities: []string{"1", "2", "3"}}

	d := NewDispatcher(feed, "chan-1", gw, nil, Options{HaltOnDuplicate: true})
	result := d.RunCycle(context.Background())

	if result.Sent != 1 || result.Duplicates != 1 {
		t.Errorf("Expected 1 sent and 1 duplicate, got %d/%d", result.Sent, result.Duplicates)
	}
	if len(feed.checked) != 2 {
		t.Errorf("Expected pass to stop after entity 2, checked %v", feed.checked)
	}
	if result.Outcome != OutcomeSent {
		t.Errorf("Expected sent outcome, got %s", result.Outcome)
	}

	// the next pass only visits entities not yet adopted
	feed.checked = nil
	d.RunCycle(context.Background())
	if len(feed.checked) != 1 || feed.checked[0] != "3" {
		t.Errorf("Expected only entity 3 to be checked, got %v", feed.checked)
	}
}

func TestDispatcherCatalogContinueOnDuplicate(t *testing.T) {
	gw := NewMockGateway()
	gw.messages = []Message{{ID: "m2", Content: "mod 2 file-2"}}
	feed := &MockCatalogFeed{name: "mods", entities: []string{"1", "2", "3"}}

	d := NewDispatcher(feed, "chan-1", gw, nil, Options{HaltOnDuplicate: false})
	result := d.RunCycle(context.Background())

	if result.Sent != 2 || result.Duplicates != 1 {
		t.Errorf("Expected 2 sent and 1 duplicate, got %d/%d", result.Sent, result.Duplicates)
	}
}

func TestDispatcherCatalogEntityFailureContinues(t *testing.T) {
	gw := NewMockGateway()
	feed := &MockCatalogFeed{
		name:     "mods",
		entities: []string{"1", "2"},
		failing:  map[string]error{"1": Abort(StageValidating, ErrValidation, nil, "bad payload")},
	}

	d := NewDispatcher(feed, "chan-1", gw, nil, Options{HaltOnDuplicate: true})
	result := d.RunCycle(context.Background())

	if result.Sent != 1 || result.Failed != 1 {
		t.Errorf("Expected 1 sent and 1 failed, got %d/%d", result.Sent, result.Failed)
	}
	if _, ok := d.Cache().Get(Key{Feed: "mods", Sub: "1"}); ok {
		t.Error("Expected failed entity to stay uncached")
	}
}

func TestDispatcherCatalogIdle(t *testing.T) {
	gw := NewMockGateway()
	feed := &MockCatalogFeed{name: "mods", entities: []string{"1"}}
	cache := NewCache()
	cache.Put(Key{Feed: "mods", Sub: "1"}, Entry{LastAnnouncedItemID: "file-1"})

	d := NewDispatcher(feed, "chan-1", gw, cache, Options{})
	result := d.RunCycle(context.Background())

	if result.Outcome != OutcomeIdle {
		t.Errorf("Expected idle, got %s", result.Outcome)
	}
	if gw.channelCalls != 0 {
		t.Errorf("Expected no channel fetch, got %d", gw.channelCalls)
	}
}

func TestDispatcherRecordsAndSchedulesFollowUp(t *testing.T) {
	gw := NewMockGateway()
	lister := &MockReleaseLister{releases: prereleases()}
	feed := NewReleaseFeed(ReleaseFeedConfig{Name: "beta", Owner: "o", Repo: "r", RoleID: "9"}, lister)

	journal := &MockJournal{}
	followUps := &MockFollowUps{}
	d := NewDispatcher(feed, "chan-1", gw, nil, Options{Journal: journal, FollowUps: followUps})

	result := d.RunCycle(context.Background())
	if result.Outcome != OutcomeSent {
		t.Fatalf("Expected sent, got %s (%v)", result.Outcome, result.Err)
	}

	if len(journal.records) != 1 || journal.records[0].ItemID != "200" {
		t.Errorf("Expected journal record for item 200, got %+v", journal.records)
	}
	if len(followUps.followUps) != 1 {
		t.Fatalf("Expected 1 follow-up, got %d", len(followUps.followUps))
	}
	if followUps.followUps[0].MessageID != "msg-1" {
		t.Errorf("Expected follow-up to reply to msg-1, got %s", followUps.followUps[0].MessageID)
	}
}

func TestDispatcherJournalFailureIsNotFatal(t *testing.T) {
	gw := NewMockGateway()
	journal := &MockJournal{err: errors.New("disk full")}

	d := NewDispatcher(newSingle("5"), "chan-1", gw, nil, Options{Journal: journal})
	result := d.RunCycle(context.Background())

	if result.Outcome != OutcomeSent {
		t.Errorf("Expected sent despite journal error, got %s", result.Outcome)
	}
	if entry, _ := d.Cache().Get(Key{Feed: "test"}); entry.LastAnnouncedItemID != "5" {
		t.Errorf("Expected cache to hold item 5, got %+v", entry)
	}
}

func newTopicStreamFeed(getter StreamGetter) *StreamFeed {
	return NewStreamFeed(StreamFeedConfig{
		Name:    "twitch",
		Creator: "Hawk",
		Topic:   TopicRule{Keyword: "stardew", Name: "Stardew Valley"},
		Roles:   TopicRoles{Primary: "p", Other: "o"},
	}, getter)
}

func TestDispatcherStreamTopicSwitchNotReannounced(t *testing.T) {
	started := time.Unix(1700000000, 0)
	getter := &MockStreamGetter{stream: &sources.Stream{ID: "s1", UserLogin: "hawk", Title: "Hanging out", GameName: "Just Chatting", StartedAt: started}}
	gw := NewMockGateway()
	d := NewDispatcher(newTopicStreamFeed(getter), "chan-1", gw, nil, Options{})

	first := d.RunCycle(context.Background())
	if first.Outcome != OutcomeSent {
		t.Fatalf("Expected sent, got %s (%v)", first.Outcome, first.Err)
	}

	getter.stream = &sources.Stream{ID: "s1", UserLogin: "hawk", Title: "Hanging out", GameName: "Stardew Valley", StartedAt: started}

	second := d.RunCycle(context.Background())
	if second.Outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate after category change, got %s", second.Outcome)
	}
	if gw.sendCalls != 1 {
		t.Errorf("Expected stream s1 to be announced once, got %d sends", gw.sendCalls)
	}

	entry, ok := d.Cache().Get(Key{Feed: "twitch", Sub: string(TopicPrimary)})
	if !ok || entry.LastAnnouncedItemID != "s1" {
		t.Fatalf("Expected primary slot to adopt s1, got %+v", entry)
	}
	if entry.LastSentMessage == nil || entry.LastSentMessage.ID != "msg-1" {
		t.Errorf("Expected primary slot to point at msg-1, got %+v", entry.LastSentMessage)
	}
}

func TestDispatcherStreamTopicSwitchFoundInHistory(t *testing.T) {
	started := time.Unix(1700000000, 0)
	stream := &sources.Stream{ID: "s1", UserLogin: "hawk", Title: "Hanging out", GameName: "Just Chatting", StartedAt: started}
	feed := newTopicStreamFeed(&MockStreamGetter{stream: stream})

	earlier, err := feed.Candidate(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	gw := NewMockGateway()
	gw.messages = []Message{{ID: "old", Content: feed.Compose(earlier, Channel{}).Text, AuthorID: "bot"}}

	stream.GameName = "Stardew Valley"
	d := NewDispatcher(feed, "chan-1", gw, nil, Options{
		Resolver: NewResolver([]Strategy{StrategyHistory}, gw, 0, "bot"),
	})

	result := d.RunCycle(context.Background())
	if result.Outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate from history, got %s", result.Outcome)
	}
	if gw.sendCalls != 0 {
		t.Errorf("Expected no send, got %d", gw.sendCalls)
	}
}
