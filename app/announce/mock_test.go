package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iccc-team/hawker-notifier/app/sources"
)

// MockGateway is an in-memory chat channel.
type MockGateway struct {
	mu sync.Mutex

	channel    *Channel
	channelErr error
	historyErr error
	sendErr    error
	selfID     string

	messages      []Message
	channelCalls  int
	historyCalls  int
	sendCalls     int
	onSend        func()
	nextMessageID int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		channel: &Channel{ID: "chan-1", Name: "announcements"},
		selfID:  "bot",
	}
}

func (m *MockGateway) FetchChannel(ctx context.Context, channelID string) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelCalls++
	if m.channelErr != nil {
		return nil, m.channelErr
	}
	return m.channel, nil
}

func (m *MockGateway) FetchRecentMessages(ctx context.Context, channel Channel, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls++
	if m.historyErr != nil {
		return nil, m.historyErr
	}

	// newest first
	out := make([]Message, 0, limit)
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.messages[i])
	}
	return out, nil
}

func (m *MockGateway) Send(ctx context.Context, channel Channel, text string) (Message, error) {
	m.mu.Lock()
	m.sendCalls++
	hook := m.onSend
	m.mu.Unlock()

	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return Message{}, m.sendErr
	}

	m.nextMessageID++
	msg := Message{
		ID:        fmt.Sprintf("msg-%d", m.nextMessageID),
		ChannelID: channel.ID,
		Content:   text,
		AuthorID:  m.selfID,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *MockGateway) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// MockSingleFeed yields a fixed candidate or error.
type MockSingleFeed struct {
	name      string
	candidate Candidate
	err       error
	calls     int
	panicMsg  string
}

func (f *MockSingleFeed) Name() string { return f.name }

func (f *MockSingleFeed) Candidate(ctx context.Context) (Candidate, error) {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.candidate, f.err
}

func (f *MockSingleFeed) Compose(c Candidate, channel Channel) Announcement {
	return Announcement{Channel: channel, Text: "announce " + string(c.Item.ID)}
}

// MockCatalogFeed yields one candidate per entity.
type MockCatalogFeed struct {
	name     string
	entities []string
	failing  map[string]error
	checked  []string
}

func (f *MockCatalogFeed) Name() string { return f.name }

func (f *MockCatalogFeed) Entities(ctx context.Context) ([]string, error) {
	return f.entities, nil
}

func (f *MockCatalogFeed) Candidate(ctx context.Context, entity string) (Candidate, error) {
	f.checked = append(f.checked, entity)
	if err, ok := f.failing[entity]; ok {
		return Candidate{}, err
	}
	return Candidate{Item: RemoteItem{ID: Identity("file-" + entity)}, Sub: entity}, nil
}

func (f *MockCatalogFeed) Compose(c Candidate, channel Channel) Announcement {
	return Announcement{Channel: channel, Text: "mod " + c.Sub + " " + string(c.Item.ID)}
}

type MockJournal struct {
	records []Record
	err     error
}

func (j *MockJournal) RecordAnnouncement(ctx context.Context, record Record) error {
	j.records = append(j.records, record)
	return j.err
}

type MockFollowUps struct {
	followUps []FollowUp
}

func (s *MockFollowUps) ScheduleFollowUp(ctx context.Context, f FollowUp) error {
	s.followUps = append(s.followUps, f)
	return nil
}

type MockObserver struct {
	results []CycleResult
}

func (o *MockObserver) ObserveCycle(result CycleResult) {
	o.results = append(o.results, result)
}

type MockReleaseLister struct {
	releases []sources.Release
	err      error
}

func (m *MockReleaseLister) ListReleases(ctx context.Context, owner, repo string) ([]sources.Release, error) {
	return m.releases, m.err
}

type MockModClient struct {
	files   map[int]*sources.ModFiles
	tracked []int
	err     error
}

func (m *MockModClient) GetModFiles(ctx context.Context, game string, modID int) (*sources.ModFiles, error) {
	if m.err != nil {
		return nil, m.err
	}
	payload, ok := m.files[modID]
	if !ok {
		return nil, errors.New("not found")
	}
	return payload, nil
}

func (m *MockModClient) ListTrackedMods(ctx context.Context, game string) ([]int, error) {
	return m.tracked, m.err
}

func modFiles(files ...sources.ModFile) *sources.ModFiles {
	return &sources.ModFiles{Files: &files}
}
