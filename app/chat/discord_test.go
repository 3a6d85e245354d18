package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/iccc-team/hawker-notifier/app/announce"
)

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func newTestDiscord(t *testing.T, handler http.HandlerFunc) *Discord {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, _ := url.Parse(srv.URL)
	d, err := NewDiscord("token", &http.Client{Transport: rewriteTransport{target: target}}, "test-agent")
	if err != nil {
		t.Fatal(err)
	}
	d.session.MaxRestRetries = 0
	return d
}

func TestDiscordFetchChannel(t *testing.T) {
	d := newTestDiscord(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/channels/123") {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bot token" {
			t.Errorf("Expected bot authorization, got %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"id": "123", "name": "announcements", "type": 0}`)
	})

	ch, err := d.FetchChannel(context.Background(), "123")
	if err != nil {
		t.Fatal(err)
	}
	if ch.ID != "123" || ch.Name != "announcements" {
		t.Errorf("Unexpected channel: %+v", ch)
	}
}

func TestDiscordFetchChannelError(t *testing.T) {
	d := newTestDiscord(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "Missing Access", "code": 50001}`)
	})

	if _, err := d.FetchChannel(context.Background(), "123"); err == nil {
		t.Error("Expected error for forbidden channel")
	}
}

func TestDiscordFetchRecentMessagesPaginates(t *testing.T) {
	const total = 150
	var requests []string

	d := newTestDiscord(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := total
		if before := r.URL.Query().Get("before"); before != "" {
			start, _ = strconv.Atoi(before)
		}

		messages := []map[string]any{}
		for id := start - 1; id >= 0 && len(messages) < limit; id-- {
			messages = append(messages, map[string]any{
				"id":         strconv.Itoa(id),
				"channel_id": "c1",
				"content":    fmt.Sprintf("message %d", id),
				"timestamp":  "2024-03-01T00:00:00Z",
				"author":     map[string]any{"id": "bot"},
			})
		}
		json.NewEncoder(w).Encode(messages)
	})

	messages, err := d.FetchRecentMessages(context.Background(), announce.Channel{ID: "c1", Name: "general"}, 120)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 120 {
		t.Fatalf("Expected 120 messages, got %d", len(messages))
	}
	if messages[0].ID != "149" || messages[119].ID != "30" {
		t.Errorf("Expected newest first from 149 to 30, got %s..%s", messages[0].ID, messages[119].ID)
	}
	if messages[0].AuthorID != "bot" {
		t.Errorf("Expected author bot, got %q", messages[0].AuthorID)
	}
	if len(requests) != 2 {
		t.Errorf("Expected 2 page requests, got %d", len(requests))
	}
}

func TestDiscordSendAndReply(t *testing.T) {
	var bodies []map[string]any

	d := newTestDiscord(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/channels/c1/messages") {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)

		fmt.Fprintf(w, `{"id": "m%d", "channel_id": "c1", "content": %q, "timestamp": "2024-03-01T00:00:00Z", "author": {"id": "bot"}}`,
			len(bodies), body["content"])
	})

	sent, err := d.Send(context.Background(), announce.Channel{ID: "c1", Name: "general"}, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if sent.ID != "m1" || sent.Content != "hello" || sent.CreatedAt.IsZero() {
		t.Errorf("Unexpected message: %+v", sent)
	}

	reply, err := d.Reply(context.Background(), "c1", "m1", "done")
	if err != nil {
		t.Fatal(err)
	}
	if reply.ID != "m2" {
		t.Errorf("Expected reply m2, got %s", reply.ID)
	}

	ref, ok := bodies[1]["message_reference"].(map[string]any)
	if !ok || ref["message_id"] != "m1" {
		t.Errorf("Expected reply to reference m1, got %v", bodies[1]["message_reference"])
	}
}
