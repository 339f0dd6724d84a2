package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSettings struct {
	url string
	err error
}

func (f *fakeSettings) DiscordWebhook(context.Context) (string, error) {
	return f.url, f.err
}

func TestAlertSinkLoadsWebhook(t *testing.T) {
	a := NewAlertSink(&fakeSettings{url: "https://discord.com/api/webhooks/1/x"})
	a.retryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a.loadLoop(ctx)

	if a.URL() != "https://discord.com/api/webhooks/1/x" {
		t.Errorf("webhook not loaded, got %q", a.URL())
	}
}

func TestAlertSinkExhaustsRetries(t *testing.T) {
	a := NewAlertSink(&fakeSettings{err: errors.New("server down")})
	a.retryDelay = time.Millisecond
	a.maxAttempts = 3

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a.loadLoop(ctx)

	if !a.exhausted() {
		t.Error("sink should be exhausted after maxAttempts failures")
	}
	if a.URL() != "" {
		t.Errorf("no URL should be set, got %q", a.URL())
	}
}

func TestAlertSendWithoutURLIsDropped(t *testing.T) {
	a := NewAlertSink(&fakeSettings{})
	a.Send("alice", "boom", 0) // must not panic or block
}

func TestAlertSendPostsPayload(t *testing.T) {
	var posts int32
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAlertSink(&fakeSettings{})
	a.mu.Lock()
	a.webhookURL = srv.URL
	a.mu.Unlock()

	a.Send("alice", "Failed to execute task Mine iron", 1234)

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&posts) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&posts) != 1 {
		t.Fatal("expected exactly one delivery attempt")
	}
	if got.Content != "@here **PAccountBuilder Error**" {
		t.Errorf("unexpected content: %q", got.Content)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "Bot Failed: alice" || e.Color != 0xFF0000 {
		t.Errorf("unexpected embed: %+v", e)
	}
	foundPID := false
	for _, f := range e.Fields {
		if f.Name == "PID" && f.Value == "1234" {
			foundPID = true
		}
	}
	if !foundPID {
		t.Errorf("PID field missing: %+v", e.Fields)
	}
}
