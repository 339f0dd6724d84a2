package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestHTTP(t *testing.T, accounts AccountSource) http.Handler {
	t.Helper()
	sup := newTestSupervisor(t, accounts)
	hub := NewHub(time.Minute, sup.Snapshot)
	t.Cleanup(hub.Close)
	sup.AttachHub(hub)
	return NewServer(sup, hub).Router()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStartEndpointUnknownAccount(t *testing.T) {
	h := newTestHTTP(t, &fakeAccounts{})
	w := doRequest(t, h, "POST", "/agent/start", `{"username":"ghost"}`)
	if w.Code != 404 {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStartEndpointNoPassword(t *testing.T) {
	h := newTestHTTP(t, &fakeAccounts{configs: map[string]*AccountConfig{
		"alice": {Username: "alice"},
	}})
	w := doRequest(t, h, "POST", "/agent/start", `{"username":"alice"}`)
	if w.Code != 400 {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStartEndpointBadBody(t *testing.T) {
	h := newTestHTTP(t, &fakeAccounts{})
	w := doRequest(t, h, "POST", "/agent/start", `not json`)
	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
	w = doRequest(t, h, "POST", "/agent/start", `{}`)
	if w.Code != 400 {
		t.Errorf("missing username should be 400, got %d", w.Code)
	}
}

func TestStopEndpointUnknownSucceeds(t *testing.T) {
	h := newTestHTTP(t, &fakeAccounts{})
	w := doRequest(t, h, "POST", "/agent/stop", `{"username":"ghost"}`)
	if w.Code != 200 {
		t.Errorf("stop is idempotent, expected 200, got %d", w.Code)
	}
}

func TestBotsEndpointEmpty(t *testing.T) {
	h := newTestHTTP(t, &fakeAccounts{})
	w := doRequest(t, h, "GET", "/api/bots", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var bots []BotInfo
	if err := json.Unmarshal(w.Body.Bytes(), &bots); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(bots) != 0 {
		t.Errorf("expected empty list, got %v", bots)
	}
}

func TestLogsEndpoint(t *testing.T) {
	sup := newTestSupervisor(t, &fakeAccounts{})
	sup.logs.Append("alice", "Executing task: Mine iron")
	h := NewServer(sup, NewHub(time.Minute, sup.Snapshot)).Router()

	w := doRequest(t, h, "GET", "/api/logs/alice", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view LogView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if view.CurrentTask != "Mine iron" {
		t.Errorf("expected derived task, got %q", view.CurrentTask)
	}
	if view.Status != StatusStopped {
		t.Errorf("unknown bot reads stopped, got %v", view.Status)
	}
	if !strings.Contains(view.Logs, "Mine iron") {
		t.Errorf("log text missing: %q", view.Logs)
	}
}

func TestStatsEndpointUnknown(t *testing.T) {
	h := newTestHTTP(t, &fakeAccounts{})
	w := doRequest(t, h, "GET", "/api/stats/ghost", "")
	if w.Code != 404 {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHTTP(t, &fakeAccounts{})
	w := doRequest(t, h, "GET", "/healthz", "")
	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
