package farmapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLaunchConfigForUnknownAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"account not found"}`))
	}))
	defer srv.Close()

	lc, err := New(srv.URL).LaunchConfigFor(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if lc != nil {
		t.Errorf("expected nil config, got %+v", lc)
	}
}

func TestLaunchConfigFor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts/alice/launch-config" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"username":"alice","password":"pw","plugin":"miner"}`))
	}))
	defer srv.Close()

	lc, err := New(srv.URL).LaunchConfigFor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if lc.Password != "pw" || lc.Plugin != "miner" {
		t.Errorf("unexpected config: %+v", lc)
	}
}

func TestDiscordWebhookValidation(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"discordWebhook":"https://discord.com/api/webhooks/1/x"}`, "https://discord.com/api/webhooks/1/x"},
		{`{"discordWebhook":"https://example.com/hook"}`, ""},
		{`{"discordWebhook":"  "}`, ""},
		{`{}`, ""},
	}
	for _, tc := range cases {
		body := tc.body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))
		url, err := New(srv.URL).DiscordWebhook(context.Background())
		srv.Close()
		if err != nil {
			t.Fatalf("settings fetch failed: %v", err)
		}
		if url != tc.want {
			t.Errorf("body %s: expected %q, got %q", tc.body, tc.want, url)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Bots(context.Background())
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if IsNotFound(err) {
		t.Error("500 must not read as not-found")
	}
}
