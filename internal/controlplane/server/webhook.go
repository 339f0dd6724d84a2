package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type webhookFooter struct {
	Text string `json:"text"`
}

type webhookEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Timestamp   string        `json:"timestamp"`
	Footer      webhookFooter `json:"footer"`
}

type webhookPayload struct {
	Content string         `json:"content"`
	Embeds  []webhookEmbed `json:"embeds"`
}

// handleTestWebhook fires a test alert at the configured Discord webhook
// so the dashboard can verify the URL before a real failure needs it.
func (s *Server) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Username == "" {
		req.Username = "test"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	settings, err := s.loadSettings(ctx)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("load settings: %v", err))
		return
	}
	url, _ := settings["discordWebhook"].(string)
	url = strings.TrimSpace(url)
	if url == "" || !strings.Contains(url, "discord.com/api/webhooks") {
		writeError(w, 400, "no discord webhook configured")
		return
	}

	payload := webhookPayload{
		Content: "@here **PAccountBuilder Test Alert**",
		Embeds: []webhookEmbed{{
			Title:       "Test: " + req.Username,
			Description: "Webhook is wired up correctly.",
			Color:       0x00FF00,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Footer:      webhookFooter{Text: "OSRS Bot Farm"},
		}},
	}
	resp, err := resty.New().SetTimeout(10*time.Second).R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		writeError(w, 502, fmt.Sprintf("webhook post: %v", err))
		return
	}
	if resp.IsError() {
		writeError(w, 502, fmt.Sprintf("webhook post: status %d", resp.StatusCode()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
