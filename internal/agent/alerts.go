package agent

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var alertLog = logrus.WithField("component", "alerts")

// SettingsSource yields the externally-configured alert destination. The
// controlplane settings API is the production implementation.
type SettingsSource interface {
	DiscordWebhook(ctx context.Context) (string, error)
}

// AlertSink posts failure notifications to a Discord webhook. Its own
// configuration is eventually consistent: fetched after boot with a bounded
// retry budget, then permanently disabled until restart if exhausted.
// Dispatch itself is fire-and-forget and never retried.
type AlertSink struct {
	source SettingsSource
	client *resty.Client

	initialDelay   time.Duration
	retryDelay     time.Duration
	rekickInterval time.Duration
	maxAttempts    int

	mu         sync.Mutex
	webhookURL string
	attempts   int
}

func NewAlertSink(source SettingsSource) *AlertSink {
	return &AlertSink{
		source:         source,
		client:         resty.New().SetTimeout(10 * time.Second),
		initialDelay:   3 * time.Second,
		retryDelay:     2 * time.Second,
		rekickInterval: 15 * time.Second,
		maxAttempts:    30,
	}
}

// Run drives webhook configuration loading until ctx is canceled. A 15s
// ticker re-kicks loading while the URL is still unset, matching the
// dashboard's historical behavior.
func (a *AlertSink) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(a.initialDelay):
	}
	ticker := time.NewTicker(a.rekickInterval)
	defer ticker.Stop()
	for {
		if a.URL() == "" && !a.exhausted() {
			a.loadLoop(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *AlertSink) loadLoop(ctx context.Context) {
	for a.URL() == "" {
		if a.exhausted() {
			alertLog.Warn("max retries reached, Discord alerts disabled until restart")
			return
		}
		attempt := a.bumpAttempts()
		url, err := a.source.DiscordWebhook(ctx)
		if err == nil && url != "" {
			a.mu.Lock()
			a.webhookURL = url
			a.attempts = 0
			a.mu.Unlock()
			alertLog.Info("Discord webhook loaded")
			return
		}
		if err == nil {
			alertLog.Debugf("webhook load attempt %d/%d: not configured yet", attempt, a.maxAttempts)
		} else {
			alertLog.WithError(err).Warnf("webhook load failed (attempt %d/%d)", attempt, a.maxAttempts)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.retryDelay):
		}
	}
}

func (a *AlertSink) URL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.webhookURL
}

func (a *AlertSink) exhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts >= a.maxAttempts
}

func (a *AlertSink) bumpAttempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	return a.attempts
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      discordFooter  `json:"footer"`
}

type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

// Send dispatches one failure alert. Exactly one attempt per call: with no
// destination configured the attempt is silently dropped, and a delivery
// failure is logged but never retried and never blocks the caller.
func (a *AlertSink) Send(username, failure string, pid int) {
	url := a.URL()
	if url == "" {
		alertLog.WithField("username", username).Debug("no webhook configured, alert dropped")
		return
	}
	pidValue := "N/A"
	if pid > 0 {
		pidValue = strconv.Itoa(pid)
	}
	payload := discordPayload{
		Content: "@here **PAccountBuilder Error**",
		Embeds: []discordEmbed{{
			Title:       "Bot Failed: " + username,
			Description: "```" + failure + "```",
			Color:       0xFF0000,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Fields: []discordField{
				{Name: "Status", Value: "Stopped", Inline: true},
				{Name: "PID", Value: pidValue, Inline: true},
			},
			Footer: discordFooter{Text: "OSRS Bot Farm"},
		}},
	}
	go func() {
		resp, err := a.client.R().SetBody(payload).Post(url)
		if err != nil {
			alertLog.WithError(err).WithField("username", username).Error("Discord send failed")
			return
		}
		if resp.IsError() {
			alertLog.WithFields(logrus.Fields{
				"username": username,
				"status":   resp.StatusCode(),
			}).Error("Discord rejected alert")
			return
		}
		alertLog.WithField("username", username).Info("Discord alert sent")
	}()
}
