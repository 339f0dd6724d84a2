package farmapi

import (
	"context"
	"net/url"
	"time"
)

// Methods against the bot agent (start/stop/list/logs/stats).

// BotSummary is one row of the agent's bot list.
type BotSummary struct {
	Username  string     `json:"username"`
	Status    string     `json:"status"`
	PID       *int       `json:"pid"`
	StartTime *time.Time `json:"startTime"`
}

func (c *Client) Bots(ctx context.Context) ([]BotSummary, error) {
	var out []BotSummary
	if err := c.get(ctx, "/api/bots", &out); err != nil {
		return nil, err
	}
	return out, nil
}

type StartBotRequest struct {
	Username string `json:"username"`
	Plugin   string `json:"plugin,omitempty"`
	Args     string `json:"args,omitempty"`
}

type StartBotResult struct {
	Success bool `json:"success"`
	PID     int  `json:"pid"`
}

func (c *Client) StartBot(ctx context.Context, req StartBotRequest) (*StartBotResult, error) {
	var out StartBotResult
	if err := c.post(ctx, "/agent/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StopBot(ctx context.Context, username string) error {
	return c.post(ctx, "/agent/stop", map[string]string{"username": username}, nil)
}

// BotLogs is the agent's pull-based log/status view of one account.
type BotLogs struct {
	Logs        string `json:"logs"`
	Status      string `json:"status"`
	CurrentTask string `json:"currentTask"`
}

func (c *Client) Logs(ctx context.Context, username string) (*BotLogs, error) {
	var out BotLogs
	if err := c.get(ctx, "/api/logs/"+pathEscape(username), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats is passed through untyped; the controlplane proxies it verbatim.
func (c *Client) Stats(ctx context.Context, username string) (map[string]any, error) {
	out := map[string]any{}
	if err := c.get(ctx, "/api/stats/"+pathEscape(username), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}
