package farmapi

import (
	"context"
	"strings"
)

// Methods against the controlplane server (settings, accounts).

// Settings returns the global dashboard settings blob.
func (c *Client) Settings(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.get(ctx, "/api/settings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DiscordWebhook extracts a usable Discord webhook URL from settings.
// Returns "" when none is configured or the value does not look like a
// Discord webhook.
func (c *Client) DiscordWebhook(ctx context.Context) (string, error) {
	settings, err := c.Settings(ctx)
	if err != nil {
		return "", err
	}
	raw, _ := settings["discordWebhook"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, "discord.com/api/webhooks") {
		return "", nil
	}
	return raw, nil
}

// LaunchConfig is the decrypted launch configuration for one account.
type LaunchConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Plugin   string `json:"plugin"`
	Args     string `json:"args"`
	RSN      string `json:"rsn"`
}

// LaunchConfigFor fetches the launch configuration for username.
// Unknown accounts return (nil, nil).
func (c *Client) LaunchConfigFor(ctx context.Context, username string) (*LaunchConfig, error) {
	var out LaunchConfig
	err := c.get(ctx, "/api/accounts/"+pathEscape(username)+"/launch-config", &out)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
