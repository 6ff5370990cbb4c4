package api

import (
	"context"
	"fmt"
)

// GetSettings fetches the current server-side settings.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	if err := c.get(ctx, "/settings", nil, &s); err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// UpdateSettings writes settings back to the server.
func (c *Client) UpdateSettings(ctx context.Context, s Settings) error {
	var ack ackResponse
	if err := c.post(ctx, "/settings", s, &ack); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("update settings rejected: %s", ack.Message)
	}
	return nil
}

// TestCredentials verifies a credential pair against the broker without
// persisting it.
func (c *Client) TestCredentials(ctx context.Context, s Settings) error {
	var ack ackResponse
	if err := c.post(ctx, "/settings/test_credentials", s, &ack); err != nil {
		return fmt.Errorf("test credentials: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("credentials rejected: %s", ack.Message)
	}
	return nil
}
