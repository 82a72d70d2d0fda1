package cli

import (
	"context"
	"fmt"

	"flowsync/internal/client/queue"
	"flowsync/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context) error {
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	tokens, err := c.apiClient.Login(ctx, api.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return err
	}

	// Preserve the last sync cursor across re-logins so the next pull
	// does not refetch everything.
	var lastSync int64
	if prev, err := c.queue.LoadSession(); err == nil && prev != nil {
		lastSync = prev.LastSyncUnix
	}

	session := &queue.Session{
		Username:     username,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		LastSyncUnix: lastSync,
	}
	if err := c.queue.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.apiClient.SetAccessToken(tokens.AccessToken)

	c.io.Printf("Logged in as %s\n", username)
	return nil
}
