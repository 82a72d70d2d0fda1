package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runLogout(ctx context.Context) error {
	if _, err := c.requireSession(); err != nil {
		return err
	}

	// Revoke server-side tokens best effort; the local session is cleared
	// even when the server is unreachable.
	if err := c.apiClient.Logout(ctx); err != nil {
		c.io.Printf("Warning: server logout failed: %v\n", err)
	}

	if err := c.queue.ClearSession(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	c.io.Println("Logged out")
	return nil
}
