package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runStatus(_ context.Context) error {
	session, err := c.queue.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if session == nil {
		c.io.Println("Not logged in")
		return nil
	}

	pending, err := c.queue.Count()
	if err != nil {
		return fmt.Errorf("failed to count pending operations: %w", err)
	}

	c.io.Printf("Logged in as: %s\n", session.Username)
	c.io.Printf("Pending operations: %d\n", pending)
	if session.LastSyncUnix > 0 {
		c.io.Printf("Last sync: %s\n", time.Unix(session.LastSyncUnix, 0).Format(time.RFC3339))
	} else {
		c.io.Println("Last sync: never")
	}

	return nil
}
