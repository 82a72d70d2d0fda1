package cli

import (
	"context"
	"fmt"

	"flowsync/pkg/api"
)

func (c *Cli) runAdd(_ context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: flowsync add <title>")
	}
	title := args[0]

	if _, err := c.requireSession(); err != nil {
		return err
	}

	tempID := newTempID()
	payload := map[string]any{"title": title}

	if err := c.enqueueOp(api.OpCreateFlow, payload, tempID); err != nil {
		return err
	}

	c.io.Printf("Queued flow %q as %s\n", title, tempID)
	c.io.Println("Run 'flowsync sync' to push it to the server.")
	return nil
}
