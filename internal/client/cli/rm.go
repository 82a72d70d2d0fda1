package cli

import (
	"context"
	"fmt"

	"flowsync/pkg/api"
)

func (c *Cli) runRm(_ context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: flowsync rm <flow-id>")
	}

	if _, err := c.requireSession(); err != nil {
		return err
	}

	resolvedID, err := c.queue.ResolveID(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve flow id: %w", err)
	}

	payload := map[string]any{"id": resolvedID}
	if err := c.enqueueOp(api.OpDeleteFlow, payload, ""); err != nil {
		return err
	}

	c.io.Printf("Queued deletion of flow %s\n", resolvedID)
	return nil
}
