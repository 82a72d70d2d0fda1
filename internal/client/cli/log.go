package cli

import (
	"context"
	"fmt"
	"time"

	"flowsync/pkg/api"
)

func (c *Cli) runLog(_ context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: flowsync log <flow-id> <date> [note]")
	}
	flowID, date := args[0], args[1]

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}

	if _, err := c.requireSession(); err != nil {
		return err
	}

	// Flows created offline carry a temp id; rewrite it when the server
	// id is already known, otherwise the queue rewrites it at sync time.
	resolvedID, err := c.queue.ResolveID(flowID)
	if err != nil {
		return fmt.Errorf("failed to resolve flow id: %w", err)
	}

	payload := map[string]any{
		"flow_id":    resolvedID,
		"entry_date": date,
		"status":     "done",
	}
	if len(args) > 2 {
		payload["note"] = args[2]
	}

	if err := c.enqueueOp(api.OpCreateEntry, payload, newTempID()); err != nil {
		return err
	}

	c.io.Printf("Queued entry for flow %s on %s\n", resolvedID, date)
	return nil
}
