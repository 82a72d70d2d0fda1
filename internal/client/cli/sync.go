package cli

import (
	"context"
	"fmt"

	"flowsync/pkg/api"
)

// maxSyncBatch caps how many queued operations are pushed per request,
// matching the server's default batch limit.
const maxSyncBatch = 100

func (c *Cli) runSync(ctx context.Context) error {
	session, err := c.requireSession()
	if err != nil {
		return err
	}

	// Rotate the token pair up front so a long-lived session survives
	// access token expiry.
	tokens, err := c.apiClient.Refresh(ctx, session.RefreshToken)
	if err != nil {
		return fmt.Errorf("session expired, run 'flowsync login' again: %w", err)
	}
	session.AccessToken = tokens.AccessToken
	session.RefreshToken = tokens.RefreshToken
	if err := c.queue.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	c.apiClient.SetAccessToken(tokens.AccessToken)

	pushed, failed, err := c.pushPending(ctx)
	if err != nil {
		return err
	}

	changes, err := c.apiClient.Changes(ctx, session.LastSyncUnix)
	if err != nil {
		return fmt.Errorf("failed to pull changes: %w", err)
	}

	session.LastSyncUnix = changes.CurrentTimestamp
	if err := c.queue.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Printf("Pushed %d operations (%d failed)\n", pushed, failed)
	c.io.Printf("Pulled %d flows, %d entries\n", len(changes.Flows), len(changes.Entries))
	return nil
}

// pushPending drains the offline queue in batches. Operations that fail
// server-side are reported and dropped: retrying an unchanged operation
// cannot succeed, and the idempotency key would shadow a corrected retry.
func (c *Cli) pushPending(ctx context.Context) (pushed, failed int, err error) {
	for {
		ops, err := c.queue.Pending()
		if err != nil {
			return pushed, failed, fmt.Errorf("failed to read queue: %w", err)
		}
		if len(ops) == 0 {
			return pushed, failed, nil
		}

		batch := ops
		if len(batch) > maxSyncBatch {
			batch = batch[:maxSyncBatch]
		}

		resp, err := c.apiClient.SyncBatch(ctx, api.BatchSyncRequest{Operations: batch})
		if err != nil {
			return pushed, failed, fmt.Errorf("sync failed, operations kept queued: %w", err)
		}
		if !resp.Success {
			return pushed, failed, fmt.Errorf("sync aborted by server: %s", resp.Error)
		}

		mappings := make(map[string]string)
		for _, res := range resp.Data.Results {
			switch res.Status {
			case api.StatusSuccess, api.StatusDuplicate:
				pushed++
				if res.TempID != "" && res.ServerID != "" {
					mappings[res.TempID] = res.ServerID
				}
			default:
				failed++
				c.io.Printf("Operation rejected: %s\n", res.Error)
			}
		}

		if err := c.queue.Ack(len(batch), mappings); err != nil {
			return pushed, failed, fmt.Errorf("failed to ack queue: %w", err)
		}
	}
}
