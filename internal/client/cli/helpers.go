package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"flowsync/internal/client/queue"
	"flowsync/pkg/api"
)

// requireSession loads the persisted session and attaches its access token
// to the API client.
func (c *Cli) requireSession() (*queue.Session, error) {
	session, err := c.queue.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("not logged in, run 'flowsync login' first")
	}

	c.apiClient.SetAccessToken(session.AccessToken)
	return session, nil
}

// enqueueOp builds an operation with a fresh idempotency key and appends it
// to the offline queue.
func (c *Cli) enqueueOp(opType string, payload any, tempID string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	op := api.Operation{
		IdempotencyKey: uuid.New().String(),
		OpType:         opType,
		Payload:        data,
		TempID:         tempID,
	}

	if err := c.queue.Enqueue(op); err != nil {
		return fmt.Errorf("failed to queue operation: %w", err)
	}

	return nil
}

func newTempID() string {
	return "tmp-" + uuid.New().String()
}
