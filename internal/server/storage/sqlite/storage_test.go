package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setupTestStorage creates an in-memory storage with migrations applied
func setupTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	ctx := context.Background()
	s, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}

	return s, cleanup
}

// Helper function
func timePtr(t time.Time) *time.Time {
	return &t
}
