package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
)

func TestUserStorage_CreateUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tests := []struct {
		wantError error
		user      *models.User
		name      string
	}{
		{
			name: "create new user successfully",
			user: &models.User{
				ID:           uuid.New().String(),
				Username:     "testuser1",
				PasswordHash: "hash123",
				CreatedAt:    time.Now(),
				LastLogin:    nil,
			},
			wantError: nil,
		},
		{
			name: "create user with last login",
			user: &models.User{
				ID:           uuid.New().String(),
				Username:     "testuser2",
				PasswordHash: "hash456",
				CreatedAt:    time.Now(),
				LastLogin:    timePtr(time.Now()),
			},
			wantError: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(ctx, tt.user)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)

				// Verify user was created
				retrieved, err := s.GetUserByID(ctx, tt.user.ID)
				require.NoError(t, err)
				assert.Equal(t, tt.user.ID, retrieved.ID)
				assert.Equal(t, tt.user.Username, retrieved.Username)
				assert.Equal(t, tt.user.PasswordHash, retrieved.PasswordHash)
			}
		})
	}
}

func TestUserStorage_CreateUser_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	// Create first user
	user1 := &models.User{
		ID:           uuid.New().String(),
		Username:     "duplicate",
		PasswordHash: "hash1",
		CreatedAt:    time.Now(),
	}
	err := s.CreateUser(ctx, user1)
	require.NoError(t, err)

	// Try to create second user with same username
	user2 := &models.User{
		ID:           uuid.New().String(),
		Username:     "duplicate", // Same username
		PasswordHash: "hash2",
		CreatedAt:    time.Now(),
	}
	err = s.CreateUser(ctx, user2)
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
}

func TestUserStorage_GetUserByUsername(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	// Create test user
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "findme",
		PasswordHash: "hash123",
		CreatedAt:    time.Now(),
		LastLogin:    timePtr(time.Now()),
	}
	err := s.CreateUser(ctx, user)
	require.NoError(t, err)

	tests := []struct {
		wantError error
		name      string
		username  string
	}{
		{
			name:      "get existing user",
			username:  "findme",
			wantError: nil,
		},
		{
			name:      "get non-existent user",
			username:  "notfound",
			wantError: storage.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieved, err := s.GetUserByUsername(ctx, tt.username)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, retrieved)
			} else {
				require.NoError(t, err)
				assert.Equal(t, user.ID, retrieved.ID)
				assert.Equal(t, user.Username, retrieved.Username)
				assert.Equal(t, user.PasswordHash, retrieved.PasswordHash)
				assert.NotNil(t, retrieved.LastLogin)
			}
		})
	}
}

func TestUserStorage_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	// Create test user
	userID := uuid.New().String()
	user := &models.User{
		ID:           userID,
		Username:     "logintest",
		PasswordHash: "hash123",
		CreatedAt:    time.Now(),
		LastLogin:    nil,
	}
	err := s.CreateUser(ctx, user)
	require.NoError(t, err)

	tests := []struct {
		loginTime time.Time
		wantError error
		name      string
		userID    string
	}{
		{
			name:      "update last login for existing user",
			userID:    userID,
			loginTime: time.Now(),
			wantError: nil,
		},
		{
			name:      "update last login for non-existent user",
			userID:    "nonexistent",
			loginTime: time.Now(),
			wantError: storage.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateLastLogin(ctx, tt.userID, tt.loginTime)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)

				// Verify last login was updated
				retrieved, err := s.GetUserByID(ctx, tt.userID)
				require.NoError(t, err)
				require.NotNil(t, retrieved.LastLogin)
				// Compare times with 1 second tolerance
				assert.WithinDuration(t, tt.loginTime, *retrieved.LastLogin, time.Second)
			}
		})
	}
}
