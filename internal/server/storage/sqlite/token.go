package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flowsync/internal/models"
	"flowsync/internal/server/storage"
)

// SaveRefreshToken stores a new refresh token hash
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT OR REPLACE INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		token.TokenHash,
		token.UserID,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves refresh token by its hash
func (s *Storage) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT token_hash, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = ?
	`

	refreshToken := &models.RefreshToken{}

	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&refreshToken.TokenHash,
		&refreshToken.UserID,
		&refreshToken.ExpiresAt,
		&refreshToken.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return refreshToken, nil
}

// DeleteRefreshToken deletes refresh token by its hash
func (s *Storage) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM refresh_tokens WHERE token_hash = ?`

	result, err := s.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// DeleteUserTokens deletes all refresh tokens for a user
func (s *Storage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	query := `DELETE FROM refresh_tokens WHERE user_id = ?`

	result, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// DeleteExpiredTokens removes all expired tokens
func (s *Storage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < datetime('now')`

	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
