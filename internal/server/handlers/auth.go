package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"flowsync/internal/crypto"
	"flowsync/internal/models"
	"flowsync/internal/server/storage"
	"flowsync/internal/validation"
	"flowsync/pkg/api"
)

// AuthHandler handles registration and token endpoints.
type AuthHandler struct {
	logger       *slog.Logger
	userStorage  storage.UserStorage
	tokenStorage storage.TokenStorage
	jwtConfig    JWTConfig
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(logger *slog.Logger, userStorage storage.UserStorage, tokenStorage storage.TokenStorage, jwtConfig JWTConfig) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		userStorage:  userStorage,
		tokenStorage: tokenStorage,
		jwtConfig:    jwtConfig,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode register request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", req.Username), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validation.ValidatePassword(req.Password); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID := uuid.New().String()

	user := &models.User{
		ID:           userID,
		Username:     req.Username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	if err := h.userStorage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "user already exists", slog.String("username", req.Username))
			h.sendError(w, "username already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("username", req.Username),
		slog.String("user_id", userID))

	resp := api.RegisterResponse{
		UserID:  userID,
		Message: "User registered successfully",
	}

	h.sendJSON(w, resp, http.StatusCreated)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", req.Username), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Password == "" {
		h.sendError(w, "password is required", http.StatusBadRequest)
		return
	}

	user, err := h.userStorage.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "login failed: user not found", slog.String("username", req.Username))
			h.sendError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := crypto.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		h.logger.WarnContext(ctx, "login failed: invalid password", slog.String("username", req.Username))
		h.sendError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig, user.ID, user.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	refreshToken, expiresAt, err := GenerateRefreshToken(h.jwtConfig)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate refresh token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	token := &models.RefreshToken{
		TokenHash: crypto.HashToken(refreshToken),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	if err := h.tokenStorage.SaveRefreshToken(ctx, token); err != nil {
		h.logger.ErrorContext(ctx, "failed to save refresh token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.userStorage.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// non-fatal
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "user logged in successfully",
		slog.String("username", req.Username),
		slog.String("user_id", user.ID))

	resp := api.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token is rotated:
// the old one is invalidated and a new pair is returned.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode refresh request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken == "" {
		h.sendError(w, "refresh_token is required", http.StatusBadRequest)
		return
	}

	tokenHash := crypto.HashToken(req.RefreshToken)

	storedToken, err := h.tokenStorage.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.WarnContext(ctx, "refresh token not found")
			h.sendError(w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get refresh token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if time.Now().After(storedToken.ExpiresAt) {
		h.logger.WarnContext(ctx, "refresh token expired", slog.String("user_id", storedToken.UserID))
		h.sendError(w, "refresh token expired", http.StatusUnauthorized)
		return
	}

	user, err := h.userStorage.GetUserByID(ctx, storedToken.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	newAccessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig, user.ID, user.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	newRefreshToken, newExpiresAt, err := GenerateRefreshToken(h.jwtConfig)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate refresh token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.tokenStorage.DeleteRefreshToken(ctx, tokenHash); err != nil {
		h.logger.WarnContext(ctx, "failed to delete old refresh token", slog.Any("error", err))
	}

	newToken := &models.RefreshToken{
		TokenHash: crypto.HashToken(newRefreshToken),
		UserID:    user.ID,
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now(),
	}

	if err := h.tokenStorage.SaveRefreshToken(ctx, newToken); err != nil {
		h.logger.ErrorContext(ctx, "failed to save refresh token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "tokens refreshed successfully", slog.String("user_id", user.ID))

	resp := api.TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    expiresIn,
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Logout handles POST /api/v1/auth/logout. Logging out revokes every
// refresh token the user holds; clients carry no device identity, so
// a logout on one device ends the session on all of them.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		h.sendError(w, "Authorization header is required", http.StatusUnauthorized)
		return
	}

	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) || authHeader[:len(bearerPrefix)] != bearerPrefix {
		h.sendError(w, "invalid Authorization header format", http.StatusUnauthorized)
		return
	}

	accessToken := authHeader[len(bearerPrefix):]
	if accessToken == "" {
		h.sendError(w, "access token is required", http.StatusUnauthorized)
		return
	}

	claims, err := ValidateAccessToken(h.jwtConfig, accessToken)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid access token", slog.Any("error", err))
		h.sendError(w, "invalid or expired access token", http.StatusUnauthorized)
		return
	}

	deletedCount, err := h.tokenStorage.DeleteUserTokens(ctx, claims.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete user tokens", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user logged out successfully",
		slog.String("user_id", claims.UserID),
		slog.Int("tokens_deleted", deletedCount))

	w.WriteHeader(http.StatusNoContent)
}

// sendJSON writes a JSON response.
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError writes a JSON error response.
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}
