package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"flowsync/pkg/api"
)

// Client is the HTTP client for the flowsync server.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// keep credentials across same-host redirects
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetAccessToken sets the bearer token attached to subsequent requests.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login authenticates and returns a token pair.
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a fresh token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	req := api.RefreshRequest{RefreshToken: refreshToken}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", req, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout revokes the current session's refresh tokens.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// SyncBatch submits a batch of pending operations.
func (c *Client) SyncBatch(ctx context.Context, req api.BatchSyncRequest) (*api.BatchSyncResponse, error) {
	var resp api.BatchSyncResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync/batch", req, &resp); err != nil {
		return nil, fmt.Errorf("batch sync request failed: %w", err)
	}
	return &resp, nil
}

// ResolveConflicts submits detected conflicts for server-side resolution.
func (c *Client) ResolveConflicts(ctx context.Context, req api.ResolveConflictsRequest) (*api.ResolveConflictsResponse, error) {
	var resp api.ResolveConflictsResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync/resolve-conflicts", req, &resp); err != nil {
		return nil, fmt.Errorf("resolve conflicts request failed: %w", err)
	}
	return &resp, nil
}

// ListFlows fetches the user's active flows.
func (c *Client) ListFlows(ctx context.Context) (*api.FlowListResponse, error) {
	var resp api.FlowListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/flows", nil, &resp); err != nil {
		return nil, fmt.Errorf("list flows request failed: %w", err)
	}
	return &resp, nil
}

// Changes fetches flows and entries modified after the given unix timestamp,
// tombstones included.
func (c *Client) Changes(ctx context.Context, since int64) (*api.ChangesResponse, error) {
	var resp api.ChangesResponse
	path := fmt.Sprintf("/api/v1/flows/changes?since=%d", since)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("changes request failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
