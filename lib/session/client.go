// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foredeck-sh/foredeck/lib/netutil"
	"github.com/foredeck-sh/foredeck/lib/secret"
)

// Auth endpoint paths, relative to the platform base URL.
const (
	loginPath   = "/api/v1/auth/login"
	refreshPath = "/api/v1/auth/refresh"
	whoamiPath  = "/api/v1/auth/whoami"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the platform origin (e.g., "https://api.foredeck.sh").
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client speaks the platform's auth endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an unauthenticated auth client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("session: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("session: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// LoginError is a non-2xx response from an auth endpoint. Callers
// branch on StatusCode: 401/403 mean bad credentials or a spent
// refresh token, anything else is a server or transport problem.
type LoginError struct {
	StatusCode int
	Message    string
}

func (e *LoginError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("session: HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("session: HTTP %d: %s", e.StatusCode, e.Message)
}

// Identity is the authenticated identity reported by the whoami
// endpoint.
type Identity struct {
	Handle    string `json:"handle"`
	Workspace string `json:"workspace,omitempty"`
}

// tokenResponse is the body shape shared by the login and refresh
// endpoints.
type tokenResponse struct {
	Handle       string    `json:"handle"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Login authenticates with handle and password, returning a Session
// bound to this client's base URL. The password Buffer is read but not
// closed — the caller retains ownership.
func (c *Client) Login(ctx context.Context, handle string, password *secret.Buffer) (*Session, error) {
	if handle == "" {
		return nil, fmt.Errorf("session: handle is required for login")
	}
	if password == nil {
		return nil, fmt.Errorf("session: password is required for login")
	}

	// Password is converted to string at the JSON serialization
	// boundary. The heap copy is short-lived — it exists only during
	// the HTTP call.
	request := struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}{
		Handle:   handle,
		Password: password.String(),
	}

	body, err := c.doRequest(ctx, http.MethodPost, loginPath, "", request)
	if err != nil {
		return nil, fmt.Errorf("session: login failed: %w", err)
	}

	sess, err := c.sessionFromTokens(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("logged in", "handle", sess.Handle)
	return sess, nil
}

// Refresh redeems a refresh token for a rotated token pair. The spent
// refresh token is invalid afterwards; the returned Session carries
// its replacement.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("session: refresh token is required")
	}

	request := struct {
		RefreshToken string `json:"refresh_token"`
	}{
		RefreshToken: refreshToken,
	}

	body, err := c.doRequest(ctx, http.MethodPost, refreshPath, "", request)
	if err != nil {
		return nil, fmt.Errorf("session: refresh failed: %w", err)
	}

	return c.sessionFromTokens(body)
}

// WhoAmI verifies an access token and returns the identity it belongs
// to.
func (c *Client) WhoAmI(ctx context.Context, accessToken string) (*Identity, error) {
	body, err := c.doRequest(ctx, http.MethodGet, whoamiPath, accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("session: whoami failed: %w", err)
	}

	var identity Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("session: parsing whoami response: %w", err)
	}
	return &identity, nil
}

func (c *Client) sessionFromTokens(body []byte) (*Session, error) {
	var tokens tokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("session: parsing token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("session: token response has no access_token")
	}

	return &Session{
		Handle:       tokens.Handle,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		BaseURL:      c.baseURL,
	}, nil
}

// doRequest performs an HTTP request to the platform and returns the
// response body. On 2xx, returns the body. On anything else, returns a
// *LoginError with the platform's error message. bearer may be empty
// for unauthenticated endpoints.
func (c *Client) doRequest(ctx context.Context, method, path, bearer string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadBody(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	return nil, &LoginError{
		StatusCode: response.StatusCode,
		Message:    errorMessage(responseBody),
	}
}

// errorMessage extracts the platform's {"error": "..."} message from
// an error response, falling back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
