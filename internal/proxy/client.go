// Package proxy is a small HTTP client for an AgentAPI proxy endpoint.
// The CLI uses it to verify a profile's connection settings and to show
// what is running behind the proxy.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTimeout = 10 * time.Second

// Session is one agent session as reported by the proxy.
type Session struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// Client talks to one AgentAPI proxy with one bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(endpoint, token string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported proxy endpoint scheme %q", u.Scheme)
	}
	return &Client{
		baseURL:    strings.TrimRight(endpoint, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Ping checks that the proxy is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("proxy rejected the token: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("proxy status check failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}

// ListSessions returns the agent sessions currently known to the proxy.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	resp, err := c.get(ctx, "/sessions")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("listing sessions failed: %s; body: %s", resp.Status, string(b))
	}

	var sessions []Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decoding sessions: %w", err)
	}
	return sessions, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

// TokenExpiry reads the expiry claim out of a JWT bearer token without
// verifying its signature; only the server can verify it, we just want to
// warn the user before a token goes stale.
func TokenExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing token: %w", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("reading token expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no expiry claim")
	}
	return exp.Time, nil
}
