// Package identity provides a client for the VidHub auth service.
// It resolves a session token to the signed-in user and revokes sessions.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// Client for interacting with the auth service.
type Client struct {
	base   string       // Base URL of the auth service
	apiKey string       // Project API key sent with every request
	hc     *http.Client // HTTP client with custom configuration
}

// ErrUnauthorized is returned when the auth service rejects the token.
var ErrUnauthorized = errors.New("session not recognised by auth service")

// New creates a new auth-service client with the specified base URL.
func New(baseURL, apiKey string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		apiKey: apiKey,
		hc:     &http.Client{Transport: transport, Timeout: 3 * time.Second},
	}
}

// userRecord is the auth service's user payload.
type userRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Client) request(ctx context.Context, method, path, token string) (*http.Response, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	return c.hc.Do(req)
}

// Authenticate returns the user owning token.
func (c *Client) Authenticate(ctx context.Context, token string) (*model.User, error) {
	resp, err := c.request(ctx, http.MethodGet, "/user", token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var rec userRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return nil, err
		}
		if rec.ID == "" {
			return nil, errors.New("auth service returned a user without id")
		}
		return &model.User{ID: rec.ID, Email: rec.Email, Role: rec.Role, CreatedAt: rec.CreatedAt}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("auth user lookup failed: %s", resp.Status)
	}
}

// SignOut revokes the session behind token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	resp, err := c.request(ctx, http.MethodPost, "/logout", token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized:
		return nil
	default:
		return fmt.Errorf("auth sign-out failed: %s", resp.Status)
	}
}
