// Package identity talks to the managed auth provider's admin API. The
// provider has no direct lookup-by-email, only paginated enumeration, so
// FindUserByEmail pages through the account list comparing lowercased emails.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/therunreport/paywall/pkg/paywall"
)

const (
	defaultPageSize    = 1000
	defaultHTTPTimeout = 10 * time.Second

	endpointAdminUsers = "/auth/v1/admin/users"
	endpointInvite     = "/auth/v1/invite"
)

// User is an account in the auth provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Directory is the lookup-and-provision surface the handlers depend on.
// *Client implements it directly; CachedDirectory adds a Redis memo in front.
type Directory interface {
	// FindUserByEmail returns the account matching email (already trimmed and
	// lowercased by the caller), or paywall.ErrUserNotFound.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// InviteUserByEmail provisions a new account for email and returns it.
	// Duplicate invites for the same email are rejected by the provider's
	// own email-uniqueness enforcement.
	InviteUserByEmail(ctx context.Context, email string) (*User, error)
}

// Config holds the admin client configuration.
type Config struct {
	// BaseURL is the auth provider's base URL.
	BaseURL string

	// ServiceRoleKey is the admin credential, sent as both bearer token and
	// apikey header.
	ServiceRoleKey string

	// PageSize is the enumeration page size (default 1000).
	PageSize int

	// HTTPClient is an optional HTTP client. If nil, a default client with a
	// 10s timeout is used.
	HTTPClient *http.Client

	// Metrics is an optional metrics collector. If nil, metrics are ignored.
	Metrics paywall.Metrics
}

// Client calls the auth provider's admin API.
type Client struct {
	baseURL    string
	serviceKey string
	pageSize   int
	httpClient *http.Client
	metrics    paywall.Metrics
}

// NewClient creates a new admin API client. Returns
// paywall.ErrNotConfigured when the base URL or credential is missing so the
// caller can degrade gracefully instead of crashing.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	serviceKey := strings.TrimSpace(config.ServiceRoleKey)
	if baseURL == "" || serviceKey == "" {
		return nil, paywall.ErrNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &paywall.NoopMetrics{}
	}

	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		pageSize:   pageSize,
		httpClient: httpClient,
		metrics:    metrics,
	}, nil
}

type listUsersResponse struct {
	Users []User `json:"users"`
}

// FindUserByEmail pages through the account list until a lowercased email
// match is found or a short page signals the end of data.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, paywall.ErrUserNotFound
	}

	for page := 1; ; page++ {
		users, err := c.listUsers(ctx, page)
		if err != nil {
			return nil, err
		}

		for i := range users {
			if strings.ToLower(strings.TrimSpace(users[i].Email)) == email {
				return &users[i], nil
			}
		}

		// A short page means the listing is exhausted.
		if len(users) < c.pageSize {
			return nil, paywall.ErrUserNotFound
		}
	}
}

func (c *Client) listUsers(ctx context.Context, page int) ([]User, error) {
	url := fmt.Sprintf("%s%s?page=%d&per_page=%d", c.baseURL, endpointAdminUsers, page, c.pageSize)

	body, err := c.do(ctx, http.MethodGet, url, endpointAdminUsers, nil)
	if err != nil {
		return nil, err
	}

	var payload listUsersResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse user listing: %w", err)
	}
	return payload.Users, nil
}

// InviteUserByEmail provisions a new account via the provider's invite
// endpoint and returns the created user.
func (c *Client) InviteUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: empty email", paywall.ErrIdentityAPIError)
	}

	reqBody, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invite request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+endpointInvite, endpointInvite, reqBody)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse invite response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: invite returned no user id", paywall.ErrIdentityAPIError)
	}
	return &user, nil
}

// do executes a single admin API request. No retries - a failure surfaces
// immediately to the caller.
func (c *Client) do(ctx context.Context, method, url, endpoint string, reqBody []byte) ([]byte, error) {
	start := time.Now()

	var bodyReader io.Reader = http.NoBody
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordIdentityAPICall(endpoint, "error")
		return nil, fmt.Errorf("%w: %v", paywall.ErrIdentityAPIError, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	c.metrics.RecordIdentityAPICall(endpoint, strconv.Itoa(res.StatusCode))
	c.metrics.RecordIdentityAPICallDuration(endpoint, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d, body: %s", paywall.ErrIdentityAPIError, res.StatusCode, string(body))
	}
	return body, nil
}
