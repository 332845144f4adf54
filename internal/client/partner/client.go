package partner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxPageSize is the upstream cap on the users page size; larger requests are
// silently clamped.
const MaxPageSize = 10

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	retryBudget  int
	retryBackoff time.Duration
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("partner API error (%d): %s", e.Status, e.Body)
}

// Transient reports whether the status is worth retrying: 408, 429 and 5xx.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusRequestTimeout ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= 500
}

// IsTransient classifies err per the retry policy: transport failures and
// per-request timeouts are transient, HTTP 408/429/5xx are transient, every
// other HTTP error is permanent. An http.Client timeout matches
// context.DeadlineExceeded on current toolchains, so whether the caller's own
// deadline expired cannot be decided from err alone; the retry loop decides
// that from its context.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return true
}

// IsPermanent reports whether err is a non-retryable upstream rejection.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.Transient()
}

func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://www.swush.com/syndicate"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   httpClient,
		retryBudget:  3,
		retryBackoff: time.Second,
	}
}

// SetRetryPolicy overrides the users-page retry budget and backoff base.
func (c *Client) SetRetryPolicy(budget int, backoff time.Duration) {
	if budget >= 0 {
		c.retryBudget = budget
	}
	if backoff > 0 {
		c.retryBackoff = backoff
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// GetGame fetches game metadata including the full round list.
func (c *Client) GetGame(ctx context.Context, subsite, gameKey string) (*GameInfo, error) {
	path := fmt.Sprintf("/%s/games/%s", url.PathEscape(subsite), url.PathEscape(gameKey))
	body, err := c.doRequest(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var info GameInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode game payload: %w", err)
	}
	return &info, nil
}

// GetElements fetches the full element catalog of a game.
func (c *Client) GetElements(ctx context.Context, subsite, gameKey string) ([]Element, error) {
	path := fmt.Sprintf("/%s/games/%s/elements", url.PathEscape(subsite), url.PathEscape(gameKey))
	body, err := c.doRequest(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var elements []Element
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("failed to decode elements payload: %w", err)
	}
	return elements, nil
}

// GetUsersPage fetches one page of per-user stats. It does not retry; callers
// that need resilience use GetUsersPageWithRetry.
func (c *Client) GetUsersPage(ctx context.Context, subsite, gameKey string, page, pageSize int) (*UsersPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))
	query.Set("includeUserteams", "true")
	path := fmt.Sprintf("/%s/games/%s/users", url.PathEscape(subsite), url.PathEscape(gameKey))
	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var usersPage UsersPage
	if err := json.Unmarshal(body, &usersPage); err != nil {
		return nil, fmt.Errorf("failed to decode users payload: %w", err)
	}
	return &usersPage, nil
}

// GetUsersPageWithRetry retries transient failures up to the configured retry
// budget with exponential backoff (base, 2*base, 4*base, ...). Permanent
// failures and context cancellation return immediately.
func (c *Client) GetUsersPageWithRetry(ctx context.Context, subsite, gameKey string, page, pageSize int) (*UsersPage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryBudget; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		usersPage, err := c.GetUsersPage(ctx, subsite, gameKey, page, pageSize)
		if err == nil {
			return usersPage, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// VerifyKey checks the configured API key against the partner's lightweight
// key-check endpoint. A 401/403 means the key is bad, not that the call failed.
func (c *Client) VerifyKey(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, "/apikeycheck", nil)
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		return false, nil
	}
	return false, err
}
