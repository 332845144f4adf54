package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrTimeout distinguishes a request that ran out of time from an upstream
// rejection; callers treat the two differently.
var ErrTimeout = errors.New("campaign dispatch timed out")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("campaign API error (%d): %s", e.Status, e.Body)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// DispatchRequest is the wire payload of POST /campaigns/trigger/send.
type DispatchRequest struct {
	CampaignID        string         `json:"campaign_id"`
	TriggerProperties map[string]any `json:"trigger_properties"`
	Broadcast         bool           `json:"broadcast"`
}

// DispatchResult carries the raw campaign API response. Skipped marks the
// no-credentials no-op; callers must not treat a skipped result as a real send.
type DispatchResult struct {
	DispatchID string `json:"dispatch_id"`
	Message    string `json:"message"`
	Skipped    bool   `json:"-"`
	Raw        []byte `json:"-"`
}

func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

// Configured reports whether campaign credentials are present. When false,
// Dispatch is a no-op.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

// Dispatch fires one campaign send. Without configured credentials it returns
// a skipped result and no error, used in environments without a marketing
// integration.
func (c *Client) Dispatch(ctx context.Context, campaignID string, properties map[string]any) (*DispatchResult, error) {
	if !c.Configured() {
		return &DispatchResult{Skipped: true, Message: "campaign credentials not configured"}, nil
	}

	body, err := json.Marshal(DispatchRequest{
		CampaignID:        campaignID,
		TriggerProperties: properties,
		Broadcast:         true,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/campaigns/trigger/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	result := &DispatchResult{Raw: raw}
	if err := json.Unmarshal(raw, result); err != nil {
		// A 2xx with an unparseable body still counts as a send.
		result.Message = strings.TrimSpace(string(raw))
	}
	result.Raw = raw
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
