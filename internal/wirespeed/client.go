// Package wirespeed is a read-only client for the Wirespeed case API.
package wirespeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Wirespeed API endpoint.
const DefaultBaseURL = "https://api.wirespeed.co"

const httpTimeout = 30 * time.Second

// APIError is a non-success response from the Wirespeed API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wirespeed: api returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Wirespeed case API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Wirespeed client. baseURL falls back to DefaultBaseURL when
// empty.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// Search returns the most recent cases, newest first, bounded by size.
func (c *Client) Search(ctx context.Context, size int) (*SearchResponse, error) {
	body, err := json.Marshal(map[string]int{"size": size})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cases", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

// CaseByID resolves one case's snapshot by scanning the recent-cases window.
// The API does not support polling closure by id at this scale, so we page a
// bounded window and filter client-side. A case absent from the window is
// (nil, false, nil), not an error.
func (c *Client) CaseByID(ctx context.Context, id string, window int) (*Case, bool, error) {
	search, err := c.Search(ctx, window)
	if err != nil {
		return nil, false, err
	}
	for i := range search.Data {
		if search.Data[i].ID == id {
			return &search.Data[i], true, nil
		}
	}
	return nil, false, nil
}

// Get fetches a single case directly by id. Used by ingestion where the id
// comes straight from the notification email.
func (c *Client) Get(ctx context.Context, id string) (*Case, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cases/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out Case
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode case: %w", err)
	}
	return &out, nil
}
