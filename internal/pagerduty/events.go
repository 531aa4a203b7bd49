// Package pagerduty sends events and manages incident notes against the
// PagerDuty Events and REST APIs.
package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default endpoints for the two PagerDuty API surfaces.
const (
	DefaultEventsURL = "https://events.pagerduty.com/v2/enqueue"
	DefaultRESTURL   = "https://api.pagerduty.com"
	httpTimeout      = 30 * time.Second
	maxErrBodyLen    = 512
)

// APIError is a non-success response from either PagerDuty API surface.
// Callers treat any APIError as retryable-by-rescheduling.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pagerduty: api returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to PagerDuty. The events URL needs no credential beyond the
// per-event routing key; the REST surface uses the API token.
type Client struct {
	eventsURL  string
	restURL    string
	apiToken   string
	httpClient *http.Client
}

// New creates a PagerDuty client. Empty URLs fall back to the production
// endpoints. apiToken may be empty, in which case only the Events API
// operations are usable.
func New(eventsURL, restURL, apiToken string) *Client {
	if eventsURL == "" {
		eventsURL = DefaultEventsURL
	}
	if restURL == "" {
		restURL = DefaultRESTURL
	}
	return &Client{
		eventsURL: eventsURL,
		restURL:   restURL,
		apiToken:  apiToken,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// Enqueue sends an event to the Events API. Any 2xx is success.
func (c *Client) Enqueue(ctx context.Context, ev *Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyLen))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// Resolve sends a resolve event for the given routing and dedup keys,
// closing whatever incident the matching trigger opened.
func (c *Client) Resolve(ctx context.Context, routingKey, dedupKey string) error {
	return c.Enqueue(ctx, &Event{
		RoutingKey:  routingKey,
		EventAction: ActionResolve,
		DedupKey:    dedupKey,
	})
}
