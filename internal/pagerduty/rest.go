package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type noteBody struct {
	Note struct {
		Content string `json:"content"`
	} `json:"note"`
}

func wrapNote(content string) noteBody {
	var b noteBody
	b.Note.Content = content
	return b
}

func (c *Client) restRequest(ctx context.Context, method, path string, body []byte, from string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.restURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token token="+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	// Note mutations require the acting user's identity.
	if from != "" {
		req.Header.Set("From", from)
	}
	return c.httpClient.Do(req)
}

// FindIncidentID looks up the incident correlated to the given incident key
// (the Events API dedup key). At most one match is returned; ok=false means
// no incident carries the key.
func (c *Client) FindIncidentID(ctx context.Context, incidentKey string) (string, bool, error) {
	path := "/incidents?incident_key=" + url.QueryEscape(incidentKey)
	resp, err := c.restRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", false, fmt.Errorf("find incident: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyLen))
		return "", false, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out struct {
		Incidents []struct {
			ID string `json:"id"`
		} `json:"incidents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode incidents: %w", err)
	}
	if len(out.Incidents) == 0 {
		return "", false, nil
	}
	return out.Incidents[0].ID, true, nil
}

// CreateNote adds a note to an incident on behalf of from, returning the new
// note's id.
func (c *Client) CreateNote(ctx context.Context, incidentID, from, content string) (string, error) {
	body, err := json.Marshal(wrapNote(content))
	if err != nil {
		return "", fmt.Errorf("marshal note: %w", err)
	}

	resp, err := c.restRequest(ctx, http.MethodPost, "/incidents/"+incidentID+"/notes", body, from)
	if err != nil {
		return "", fmt.Errorf("create note: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyLen))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out struct {
		Note struct {
			ID string `json:"id"`
		} `json:"note"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode note: %w", err)
	}
	return out.Note.ID, nil
}

// UpdateNote replaces the content of an existing incident note.
func (c *Client) UpdateNote(ctx context.Context, incidentID, noteID, from, content string) error {
	body, err := json.Marshal(wrapNote(content))
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}

	resp, err := c.restRequest(ctx, http.MethodPut, "/incidents/"+incidentID+"/notes/"+noteID, body, from)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodyLen))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
