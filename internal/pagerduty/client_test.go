package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnqueue(t *testing.T) {
	t.Parallel()

	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	ev := &Event{
		RoutingKey:  "rk",
		EventAction: ActionTrigger,
		DedupKey:    "case-1",
		Payload: &Payload{
			Summary:  "Wirespeed Case: Suspicious login (CASE-42)",
			Severity: "critical",
			Source:   "wirespeed",
		},
	}
	if err := c.Enqueue(context.Background(), ev); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if got.RoutingKey != "rk" || got.EventAction != ActionTrigger || got.DedupKey != "case-1" {
		t.Errorf("event = %+v, want keys round-tripped", got)
	}
	if got.Payload.Severity != "critical" {
		t.Errorf("severity = %q, want critical", got.Payload.Severity)
	}
}

func TestEnqueue_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"invalid event"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	err := c.Enqueue(context.Background(), &Event{RoutingKey: "rk", EventAction: ActionTrigger})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	if err := c.Resolve(context.Background(), "rk", "case-1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.EventAction != ActionResolve {
		t.Errorf("action = %q, want %q", got.EventAction, ActionResolve)
	}
	if got.DedupKey != "case-1" || got.RoutingKey != "rk" {
		t.Errorf("event = %+v, want routing and dedup keys set", got)
	}
}

func TestFindIncidentID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/incidents" {
			t.Errorf("path = %q, want /incidents", r.URL.Path)
		}
		if got := r.URL.Query().Get("incident_key"); got != "case-1" {
			t.Errorf("incident_key = %q, want case-1", got)
		}
		if got := r.Header.Get("Authorization"); got != "Token token=pd-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"incidents":[{"id":"PINC123"}]}`))
	}))
	defer srv.Close()

	c := New("", srv.URL, "pd-token")
	id, ok, err := c.FindIncidentID(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("FindIncidentID: %v", err)
	}
	if !ok || id != "PINC123" {
		t.Errorf("FindIncidentID = (%q, %v), want (PINC123, true)", id, ok)
	}
}

func TestFindIncidentID_NoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"incidents":[]}`))
	}))
	defer srv.Close()

	c := New("", srv.URL, "pd-token")
	id, ok, err := c.FindIncidentID(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("FindIncidentID: %v", err)
	}
	if ok || id != "" {
		t.Errorf("FindIncidentID = (%q, %v), want no match without error", id, ok)
	}
}

func TestCreateNote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/incidents/PINC123/notes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("From"); got != "alice@co.com" {
			t.Errorf("From = %q, want alice@co.com", got)
		}
		var body struct {
			Note struct {
				Content string `json:"content"`
			} `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode note body: %v", err)
		}
		if body.Note.Content != "hello" {
			t.Errorf("content = %q, want hello", body.Note.Content)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"note":{"id":"PNOTE1"}}`))
	}))
	defer srv.Close()

	c := New("", srv.URL, "pd-token")
	noteID, err := c.CreateNote(context.Background(), "PINC123", "alice@co.com", "hello")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if noteID != "PNOTE1" {
		t.Errorf("noteID = %q, want PNOTE1", noteID)
	}
}

func TestUpdateNote(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{"note":{"id":"PNOTE1"}}`))
	}))
	defer srv.Close()

	c := New("", srv.URL, "pd-token")
	if err := c.UpdateNote(context.Background(), "PINC123", "PNOTE1", "alice@co.com", "final"); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/incidents/PINC123/notes/PNOTE1" {
		t.Errorf("request = %s %s, want PUT /incidents/PINC123/notes/PNOTE1", gotMethod, gotPath)
	}
}

func TestUpdateNote_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New("", srv.URL, "pd-token")
	err := c.UpdateNote(context.Background(), "PINC123", "PNOTE1", "alice@co.com", "final")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
}
