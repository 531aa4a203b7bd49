package bridgeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/casebridge/internal/bridge"
	"github.com/linnemanlabs/casebridge/internal/mailin"
	"github.com/linnemanlabs/casebridge/internal/watcher"
)

type mockService struct {
	receipt *bridge.Receipt
	err     error
	got     *mailin.Email
}

func (m *mockService) HandleInbound(_ context.Context, em *mailin.Email) (*bridge.Receipt, error) {
	m.got = em
	return m.receipt, m.err
}

type mockWatchers struct {
	state *watcher.State
	ok    bool
	err   error
}

func (m *mockWatchers) State(_ context.Context, _ string) (*watcher.State, bool, error) {
	return m.state, m.ok, m.err
}

func newTestRouter(svc BridgeService, watchers WatcherReader) http.Handler {
	r := chi.NewRouter()
	New(nil, svc, watchers).RegisterRoutes(r)
	return r
}

func TestHandleInbound_Accepted(t *testing.T) {
	t.Parallel()

	svc := &mockService{receipt: &bridge.Receipt{ID: "01J", CaseID: "case-1"}}
	r := newTestRouter(svc, &mockWatchers{})

	body := `{"from":"alerts@notifications.wirespeed.co","subject":"New Case","text":"body"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbound", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if svc.got == nil || svc.got.From != "alerts@notifications.wirespeed.co" {
		t.Errorf("service got = %+v, want decoded email", svc.got)
	}

	var receipt bridge.Receipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.ID != "01J" || receipt.CaseID != "case-1" {
		t.Errorf("receipt = %+v, want service receipt echoed", receipt)
	}
}

func TestHandleInbound_InvalidPayload(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&mockService{}, &mockWatchers{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbound", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleInbound_ServiceError(t *testing.T) {
	t.Parallel()

	svc := &mockService{err: errors.New("events api down")}
	r := newTestRouter(svc, &mockWatchers{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbound", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetWatcher(t *testing.T) {
	t.Parallel()

	closedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	watchers := &mockWatchers{
		state: &watcher.State{
			CaseID:     "case-1",
			RoutingKey: "rk",
			DedupKey:   "case-1",
			ClosedAt:   &closedAt,
			IncidentID: "PINC123",
		},
		ok: true,
	}
	r := newTestRouter(&mockService{}, watchers)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/watchers/case-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st watcher.State
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.IncidentID != "PINC123" || st.ClosedAt == nil {
		t.Errorf("state = %+v, want persisted fields", st)
	}
}

func TestGetWatcher_NotFound(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&mockService{}, &mockWatchers{ok: false})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/watchers/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetWatcher_StoreError(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&mockService{}, &mockWatchers{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/watchers/case-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
