// Package bridgeapi exposes the inbound email webhook and watcher
// introspection over HTTP.
package bridgeapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/casebridge/internal/bridge"
	"github.com/linnemanlabs/casebridge/internal/mailin"
	"github.com/linnemanlabs/casebridge/internal/watcher"
)

// BridgeService defines the ingestion operation the API needs.
type BridgeService interface {
	HandleInbound(ctx context.Context, em *mailin.Email) (*bridge.Receipt, error)
}

// WatcherReader exposes persisted watcher state for introspection.
type WatcherReader interface {
	State(ctx context.Context, caseID string) (*watcher.State, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	svc      BridgeService
	watchers WatcherReader
}

// New creates a new API handler.
func New(logger log.Logger, svc BridgeService, watchers WatcherReader) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("bridge service is required"))
	}
	if watchers == nil {
		panic(xerrors.New("watcher reader is required"))
	}
	return &API{
		logger:   logger,
		svc:      svc,
		watchers: watchers,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/inbound", a.handleInbound)
		r.Get("/watchers/{caseID}", a.handleGetWatcher)
	})
}

func (a *API) handleInbound(w http.ResponseWriter, r *http.Request) {
	var em mailin.Email
	if err := json.NewDecoder(r.Body).Decode(&em); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	receipt, err := a.svc.HandleInbound(r.Context(), &em)
	if err != nil {
		a.logger.Error(r.Context(), err, "inbound email handling failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("casebridge.case.id", receipt.CaseID),
		attribute.Bool("casebridge.receipt.skipped", receipt.Skipped),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(receipt)
}

func (a *API) handleGetWatcher(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("casebridge.case.id", caseID))

	st, ok, err := a.watchers.State(r.Context(), caseID)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to load watcher state", "case_id", caseID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}
