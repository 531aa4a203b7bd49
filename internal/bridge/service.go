// Package bridge turns an inbound case-notification email into a paging
// incident and hands the case off to the resolution watcher.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/casebridge/internal/mailin"
	"github.com/linnemanlabs/casebridge/internal/pagerduty"
	"github.com/linnemanlabs/casebridge/internal/wirespeed"
)

// CaseFetcher fetches one case directly by id.
type CaseFetcher interface {
	Get(ctx context.Context, id string) (*wirespeed.Case, error)
}

// EventSender enqueues events against the paging API.
type EventSender interface {
	Enqueue(ctx context.Context, ev *pagerduty.Event) error
}

// WatcherStarter begins resolution tracking for a case.
type WatcherStarter interface {
	Start(ctx context.Context, caseID, routingKey, dedupKey string) error
}

// Receipt is the outcome of handling one inbound email.
type Receipt struct {
	ID       string `json:"id,omitempty"`
	CaseID   string `json:"case_id,omitempty"`
	Failsafe bool   `json:"failsafe,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Service is the business boundary for ingestion.
type Service struct {
	cases      CaseFetcher
	pager      EventSender
	watchers   WatcherStarter
	routingKey string
	logger     log.Logger
	metrics    *Metrics
	now        func() time.Time
}

// NewService creates the ingestion service. logger may be nil.
func NewService(cases CaseFetcher, pager EventSender, watchers WatcherStarter, routingKey string, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		cases:      cases,
		pager:      pager,
		watchers:   watchers,
		routingKey: routingKey,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// SetClock replaces the wall clock. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// HandleInbound processes one notification email: verify the sender, extract
// the case id, trigger the initial page (full or failsafe), and start the
// resolution watcher. Errors are returned only when a retry by the mail
// provider could succeed; everything else is a skip.
func (s *Service) HandleInbound(ctx context.Context, em *mailin.Email) (*Receipt, error) {
	if !mailin.FromWirespeed(em.From) {
		s.logger.Info(ctx, "ignoring email from unexpected sender", "from", em.From)
		s.metrics.incInbound("ignored_sender")
		return &Receipt{Skipped: true, Reason: "sender not allowed"}, nil
	}

	caseID := mailin.ExtractCaseID(em.Text, em.HTML)
	if caseID == "" {
		s.logger.Warn(ctx, "no case link in email body", "subject", em.Subject)
		s.metrics.incInbound("no_case_link")
		return &Receipt{Skipped: true, Reason: "no case link in body"}, nil
	}

	L := s.logger.With("case_id", caseID)

	var ev *pagerduty.Event
	var failsafe bool
	cs, err := s.cases.Get(ctx, caseID)
	if err != nil {
		// Degraded mode: page from what the email gave us. The dedup key is
		// still the case id, so resolution will match either way.
		L.Error(ctx, err, "case fetch failed, building failsafe alert")
		ev = BuildFailsafeAlert(s.routingKey, caseID, em.Subject, em.Text, err.Error(), s.now())
		failsafe = true
	} else {
		ev = BuildAlert(s.routingKey, cs)
	}

	if err := s.pager.Enqueue(ctx, ev); err != nil {
		s.metrics.incInbound("trigger_error")
		return nil, fmt.Errorf("send trigger event: %w", err)
	}

	// The paging API dedups triggers by key, so a retry after a watcher
	// start failure cannot double-page.
	if err := s.watchers.Start(ctx, caseID, s.routingKey, caseID); err != nil {
		s.metrics.incInbound("watcher_error")
		return nil, fmt.Errorf("start watcher: %w", err)
	}

	result := "accepted"
	if failsafe {
		result = "accepted_failsafe"
	}
	s.metrics.incInbound(result)

	receipt := &Receipt{
		ID:       ulid.Make().String(),
		CaseID:   caseID,
		Failsafe: failsafe,
	}
	L.Info(ctx, "inbound email bridged", "receipt_id", receipt.ID, "failsafe", failsafe)
	return receipt, nil
}
