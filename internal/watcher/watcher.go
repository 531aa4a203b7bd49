package watcher

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/casebridge/internal/sanitize"
	"github.com/linnemanlabs/casebridge/internal/wirespeed"
)

// CaseDirectory resolves a case snapshot from the recent-cases window.
// ok=false means the case is absent from the window, which the watcher treats
// as "still open".
type CaseDirectory interface {
	CaseByID(ctx context.Context, id string, window int) (*wirespeed.Case, bool, error)
}

// Pager is the slice of the paging API the watcher drives.
type Pager interface {
	Resolve(ctx context.Context, routingKey, dedupKey string) error
	FindIncidentID(ctx context.Context, incidentKey string) (string, bool, error)
	CreateNote(ctx context.Context, incidentID, from, content string) (string, error)
	UpdateNote(ctx context.Context, incidentID, noteID, from, content string) error
}

// Config tunes the polling cadence.
type Config struct {
	// PollInterval is the delay between wake-ups while the case is open and
	// after transient failures.
	PollInterval time.Duration

	// SettleWindow is the fixed delay between observing closure and
	// finalizing the incident note, letting late-arriving summary data
	// stabilize.
	SettleWindow time.Duration

	// PageWindow bounds the recent-cases scan.
	PageWindow int

	// Location renders the closure timestamp in note text.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.SettleWindow <= 0 {
		c.SettleWindow = 30 * time.Second
	}
	if c.PageWindow <= 0 {
		c.PageWindow = 50
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Watcher drives the case resolution protocol: poll until the case closes,
// resolve the page immediately, then finalize the incident note after the
// settle window and delete itself.
type Watcher struct {
	store   Store
	dir     CaseDirectory
	pager   Pager
	logger  log.Logger
	metrics *Metrics
	cfg     Config
	now     func() time.Time
}

// New creates a Watcher. logger may be nil; store, dir and pager are required.
func New(store Store, dir CaseDirectory, pager Pager, logger log.Logger, metrics *Metrics, cfg Config) *Watcher {
	if store == nil || dir == nil || pager == nil {
		panic(xerrors.New("watcher: store, case directory and pager are required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Watcher{
		store:   store,
		dir:     dir,
		pager:   pager,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// SetClock replaces the wall clock. Test hook.
func (w *Watcher) SetClock(now func() time.Time) { w.now = now }

// Start begins watching a case. Idempotent: re-invoking for the same case id
// overwrites the correlation keys and reschedules the first wake-up, but
// keeps any closure progress already recorded.
func (w *Watcher) Start(ctx context.Context, caseID, routingKey, dedupKey string) error {
	if caseID == "" || routingKey == "" || dedupKey == "" {
		return fmt.Errorf("watcher: case id, routing key and dedup key are all required")
	}

	st, ok, err := w.store.Get(ctx, caseID)
	if err != nil {
		return fmt.Errorf("watcher: load state: %w", err)
	}
	if !ok {
		st = &State{CaseID: caseID}
	}
	st.RoutingKey = routingKey
	st.DedupKey = dedupKey

	if err := w.store.Put(ctx, st); err != nil {
		return fmt.Errorf("watcher: persist state: %w", err)
	}
	if err := w.store.SetWakeUp(ctx, caseID, w.now().Add(w.cfg.PollInterval)); err != nil {
		return fmt.Errorf("watcher: schedule wake-up: %w", err)
	}

	w.metrics.incStarted()
	w.logger.Info(ctx, "watcher started", "case_id", caseID, "poll_interval", w.cfg.PollInterval)
	return nil
}

// State returns the persisted state for a case id, for introspection.
func (w *Watcher) State(ctx context.Context, caseID string) (*State, bool, error) {
	return w.store.Get(ctx, caseID)
}

// OnWakeUp is the sole driver of state transitions. It never returns an
// error: every failure either re-arms a future wake-up (transient) or ends
// the instance (missing state, termination). Exactly one of those happens on
// every path, so a non-terminal watcher never goes silent.
func (w *Watcher) OnWakeUp(ctx context.Context, caseID string) {
	start := w.now()
	outcome := w.wake(ctx, caseID)
	w.metrics.observeWakeUp(outcome, w.now().Sub(start).Seconds())
}

// Wake-up outcomes, used as metric labels.
const (
	outcomeMissingState    = "missing_state"
	outcomeStoreError      = "store_error"
	outcomeFetchError      = "fetch_error"
	outcomeOpen            = "open"
	outcomeClosureDetected = "closure_detected"
	outcomeSettling        = "settling"
	outcomeTerminated      = "terminated"
)

func (w *Watcher) wake(ctx context.Context, caseID string) string {
	L := w.logger.With("case_id", caseID)

	st, ok, err := w.store.Get(ctx, caseID)
	if err != nil {
		L.Error(ctx, err, "load watcher state")
		w.rearm(ctx, L, caseID, w.now().Add(w.cfg.PollInterval))
		return outcomeStoreError
	}
	if !ok || !st.valid() {
		// Corrupted or manually deleted state. Not recoverable by waiting,
		// so stop firing instead of retrying forever.
		L.Error(ctx, xerrors.New("mandatory watcher keys missing"), "abandoning watcher")
		if err := w.store.ClearWakeUp(ctx, caseID); err != nil {
			L.Error(ctx, err, "clear wake-up for abandoned watcher")
		}
		return outcomeMissingState
	}

	cs, found, err := w.dir.CaseByID(ctx, caseID, w.cfg.PageWindow)
	if err != nil {
		L.Warn(ctx, "case fetch failed, will retry", "error", err)
		w.rearm(ctx, L, caseID, w.now().Add(w.cfg.PollInterval))
		return outcomeFetchError
	}

	// Absent from the recent window means not closed yet.
	if !found || !isClosed(cs.Status) {
		if st.ClosedAt != nil {
			// A closure observed on a flaky read that has since reverted.
			L.Info(ctx, "case reopened before finalization, clearing closure mark")
			st.ClosedAt = nil
			if err := w.store.Put(ctx, st); err != nil {
				L.Error(ctx, err, "clear closure mark")
			}
		}
		status := "absent"
		if found {
			status = cs.Status
		}
		L.Info(ctx, "case still open", "status", status)
		w.rearm(ctx, L, caseID, w.now().Add(w.cfg.PollInterval))
		return outcomeOpen
	}

	if st.ClosedAt == nil {
		return w.onClosureDetected(ctx, L, st, cs)
	}
	return w.finalize(ctx, L, st, cs)
}

// onClosureDetected handles the first wake-up that observes the case closed:
// mark closure durably, locate the incident, drop the placeholder note, and
// resolve the page. The note steps degrade silently when the incident or the
// resolver's email cannot be found; the resolve event is sent regardless.
func (w *Watcher) onClosureDetected(ctx context.Context, L log.Logger, st *State, cs *wirespeed.Case) string {
	closedAt := w.now()
	st.ClosedAt = &closedAt

	// Persist before any external call so a crash mid-step cannot re-run
	// this branch and duplicate the note or the resolve event.
	if err := w.store.Put(ctx, st); err != nil {
		L.Error(ctx, err, "persist closure mark")
		st.ClosedAt = nil
		w.rearm(ctx, L, st.CaseID, w.now().Add(w.cfg.PollInterval))
		return outcomeStoreError
	}

	L.Info(ctx, "case closed, resolving incident", "verdict", cs.Verdict)

	incidentID, found, err := w.pager.FindIncidentID(ctx, st.DedupKey)
	switch {
	case err != nil:
		L.Warn(ctx, "incident lookup failed, skipping note", "error", err)
	case !found:
		L.Info(ctx, "no incident matches dedup key, skipping note")
	default:
		st.IncidentID = incidentID
		if err := w.store.Put(ctx, st); err != nil {
			L.Error(ctx, err, "persist incident id")
		}
	}

	if email := resolverEmail(cs.Logs); email == "" {
		L.Info(ctx, "no resolver email in case logs, skipping note")
	} else if st.IncidentID != "" {
		st.FromEmail = email
		if err := w.store.Put(ctx, st); err != nil {
			L.Error(ctx, err, "persist resolver email")
		}
		content := w.noteContent(email, cs.Verdict, closedAt, placeholderSummary)
		noteID, err := w.pager.CreateNote(ctx, st.IncidentID, email, content)
		if err != nil {
			L.Warn(ctx, "placeholder note creation failed", "error", err)
			w.metrics.incNote("create", false)
		} else {
			st.NoteID = noteID
			if err := w.store.Put(ctx, st); err != nil {
				L.Error(ctx, err, "persist note id")
			}
			w.metrics.incNote("create", true)
			L.Info(ctx, "placeholder note created", "incident_id", st.IncidentID, "note_id", noteID)
		}
	}

	// Best effort and unconditional: the page must clear even if every note
	// step degraded.
	if err := w.pager.Resolve(ctx, st.RoutingKey, st.DedupKey); err != nil {
		L.Error(ctx, err, "send resolve event")
	} else {
		w.metrics.incResolved()
		L.Info(ctx, "resolve event sent")
	}

	w.rearm(ctx, L, st.CaseID, closedAt.Add(w.cfg.SettleWindow))
	return outcomeClosureDetected
}

// finalize runs on wake-ups after closure was marked. It waits out the settle
// window on an absolute deadline, then updates the placeholder note with the
// sanitized case summary and deletes all state.
func (w *Watcher) finalize(ctx context.Context, L log.Logger, st *State, cs *wirespeed.Case) string {
	deadline := st.ClosedAt.Add(w.cfg.SettleWindow)
	if w.now().Before(deadline) {
		// Absolute, not relative: converges no matter how late we woke.
		w.rearm(ctx, L, st.CaseID, deadline)
		return outcomeSettling
	}

	if st.NoteID != "" && st.IncidentID != "" && st.FromEmail != "" {
		content := w.noteContent(st.FromEmail, cs.Verdict, *st.ClosedAt, finalSummary(cs.Summary))
		if err := w.pager.UpdateNote(ctx, st.IncidentID, st.NoteID, st.FromEmail, content); err != nil {
			// Logged only: note finalization never blocks termination.
			L.Warn(ctx, "note finalization failed", "note_id", st.NoteID, "error", err)
			w.metrics.incNote("update", false)
		} else {
			w.metrics.incNote("update", true)
			L.Info(ctx, "incident note finalized", "note_id", st.NoteID)
		}
	}

	if err := w.store.Delete(ctx, st.CaseID); err != nil {
		L.Error(ctx, err, "delete watcher state")
		w.rearm(ctx, L, st.CaseID, w.now().Add(w.cfg.PollInterval))
		return outcomeStoreError
	}

	L.Info(ctx, "watcher terminated")
	return outcomeTerminated
}

func (w *Watcher) rearm(ctx context.Context, L log.Logger, caseID string, at time.Time) {
	if err := w.store.SetWakeUp(ctx, caseID, at); err != nil {
		L.Error(ctx, err, "re-arm wake-up", "at", at)
	}
}

const (
	placeholderSummary = "Awaiting Summary"
	noteTimeLayout     = "1/2/2006, 3:04:05 PM MST"
	closedMarker       = "closed case"
)

func (w *Watcher) noteContent(email, verdict string, closedAt time.Time, summary string) string {
	return fmt.Sprintf("Resolved by %s as %s at %s.\n\nWirespeed Summary: %s",
		email, verdict, closedAt.In(w.cfg.Location).Format(noteTimeLayout), summary)
}

func finalSummary(raw string) string {
	s := sanitize.Text(raw)
	if s == "" {
		return placeholderSummary
	}
	return s
}

var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// resolverEmail scans the case log newest-first for the most recent
// "closed case" line and pulls the actor's email address out of it. Logs are
// small, so a linear scan over a sorted copy is plenty.
func resolverEmail(logs []wirespeed.LogLine) string {
	sorted := make([]wirespeed.LogLine, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	for _, line := range sorted {
		if !strings.Contains(strings.ToLower(line.Log), closedMarker) {
			continue
		}
		if email := emailRe.FindString(line.Log); email != "" {
			return email
		}
	}
	return ""
}

// isClosed matches the terminal case status. The API has emitted both
// spellings over time.
func isClosed(status string) bool {
	switch strings.ToLower(status) {
	case "closed", "close":
		return true
	}
	return false
}
