package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

const (
	defaultScanInterval = time.Second
	defaultScanBatch    = 64
)

// WakeHandler receives due wake-ups. Implemented by *Watcher; an interface so
// the runner can be tested without the full protocol behind it.
type WakeHandler interface {
	OnWakeUp(ctx context.Context, caseID string)
}

// Runner turns persisted wake-up slots into handler invocations. It scans the
// store for due slots on a fixed tick and dispatches each to its own
// goroutine, with at most one in-flight invocation per case id. Different
// cases run concurrently; the same case never does, which is the only mutual
// exclusion the protocol needs.
type Runner struct {
	store    Store
	handler  WakeHandler
	logger   log.Logger
	interval time.Duration
	batch    int

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewRunner creates a Runner scanning every interval (default 1s).
func NewRunner(store Store, handler WakeHandler, logger log.Logger, interval time.Duration) *Runner {
	if logger == nil {
		logger = log.Nop()
	}
	if interval <= 0 {
		interval = defaultScanInterval
	}
	return &Runner{
		store:    store,
		handler:  handler,
		logger:   logger,
		interval: interval,
		batch:    defaultScanBatch,
		inflight: make(map[string]struct{}),
	}
}

// Start begins the scan loop and returns a stop function that cancels the
// loop and waits for in-flight wake-ups to finish. Slots left in the past
// when the process dies simply fire again after restart; the protocol is
// idempotent against that.
func (r *Runner) Start(ctx context.Context) func() {
	rctx, cancel := context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(rctx)
	return func() {
		cancel()
		r.wg.Wait()
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.dispatch(ctx, now)
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, now time.Time) {
	ids, err := r.store.Due(ctx, now, r.batch)
	if err != nil {
		r.logger.Error(ctx, err, "scan due wake-ups")
		return
	}

	for _, id := range ids {
		if !r.claim(id) {
			continue
		}
		r.wg.Add(1)
		go func(caseID string) {
			defer r.wg.Done()
			defer r.release(caseID)
			r.handler.OnWakeUp(ctx, caseID)
		}(id)
	}
}

func (r *Runner) claim(caseID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[caseID]; busy {
		return false
	}
	r.inflight[caseID] = struct{}{}
	return true
}

func (r *Runner) release(caseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, caseID)
}
