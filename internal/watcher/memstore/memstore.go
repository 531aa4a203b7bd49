// Package memstore provides an in-memory implementation of watcher.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/casebridge/internal/watcher"
)

// Store holds watcher state in memory. Suitable for dev/testing; state does
// not survive restarts, so production runs want the pgstore.
type Store struct {
	mu      sync.RWMutex
	states  map[string]*watcher.State // case ID -> state
	wakeups map[string]time.Time      // case ID -> single pending wake-up
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		states:  make(map[string]*watcher.State),
		wakeups: make(map[string]time.Time),
	}
}

// Get retrieves the state for a case id. Returns a copy.
func (s *Store) Get(_ context.Context, caseID string) (*watcher.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[caseID]
	if !ok {
		return nil, false, nil
	}
	cp := *st
	if st.ClosedAt != nil {
		t := *st.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp, true, nil
}

// Put stores a copy of the state, keyed by st.CaseID.
func (s *Store) Put(_ context.Context, st *watcher.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	if st.ClosedAt != nil {
		t := *st.ClosedAt
		cp.ClosedAt = &t
	}
	s.states[st.CaseID] = &cp
	return nil
}

// Delete removes the state and any pending wake-up for the case id.
func (s *Store) Delete(_ context.Context, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, caseID)
	delete(s.wakeups, caseID)
	return nil
}

// SetWakeUp schedules the case's wake-up slot, replacing any existing one.
func (s *Store) SetWakeUp(_ context.Context, caseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wakeups[caseID] = at
	return nil
}

// ClearWakeUp unschedules the case's wake-up slot.
func (s *Store) ClearWakeUp(_ context.Context, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wakeups, caseID)
	return nil
}

// Due returns up to limit case ids whose wake-up is at or before now,
// soonest first.
func (s *Store) Due(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type slot struct {
		caseID string
		at     time.Time
	}
	var due []slot
	for id, at := range s.wakeups {
		if !at.After(now) {
			due = append(due, slot{caseID: id, at: at})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]string, len(due))
	for i, d := range due {
		ids[i] = d.caseID
	}
	return ids, nil
}

// WakeUpAt reports the pending wake-up for a case id, if any. Test helper.
func (s *Store) WakeUpAt(caseID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.wakeups[caseID]
	return at, ok
}
