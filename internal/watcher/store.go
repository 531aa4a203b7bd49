package watcher

import (
	"context"
	"time"
)

// Store is the persistence interface for watcher state and wake-up slots.
// Each case id owns one record and at most one pending wake-up; setting a new
// wake-up replaces any existing one.
type Store interface {
	// Get loads the state for a case id. ok=false means no record exists.
	Get(ctx context.Context, caseID string) (*State, bool, error)

	// Put upserts the state for st.CaseID, leaving the wake-up slot alone.
	Put(ctx context.Context, st *State) error

	// Delete removes the state and any pending wake-up for the case id.
	Delete(ctx context.Context, caseID string) error

	// SetWakeUp schedules the case's single wake-up slot, replacing any
	// previously scheduled time. The state record must already exist.
	SetWakeUp(ctx context.Context, caseID string, at time.Time) error

	// ClearWakeUp unschedules the case's wake-up slot, keeping the state.
	ClearWakeUp(ctx context.Context, caseID string) error

	// Due returns up to limit case ids whose wake-up slot is at or before
	// now, soonest first.
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
}
