package watcher

import "time"

// State is the durable per-case record driving the resolution protocol.
// It is created by Start, mutated only by that case's own wake-up handler,
// and deleted in full when the protocol terminates.
type State struct {
	CaseID     string     `json:"case_id"`
	RoutingKey string     `json:"routing_key"`
	DedupKey   string     `json:"dedup_key"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	IncidentID string     `json:"incident_id,omitempty"`
	NoteID     string     `json:"note_id,omitempty"`
	FromEmail  string     `json:"from_email,omitempty"`
}

// valid reports whether the mandatory correlation keys are present. A state
// that loads without them is unrecoverable.
func (s *State) valid() bool {
	return s.CaseID != "" && s.RoutingKey != "" && s.DedupKey != ""
}
