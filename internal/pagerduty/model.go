package pagerduty

// EventAction is the lifecycle verb sent to the Events API.
type EventAction string

const (
	ActionTrigger EventAction = "trigger"
	ActionResolve EventAction = "resolve"
)

// Payload carries the alert fields of a trigger event.
type Payload struct {
	Summary       string         `json:"summary"`
	Timestamp     string         `json:"timestamp,omitempty"`
	Source        string         `json:"source"`
	Severity      string         `json:"severity"`
	Component     string         `json:"component,omitempty"`
	Group         string         `json:"group,omitempty"`
	Class         string         `json:"class,omitempty"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

// Link is a related resource attached to an event.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Event is an Events API v2 enqueue request. Resolve events carry only the
// routing key, dedup key and action.
type Event struct {
	Payload     *Payload    `json:"payload,omitempty"`
	RoutingKey  string      `json:"routing_key"`
	EventAction EventAction `json:"event_action"`
	DedupKey    string      `json:"dedup_key"`
	Links       []Link      `json:"links,omitempty"`
}
