package wirespeed

import "time"

// LogLine is one timestamped entry in a case's activity log.
type LogLine struct {
	Log       string    `json:"log"`
	Timestamp time.Time `json:"timestamp"`
	Debug     bool      `json:"debug"`
}

// Case is the snapshot of a security case as returned by the Wirespeed API.
// It is re-fetched on every poll and never persisted; only the fields the
// bridge reads are modeled.
type Case struct {
	ID             string    `json:"id"`
	SID            string    `json:"sid"`
	TeamID         string    `json:"teamId"`
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	Severity       string    `json:"severity"`
	Verdict        string    `json:"verdict"`
	Summary        string    `json:"summary"`
	Notes          string    `json:"notes"`
	Contained      bool      `json:"contained"`
	ContainsVIP    bool      `json:"containsVIP"`
	ContainsHVA    bool      `json:"containsHVA"`
	ContainsMobile bool      `json:"containsMobile"`
	TestMode       bool      `json:"testMode"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Logs           []LogLine `json:"logs"`
}

// SearchResponse is the envelope returned by the case search endpoint.
type SearchResponse struct {
	Data       []Case `json:"data"`
	TotalCount int    `json:"totalCount"`
}
