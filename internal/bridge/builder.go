package bridge

import (
	"time"

	"github.com/linnemanlabs/casebridge/internal/pagerduty"
	"github.com/linnemanlabs/casebridge/internal/sanitize"
	"github.com/linnemanlabs/casebridge/internal/wirespeed"
)

const (
	caseURLPrefix = "https://app.wirespeed.co/cases/"

	alertSource    = "Wirespeed"
	alertComponent = "Security Operations"
	alertGroup     = "Wirespeed Alerts"
	alertClass     = "Security Case"
)

// BuildAlert composes the trigger event for a fully fetched case. The dedup
// key is the case id, so the watcher's later resolve event lands on the same
// incident.
func BuildAlert(routingKey string, cs *wirespeed.Case) *pagerduty.Event {
	name := cs.Name
	if name == "" {
		name = cs.Title
	}

	notes := sanitize.Text(cs.Notes)
	if notes == "" {
		notes = "None"
	}

	return &pagerduty.Event{
		Payload: &pagerduty.Payload{
			Summary:   "Wirespeed Case: " + name + " (" + cs.SID + ")",
			Timestamp: cs.CreatedAt.Format(time.RFC3339),
			Source:    alertSource,
			Severity:  "critical",
			Component: alertComponent,
			Group:     alertGroup,
			Class:     alertClass,
			CustomDetails: map[string]any{
				"priority":       cs.Severity,
				"caseID":         cs.ID,
				"caseSID":        cs.SID,
				"containsVIP":    cs.ContainsVIP,
				"containsHVA":    cs.ContainsHVA,
				"containsMobile": cs.ContainsMobile,
				"status":         cs.Status,
				"summary":        sanitize.Text(cs.Summary),
				"verdict":        cs.Verdict,
				"notes":          notes,
				"teamID":         cs.TeamID,
				"contained":      cs.Contained,
				"test_mode":      cs.TestMode,
			},
		},
		RoutingKey:  routingKey,
		EventAction: pagerduty.ActionTrigger,
		DedupKey:    cs.ID,
		Links: []pagerduty.Link{{
			Href: caseURLPrefix + cs.ID,
			Text: "View Case in Wirespeed",
		}},
	}
}

// BuildFailsafeAlert composes a degraded trigger event from the raw email
// fields when the case API is unreachable. It carries the same dedup key as
// the full alert would, so resolution still matches, and flags itself as
// incomplete via the info detail.
func BuildFailsafeAlert(routingKey, caseID, emailSubject, emailBody, apiError string, now time.Time) *pagerduty.Event {
	summary := emailSubject
	if summary == "" {
		summary = "New Alert"
	}

	return &pagerduty.Event{
		Payload: &pagerduty.Payload{
			Summary:   "Wirespeed Case: " + summary + " (Failsafe)",
			Timestamp: now.Format(time.RFC3339),
			Source:    alertSource,
			Severity:  "critical",
			Component: alertComponent,
			Group:     alertGroup,
			Class:     alertClass,
			CustomDetails: map[string]any{
				"priority":     "critical",
				"caseID":       caseID,
				"emailSubject": emailSubject,
				"emailBody":    emailBody,
				"apiError":     apiError,
				"info": "Failed to fetch full case details from Wirespeed API. " +
					"This is a failsafe alert containing extracted information from the notification email.",
			},
		},
		RoutingKey:  routingKey,
		EventAction: pagerduty.ActionTrigger,
		DedupKey:    caseID,
		Links: []pagerduty.Link{{
			Href: caseURLPrefix + caseID,
			Text: "View Case in Wirespeed",
		}},
	}
}
