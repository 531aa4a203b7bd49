// Package cfg holds casebridge's application-level configuration.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Config adds app-specific configuration fields to the common
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	WebhookToken          string
	WirespeedAPIURL       string
	WirespeedAPIToken     string
	PagerDutyEventsURL    string
	PagerDutyAPIURL       string
	PagerDutyRoutingKey   string
	PagerDutyAPIToken     string
	DatabaseURL           string
	PollIntervalSeconds   int
	SettleSeconds         int
	CaseWindow            int
	ScanIntervalSeconds   int
	NoteTimezone          string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.WebhookToken, "webhook-token", "", "bearer token the inbound mail webhook must present")
	fs.StringVar(&c.WirespeedAPIURL, "wirespeed-api-url", "", "Wirespeed API base URL (empty = production)")
	fs.StringVar(&c.WirespeedAPIToken, "wirespeed-api-token", "", "bearer token for the Wirespeed case API")
	fs.StringVar(&c.PagerDutyEventsURL, "pagerduty-events-url", "", "PagerDuty Events API URL (empty = production)")
	fs.StringVar(&c.PagerDutyAPIURL, "pagerduty-api-url", "", "PagerDuty REST API base URL (empty = production)")
	fs.StringVar(&c.PagerDutyRoutingKey, "pagerduty-routing-key", "", "PagerDuty Events API routing key for trigger/resolve events")
	fs.StringVar(&c.PagerDutyAPIToken, "pagerduty-api-token", "", "PagerDuty REST API token for incident notes (empty = note steps skipped)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory watcher store)")
	fs.IntVar(&c.PollIntervalSeconds, "poll-interval-seconds", 30, "delay between case polls while a case is open (1..3600)")
	fs.IntVar(&c.SettleSeconds, "settle-seconds", 30, "delay between observing closure and finalizing the incident note (1..3600)")
	fs.IntVar(&c.CaseWindow, "case-window", 50, "recent-cases window scanned per poll (1..500)")
	fs.IntVar(&c.ScanIntervalSeconds, "scan-interval-seconds", 1, "how often the runner scans for due wake-ups (1..60)")
	fs.StringVar(&c.NoteTimezone, "note-timezone", "Local", "IANA timezone for timestamps in incident notes")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// The webhook is reachable from the mail provider, so it must be guarded
	if c.WebhookToken == "" {
		errs = append(errs, errors.New("WEBHOOK_TOKEN is required"))
	}

	// Wirespeed token is required for all case polling
	if c.WirespeedAPIToken == "" {
		errs = append(errs, errors.New("WIRESPEED_API_TOKEN is required"))
	}

	// Routing key is required to page at all
	if c.PagerDutyRoutingKey == "" {
		errs = append(errs, errors.New("PAGERDUTY_ROUTING_KEY is required"))
	}

	if c.PollIntervalSeconds <= 0 || c.PollIntervalSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid POLL_INTERVAL_SECONDS %d (must be 1..3600)", c.PollIntervalSeconds))
	}
	if c.SettleSeconds <= 0 || c.SettleSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid SETTLE_SECONDS %d (must be 1..3600)", c.SettleSeconds))
	}
	if c.CaseWindow <= 0 || c.CaseWindow > 500 {
		errs = append(errs, fmt.Errorf("invalid CASE_WINDOW %d (must be 1..500)", c.CaseWindow))
	}
	if c.ScanIntervalSeconds <= 0 || c.ScanIntervalSeconds > 60 {
		errs = append(errs, fmt.Errorf("invalid SCAN_INTERVAL_SECONDS %d (must be 1..60)", c.ScanIntervalSeconds))
	}

	if _, err := time.LoadLocation(c.NoteTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid NOTE_TIMEZONE %q: %w", c.NoteTimezone, err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Location resolves the configured note timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.NoteTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}
