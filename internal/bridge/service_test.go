package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/linnemanlabs/casebridge/internal/mailin"
	"github.com/linnemanlabs/casebridge/internal/pagerduty"
	"github.com/linnemanlabs/casebridge/internal/wirespeed"
)

const testCaseID = "7f9c2ba4-e88f-4a1c-9019-3c5a7e4d8b21"

type mockFetcher struct {
	cs    *wirespeed.Case
	err   error
	calls int
}

func (m *mockFetcher) Get(_ context.Context, _ string) (*wirespeed.Case, error) {
	m.calls++
	return m.cs, m.err
}

type mockSender struct {
	err    error
	events []*pagerduty.Event
}

func (m *mockSender) Enqueue(_ context.Context, ev *pagerduty.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

type startCall struct {
	caseID, routingKey, dedupKey string
}

type mockStarter struct {
	err   error
	calls []startCall
}

func (m *mockStarter) Start(_ context.Context, caseID, routingKey, dedupKey string) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, startCall{caseID, routingKey, dedupKey})
	return nil
}

func wirespeedEmail(text string) *mailin.Email {
	return &mailin.Email{
		From:    "alerts@notifications.wirespeed.co",
		Subject: "New Case Opened",
		Text:    text,
	}
}

func TestHandleInbound_FullAlert(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{cs: &wirespeed.Case{ID: testCaseID, SID: "CASE-42", Name: "Suspicious login"}}
	sender := &mockSender{}
	starter := &mockStarter{}
	svc := NewService(fetcher, sender, starter, "rk", nil, nil)

	em := wirespeedEmail("See https://app.wirespeed.co/cases/" + testCaseID)
	receipt, err := svc.HandleInbound(context.Background(), em)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if receipt.Skipped {
		t.Fatalf("receipt skipped: %q", receipt.Reason)
	}
	if receipt.Failsafe {
		t.Error("receipt flagged failsafe on a successful fetch")
	}
	if receipt.CaseID != testCaseID {
		t.Errorf("CaseID = %q, want %q", receipt.CaseID, testCaseID)
	}
	if receipt.ID == "" {
		t.Error("receipt id must be set")
	}

	if len(sender.events) != 1 {
		t.Fatalf("events sent = %d, want 1", len(sender.events))
	}
	if sender.events[0].DedupKey != testCaseID {
		t.Errorf("dedup key = %q, want case id", sender.events[0].DedupKey)
	}
	if !strings.Contains(sender.events[0].Payload.Summary, "Suspicious login") {
		t.Errorf("summary = %q, want built from the fetched case", sender.events[0].Payload.Summary)
	}

	if len(starter.calls) != 1 {
		t.Fatalf("watcher starts = %d, want 1", len(starter.calls))
	}
	want := startCall{caseID: testCaseID, routingKey: "rk", dedupKey: testCaseID}
	if starter.calls[0] != want {
		t.Errorf("watcher start = %+v, want %+v", starter.calls[0], want)
	}
}

func TestHandleInbound_UnknownSenderSkipped(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{}
	sender := &mockSender{}
	starter := &mockStarter{}
	svc := NewService(fetcher, sender, starter, "rk", nil, nil)

	receipt, err := svc.HandleInbound(context.Background(), &mailin.Email{
		From: "attacker@example.com",
		Text: "https://app.wirespeed.co/cases/" + testCaseID,
	})
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if !receipt.Skipped || receipt.Reason != "sender not allowed" {
		t.Errorf("receipt = %+v, want skipped with sender reason", receipt)
	}
	if fetcher.calls != 0 || len(sender.events) != 0 || len(starter.calls) != 0 {
		t.Error("skipped email must not touch downstream services")
	}
}

func TestHandleInbound_NoCaseLinkSkipped(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	svc := NewService(&mockFetcher{}, sender, &mockStarter{}, "rk", nil, nil)

	receipt, err := svc.HandleInbound(context.Background(), wirespeedEmail("no link in here"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if !receipt.Skipped || receipt.Reason != "no case link in body" {
		t.Errorf("receipt = %+v, want skipped with no-link reason", receipt)
	}
	if len(sender.events) != 0 {
		t.Error("skipped email must not page")
	}
}

func TestHandleInbound_FetchFailureGoesFailsafe(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{err: &wirespeed.APIError{StatusCode: 502, Body: "bad gateway"}}
	sender := &mockSender{}
	starter := &mockStarter{}
	svc := NewService(fetcher, sender, starter, "rk", nil, nil)

	em := wirespeedEmail("See https://app.wirespeed.co/cases/" + testCaseID)
	receipt, err := svc.HandleInbound(context.Background(), em)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if !receipt.Failsafe {
		t.Error("receipt must be flagged failsafe when the case fetch fails")
	}
	if len(sender.events) != 1 {
		t.Fatalf("events sent = %d, want 1", len(sender.events))
	}
	ev := sender.events[0]
	if ev.DedupKey != testCaseID {
		t.Errorf("failsafe dedup key = %q, want case id", ev.DedupKey)
	}
	if !strings.Contains(ev.Payload.Summary, "(Failsafe)") {
		t.Errorf("summary = %q, want failsafe-flagged", ev.Payload.Summary)
	}
	if len(starter.calls) != 1 {
		t.Error("the watcher must start even in failsafe mode")
	}
}

func TestHandleInbound_TriggerErrorReturned(t *testing.T) {
	t.Parallel()

	sender := &mockSender{err: errors.New("events api down")}
	starter := &mockStarter{}
	svc := NewService(&mockFetcher{cs: &wirespeed.Case{ID: testCaseID}}, sender, starter, "rk", nil, nil)

	em := wirespeedEmail("https://app.wirespeed.co/cases/" + testCaseID)
	if _, err := svc.HandleInbound(context.Background(), em); err == nil {
		t.Fatal("expected error so the mail provider retries")
	}
	if len(starter.calls) != 0 {
		t.Error("watcher must not start when the trigger was never sent")
	}
}

func TestHandleInbound_WatcherErrorReturned(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	starter := &mockStarter{err: errors.New("store down")}
	svc := NewService(&mockFetcher{cs: &wirespeed.Case{ID: testCaseID}}, sender, starter, "rk", nil, nil)

	em := wirespeedEmail("https://app.wirespeed.co/cases/" + testCaseID)
	if _, err := svc.HandleInbound(context.Background(), em); err == nil {
		t.Fatal("expected error so the mail provider retries")
	}
	if len(sender.events) != 1 {
		t.Errorf("events sent = %d, want 1 (trigger already went out)", len(sender.events))
	}
}
