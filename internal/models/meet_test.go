package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMeetScheduledEnd(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := &Meet{ScheduledAt: start, DurationMinutes: 45}

	if got := m.ScheduledEnd(); !got.Equal(start.Add(45 * time.Minute)) {
		t.Errorf("expected end %s, got %s", start.Add(45*time.Minute), got)
	}
}

func TestCreatorStartedBeforeIsStrict(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := &Meet{ScheduledAt: start}

	if m.CreatorStartedBefore(start) {
		t.Error("never started must not count as started")
	}

	exact := start
	m.CreatorStartedAt = &exact
	if m.CreatorStartedBefore(start) {
		t.Error("starting exactly at the scheduled time is not before it")
	}

	early := start.Add(-time.Millisecond)
	m.CreatorStartedAt = &early
	if !m.CreatorStartedBefore(start) {
		t.Error("expected an early start to count")
	}
}

func TestRecordingOpen(t *testing.T) {
	now := time.Now()
	m := &Meet{}
	if m.RecordingOpen() {
		t.Error("no recording was started")
	}
	m.RecordingStartedAt = &now
	if !m.RecordingOpen() {
		t.Error("expected open recording")
	}
	m.RecordingStoppedAt = &now
	if m.RecordingOpen() {
		t.Error("stopped recording reported open")
	}
}

func TestMeetStatusIsTerminal(t *testing.T) {
	if MeetStatusScheduled.IsTerminal() || MeetStatusLive.IsTerminal() {
		t.Error("scheduled and live are not terminal")
	}
	for _, s := range []MeetStatus{MeetStatusCompleted, MeetStatusCancelledNoShowCreator, MeetStatusCancelledByAdmin} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestMeetUpdateColumnsOnlySetFields(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("GMT+2", 7200))
	reason := CancellationReasonCreatorNoShow
	cols := MeetUpdate{CancelledAt: &at, CancellationReason: &reason, UpdatedAt: at}.Columns()

	if len(cols) != 3 {
		t.Errorf("expected 3 columns, got %v", cols)
	}
	if got, ok := cols["cancelled_at"].(time.Time); !ok || got.Location() != time.UTC || !got.Equal(at) {
		t.Errorf("expected cancelled_at in UTC, got %v", cols["cancelled_at"])
	}
	if cols["cancellation_reason"] != CancellationReasonCreatorNoShow {
		t.Errorf("unexpected reason %v", cols["cancellation_reason"])
	}
	if _, ok := cols["refund_id"]; ok {
		t.Error("refund_id must be absent when unset")
	}
}

func TestMeetUpdateApply(t *testing.T) {
	m := &Meet{ID: uuid.New()}
	done := time.Now()
	refund := "refund_1_x"
	MeetUpdate{CompletedAt: &done, RefundID: &refund}.Apply(m)

	if m.CompletedAt == nil || !m.CompletedAt.Equal(done) {
		t.Error("completed_at not applied")
	}
	if m.RefundID == nil || *m.RefundID != refund {
		t.Error("refund_id not applied")
	}
	if m.CancelledAt != nil {
		t.Error("unset field was applied")
	}
	refund = "changed"
	if *m.RefundID == "changed" {
		t.Error("Apply must copy pointed-to values")
	}
}
