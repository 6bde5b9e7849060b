package models

import (
	"time"

	"github.com/google/uuid"
)

type MeetStatus string

const (
	MeetStatusScheduled              MeetStatus = "scheduled"
	MeetStatusLive                   MeetStatus = "live"
	MeetStatusCompleted              MeetStatus = "completed"
	MeetStatusCancelledNoShowCreator MeetStatus = "cancelled_no_show_creator"
	MeetStatusCancelledByCreator     MeetStatus = "cancelled_by_creator"
	MeetStatusCancelledByFan         MeetStatus = "cancelled_by_fan"
	MeetStatusCancelledByAdmin       MeetStatus = "cancelled_by_admin"
)

const CancellationReasonCreatorNoShow = "CREATOR_NO_SHOW"

// IsTerminal reports whether the sweep must never touch a meet in this status again.
func (s MeetStatus) IsTerminal() bool {
	switch s {
	case MeetStatusCompleted,
		MeetStatusCancelledNoShowCreator,
		MeetStatusCancelledByCreator,
		MeetStatusCancelledByFan,
		MeetStatusCancelledByAdmin:
		return true
	}
	return false
}

// Meet is one scheduled video call between a creator (host) and the fan who won the auction.
type Meet struct {
	ID                 uuid.UUID  `json:"id" gorm:"primaryKey" validate:"required"`
	EventID            uuid.UUID  `json:"event_id" validate:"required"`
	Status             MeetStatus `json:"status" validate:"required"`
	ScheduledAt        time.Time  `json:"scheduled_at" validate:"required"`
	DurationMinutes    int        `json:"duration_minutes" validate:"gte=0"`
	CreatorID          uuid.UUID  `json:"creator_id" validate:"required"`
	FanID              uuid.UUID  `json:"fan_id" validate:"required"`
	CreatorStartedAt   *time.Time `json:"creator_started_at"`
	FanJoinedAt        *time.Time `json:"fan_joined_at"`
	RecordingStartedAt *time.Time `json:"recording_started_at"`
	RecordingStoppedAt *time.Time `json:"recording_stopped_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancellationReason *string    `json:"cancellation_reason"`
	RefundID           *string    `json:"refund_id"`
	CompletedAt        *time.Time `json:"completed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Meet) TableName() string {
	return MeetsTable
}

// ScheduledEnd is the scheduled start plus the booked duration.
func (m *Meet) ScheduledEnd() time.Time {
	return m.ScheduledAt.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// CreatorStartedBefore reports whether the creator started strictly before t.
// Starting at t or later does not count.
func (m *Meet) CreatorStartedBefore(t time.Time) bool {
	return m.CreatorStartedAt != nil && m.CreatorStartedAt.Before(t)
}

// RecordingOpen reports whether a recording was started and never stopped.
func (m *Meet) RecordingOpen() bool {
	return m.RecordingStartedAt != nil && m.RecordingStoppedAt == nil
}

// MeetUpdate holds the columns the sweep may write on a meet. Nil fields are left untouched.
type MeetUpdate struct {
	CancelledAt        *time.Time
	CancellationReason *string
	RefundID           *string
	CompletedAt        *time.Time
	RecordingStoppedAt *time.Time
	UpdatedAt          time.Time
}

// Columns flattens the update into column/value pairs for the store backends.
func (u MeetUpdate) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.CancelledAt != nil {
		cols["cancelled_at"] = u.CancelledAt.UTC()
	}
	if u.CancellationReason != nil {
		cols["cancellation_reason"] = *u.CancellationReason
	}
	if u.RefundID != nil {
		cols["refund_id"] = *u.RefundID
	}
	if u.CompletedAt != nil {
		cols["completed_at"] = u.CompletedAt.UTC()
	}
	if u.RecordingStoppedAt != nil {
		cols["recording_stopped_at"] = u.RecordingStoppedAt.UTC()
	}
	if !u.UpdatedAt.IsZero() {
		cols["updated_at"] = u.UpdatedAt.UTC()
	}
	return cols
}

// Apply copies the update onto m. Used by the in-memory store.
func (u MeetUpdate) Apply(m *Meet) {
	if u.CancelledAt != nil {
		t := *u.CancelledAt
		m.CancelledAt = &t
	}
	if u.CancellationReason != nil {
		r := *u.CancellationReason
		m.CancellationReason = &r
	}
	if u.RefundID != nil {
		r := *u.RefundID
		m.RefundID = &r
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		m.CompletedAt = &t
	}
	if u.RecordingStoppedAt != nil {
		t := *u.RecordingStoppedAt
		m.RecordingStoppedAt = &t
	}
	if !u.UpdatedAt.IsZero() {
		m.UpdatedAt = u.UpdatedAt
	}
}
