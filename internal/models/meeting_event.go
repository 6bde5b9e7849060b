package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MeetingEventCancelledNoShowCreator = "MEETING_CANCELLED_NO_SHOW_CREATOR"
	MeetingEventFanJoinStatusAtCancel  = "FAN_JOIN_STATUS_AT_CANCEL"
	MeetingEventRefundIssued           = "REFUND_ISSUED"
	MeetingEventRecordingStopped       = "RECORDING_STOPPED"
	MeetingEventCompleted              = "MEETING_COMPLETED"
)

// MeetingEvent is an append-only audit line for one lifecycle transition.
type MeetingEvent struct {
	ID        uuid.UUID              `json:"id" gorm:"primaryKey"`
	MeetID    uuid.UUID              `json:"meet_id"`
	EventType string                 `json:"event_type"`
	Metadata  map[string]interface{} `json:"metadata" gorm:"serializer:json"`
	CreatedAt time.Time              `json:"created_at"`
}

func (MeetingEvent) TableName() string {
	return MeetingEventsTable
}
