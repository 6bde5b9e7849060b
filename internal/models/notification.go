package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationRefundIssued        = "refund_issued"
	NotificationMeetCancelledNoShow = "meet_cancelled_no_show"
	NotificationEarningCredited     = "earning_credited"
)

type Notification struct {
	ID        uuid.UUID              `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID              `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" gorm:"serializer:json"`
	IsRead    bool                   `json:"is_read"`
	CreatedAt time.Time              `json:"created_at"`
}

func (Notification) TableName() string {
	return NotificationsTable
}
