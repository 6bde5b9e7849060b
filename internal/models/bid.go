package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	BidStatusWon = "won"

	RefundStatusCompleted = "completed"
)

type Bid struct {
	ID           uuid.UUID        `json:"id" gorm:"primaryKey"`
	EventID      uuid.UUID        `json:"event_id"`
	UserID       uuid.UUID        `json:"user_id"` // the fan who placed the bid
	Amount       decimal.Decimal  `json:"amount"`
	Status       string           `json:"status"`
	RefundAmount *decimal.Decimal `json:"refund_amount"`
	RefundStatus *string          `json:"refund_status"`
	RefundedAt   *time.Time       `json:"refunded_at"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (Bid) TableName() string {
	return BidsTable
}
