package models

import (
	"github.com/google/uuid"
)

// Event is the auctioned listing a meet belongs to. Read-only here.
type Event struct {
	ID           uuid.UUID  `json:"id" gorm:"primaryKey"`
	CreatorID    uuid.UUID  `json:"creator_id"`
	Title        string     `json:"title"`
	WinningBidID *uuid.UUID `json:"winning_bid_id"` // nil until the auction is decided
}

func (Event) TableName() string {
	return EventsTable
}
