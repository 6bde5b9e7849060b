package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerType string

const (
	LedgerTypeRefund      LedgerType = "refund"
	LedgerTypeMeetEarning LedgerType = "meet_earning"

	DirectionCredit = "credit"
	DirectionDebit  = "debit"

	ReferenceTypeMeet = "meet"

	LedgerStatusCompleted = "completed"
)

// Wallet holds a user's balance. One row per user, created lazily on first credit.
type Wallet struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID       `json:"user_id" gorm:"uniqueIndex"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return WalletsTable
}

// WalletTransaction is an immutable ledger line. (ReferenceType, ReferenceID, Type) is unique,
// which is what makes a replayed credit a no-op.
type WalletTransaction struct {
	ID                       uuid.UUID        `json:"id" gorm:"primaryKey"`
	WalletID                 uuid.UUID        `json:"wallet_id" validate:"required"`
	UserID                   uuid.UUID        `json:"user_id" validate:"required"`
	Type                     LedgerType       `json:"type" validate:"required"`
	Direction                string           `json:"direction" validate:"oneof=credit debit"`
	Amount                   decimal.Decimal  `json:"amount" gorm:"type:numeric"`
	CommissionAmount         *decimal.Decimal `json:"commission_amount,omitempty" gorm:"type:numeric"`
	CommissionPercent        *int             `json:"commission_percent,omitempty"`
	ReferenceType            string           `json:"reference_type" validate:"required"`
	ReferenceID              uuid.UUID        `json:"reference_id" validate:"required"`
	ReferenceCode            string           `json:"reference_code,omitempty"`
	Description              string           `json:"description"`
	Status                   string           `json:"status"`
	AvailableForWithdrawalAt *time.Time       `json:"available_for_withdrawal_at,omitempty"`
	CreatedAt                time.Time        `json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return WalletTransactionsTable
}

// SameReference reports whether both entries record the same credit.
func (t *WalletTransaction) SameReference(o *WalletTransaction) bool {
	return t.ReferenceType == o.ReferenceType && t.ReferenceID == o.ReferenceID && t.Type == o.Type
}
