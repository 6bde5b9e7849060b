package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/meetsweeper/internal/models"
	"github.com/shopspring/decimal"
)

// ErrNothingToCredit is returned when the fee leaves the host no share.
var ErrNothingToCredit = errors.New("net host share is zero")

var hundred = decimal.NewFromInt(100)

// HostShare is the split of a winning bid between the host and the platform.
type HostShare struct {
	Gross      decimal.Decimal `json:"gross"`
	Net        decimal.Decimal `json:"net"`
	Commission decimal.Decimal `json:"commission"`
	FeePercent int             `json:"fee_percent"`
}

// SplitHostShare computes net = floor(amount * (100 - feePercent) / 100); the rest is commission.
func SplitHostShare(amount decimal.Decimal, feePercent int) HostShare {
	net := amount.Mul(decimal.NewFromInt(int64(100 - feePercent))).Div(hundred).Floor()
	return HostShare{
		Gross:      amount,
		Net:        net,
		Commission: amount.Sub(net),
		FeePercent: feePercent,
	}
}

// RefundReference builds the ledger-only refund id. It is not a payment gateway id.
func RefundReference(meetID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("refund_%d_%s", at.UnixMilli(), meetID)
}

type LedgerService struct {
	wallets       models.WalletRepo
	bids          models.BidRepo
	notifications models.NotificationRepo
	holdPeriod    time.Duration
	logger        *slog.Logger
}

func NewLedgerService(wallets models.WalletRepo, bids models.BidRepo, notifications models.NotificationRepo, holdPeriod time.Duration, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		wallets:       wallets,
		bids:          bids,
		notifications: notifications,
		holdPeriod:    holdPeriod,
		logger:        logger,
	}
}

func (ls *LedgerService) HoldPeriod() time.Duration {
	return ls.holdPeriod
}

// RefundFull credits the fan with the whole winning bid, marks the bid refunded and
// notifies the fan. Replaying it for the same meet returns the original reference
// without crediting again.
func (ls *LedgerService) RefundFull(ctx context.Context, meetID, fanID, bidID uuid.UUID, amount decimal.Decimal, now time.Time) (string, error) {
	if meetID == uuid.Nil || fanID == uuid.Nil {
		return "", fmt.Errorf("invalid meet or fan ID")
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("refund amount must be positive, got %s", amount)
	}

	wallet, err := ls.wallets.EnsureWallet(ctx, fanID)
	if err != nil {
		return "", fmt.Errorf("failed to get fan wallet: %w", err)
	}

	entry := &models.WalletTransaction{
		WalletID:      wallet.ID,
		UserID:        fanID,
		Type:          models.LedgerTypeRefund,
		Direction:     models.DirectionCredit,
		Amount:        amount,
		ReferenceType: models.ReferenceTypeMeet,
		ReferenceID:   meetID,
		ReferenceCode: RefundReference(meetID, now),
		Description:   "Full refund: the creator did not start the meet",
		Status:        models.LedgerStatusCompleted,
		CreatedAt:     now,
	}
	recorded, applied, err := ls.wallets.CreditWallet(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("failed to credit fan wallet: %w", err)
	}
	if !applied {
		ls.logger.Info("Refund already recorded for meet", "meet_id", meetID, "refund_id", recorded.ReferenceCode)
	}

	// The ledger is the source of truth; a stale bid row must not turn a completed
	// refund into a reported failure.
	if bidID != uuid.Nil {
		if err := ls.bids.MarkBidRefunded(ctx, bidID, amount, now); err != nil {
			ls.logger.Warn("Failed to mark bid refunded", "meet_id", meetID, "bid_id", bidID, "error", err)
		}
	}

	if applied {
		ls.notify(ctx, &models.Notification{
			UserID:  fanID,
			Type:    models.NotificationRefundIssued,
			Title:   "Meet cancelled and refunded",
			Message: fmt.Sprintf("The creator did not start your meet. %s has been refunded to your wallet.", amount.String()),
			Metadata: map[string]interface{}{
				"meet_id":   meetID.String(),
				"refund_id": recorded.ReferenceCode,
				"amount":    amount.String(),
			},
			CreatedAt: now,
		})
	}

	return recorded.ReferenceCode, nil
}

// CreditHostShare pays the host their share of bidAmount after the platform fee.
// The entry becomes withdrawable once the hold period has passed.
func (ls *LedgerService) CreditHostShare(ctx context.Context, meetID, hostID uuid.UUID, bidAmount decimal.Decimal, feePercent int, now time.Time) (HostShare, error) {
	share := SplitHostShare(bidAmount, feePercent)
	if meetID == uuid.Nil || hostID == uuid.Nil {
		return share, fmt.Errorf("invalid meet or host ID")
	}
	if feePercent < 0 || feePercent > 100 {
		return share, fmt.Errorf("fee percent must be between 0 and 100, got %d", feePercent)
	}
	if !share.Net.IsPositive() {
		return share, ErrNothingToCredit
	}

	wallet, err := ls.wallets.EnsureWallet(ctx, hostID)
	if err != nil {
		return share, fmt.Errorf("failed to get host wallet: %w", err)
	}

	availableAt := now.Add(ls.holdPeriod)
	commission := share.Commission
	percent := feePercent
	entry := &models.WalletTransaction{
		WalletID:                 wallet.ID,
		UserID:                   hostID,
		Type:                     models.LedgerTypeMeetEarning,
		Direction:                models.DirectionCredit,
		Amount:                   share.Net,
		CommissionAmount:         &commission,
		CommissionPercent:        &percent,
		ReferenceType:            models.ReferenceTypeMeet,
		ReferenceID:              meetID,
		Description:              "Earnings from completed meet",
		Status:                   models.LedgerStatusCompleted,
		AvailableForWithdrawalAt: &availableAt,
		CreatedAt:                now,
	}
	recorded, applied, err := ls.wallets.CreditWallet(ctx, entry)
	if err != nil {
		return share, fmt.Errorf("failed to credit host wallet: %w", err)
	}
	if !applied {
		ls.logger.Info("Host earning already recorded for meet", "meet_id", meetID, "entry_id", recorded.ID)
		return share, nil
	}

	ls.notify(ctx, &models.Notification{
		UserID:  hostID,
		Type:    models.NotificationEarningCredited,
		Title:   "Meet completed",
		Message: fmt.Sprintf("You earned %s from your completed meet. It can be withdrawn after %s.", share.Net.String(), availableAt.UTC().Format(time.RFC1123)),
		Metadata: map[string]interface{}{
			"meet_id":                     meetID.String(),
			"amount":                      share.Net.String(),
			"commission_amount":           share.Commission.String(),
			"available_for_withdrawal_at": availableAt.UTC(),
		},
		CreatedAt: now,
	})
	return share, nil
}

// notify is best effort; a missing notification never undoes a credit.
func (ls *LedgerService) notify(ctx context.Context, n *models.Notification) {
	if err := ls.notifications.CreateNotification(ctx, n); err != nil {
		ls.logger.Warn("Failed to create notification", "user_id", n.UserID, "type", n.Type, "error", err)
	}
}
