package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PgErrUniqueViolation is SQLSTATE unique_violation.
const PgErrUniqueViolation = "23505"

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (pg *PostgresRepo) ListMeetsByStatus(ctx context.Context, status MeetStatus, scheduledBefore *time.Time, limit int) ([]*Meet, error) {
	query := pg.db.WithContext(ctx).Where("status = ?", string(status))
	if scheduledBefore != nil {
		query = query.Where("scheduled_at <= ?", scheduledBefore.UTC())
	}
	query = query.Order("scheduled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var meets []*Meet
	if err := query.Find(&meets).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s meets: %w", status, err)
	}
	return meets, nil
}

func (pg *PostgresRepo) TransitionMeet(ctx context.Context, id uuid.UUID, from, to MeetStatus, update MeetUpdate) (bool, error) {
	cols := update.Columns()
	cols["status"] = string(to)

	res := pg.db.WithContext(ctx).
		Model(&Meet{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition meet %s to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (pg *PostgresRepo) UpdateMeet(ctx context.Context, id uuid.UUID, update MeetUpdate) error {
	cols := update.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("no fields to update")
	}

	res := pg.db.WithContext(ctx).Model(&Meet{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("failed to update meet %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *PostgresRepo) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	if err := pg.db.WithContext(ctx).Where("id = ?", id).Take(&event).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (pg *PostgresRepo) GetBid(ctx context.Context, id uuid.UUID) (*Bid, error) {
	var bid Bid
	if err := pg.db.WithContext(ctx).Where("id = ?", id).Take(&bid).Error; err != nil {
		return nil, notFound(err)
	}
	return &bid, nil
}

func (pg *PostgresRepo) GetWinningBid(ctx context.Context, eventID uuid.UUID) (*Bid, error) {
	var bid Bid
	err := pg.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, BidStatusWon).
		Order("amount DESC").
		Take(&bid).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &bid, nil
}

func (pg *PostgresRepo) MarkBidRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	res := pg.db.WithContext(ctx).Model(&Bid{}).Where("id = ?", id).Updates(map[string]interface{}{
		"refund_amount": amount,
		"refund_status": RefundStatusCompleted,
		"refunded_at":   at.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to mark bid %s refunded: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureWallet is a single INSERT ... ON CONFLICT DO NOTHING followed by a read, so
// concurrent callers converge on the same row.
func (pg *PostgresRepo) EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("invalid user ID")
	}

	now := pg.now().UTC()
	candidate := Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db := pg.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert wallet: %w", err)
	}

	var wallet Wallet
	if err := db.Where("user_id = ?", userID).Take(&wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to read wallet: %w", notFound(err))
	}
	return &wallet, nil
}

// CreditWallet inserts the ledger entry and increments the balance in one transaction.
func (pg *PostgresRepo) CreditWallet(ctx context.Context, entry *WalletTransaction) (*WalletTransaction, bool, error) {
	if err := Validate.Struct(entry); err != nil {
		return nil, false, fmt.Errorf("invalid ledger entry: %w", err)
	}
	if !entry.Amount.IsPositive() {
		return nil, false, fmt.Errorf("credit amount must be positive, got %s", entry.Amount)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := pg.now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	err := pg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		res := tx.Model(&Wallet{}).Where("id = ?", entry.WalletID).Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", entry.Amount),
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if isPgError(err, PgErrUniqueViolation) {
			var existing WalletTransaction
			findErr := pg.db.WithContext(ctx).
				Where("reference_type = ? AND reference_id = ? AND type = ?", entry.ReferenceType, entry.ReferenceID, string(entry.Type)).
				Take(&existing).Error
			if findErr != nil {
				return nil, false, fmt.Errorf("ledger entry already exists but could not be read: %w", notFound(findErr))
			}
			return &existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to credit wallet %s: %w", entry.WalletID, err)
	}
	return entry, true, nil
}

func (pg *PostgresRepo) AppendMeetingEvent(ctx context.Context, event *MeetingEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = pg.now().UTC()
	}
	if err := pg.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to insert meeting event %s: %w", event.EventType, err)
	}
	return nil
}

func (pg *PostgresRepo) CreateNotification(ctx context.Context, notification *Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = pg.now().UTC()
	}
	if err := pg.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}
