package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const balanceRetryAttempts = 5

var errBalanceConflict = errors.New("wallet balance changed concurrently")

func (su *SupabaseRepo) getWallet(ctx context.Context, column, value string) (*Wallet, error) {
	raw, _, err := su.supabaseClient.From(WalletsTable).
		Select("*", "", false).
		Eq(column, value).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var wallets []Wallet
	if err := json.Unmarshal(raw, &wallets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet rows: %w", err)
	}
	if len(wallets) == 0 {
		return nil, ErrNotFound
	}
	return &wallets[0], nil
}

func (su *SupabaseRepo) EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("invalid user ID")
	}

	wallet, err := su.getWallet(ctx, "user_id", userID.String())
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := su.now().UTC()
	row := map[string]interface{}{
		"id":         uuid.New(),
		"user_id":    userID,
		"balance":    decimal.Zero,
		"created_at": now,
		"updated_at": now,
	}
	raw, _, err := su.supabaseClient.From(WalletsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		// Another run created it between our read and insert; user_id is unique.
		if isUniqueViolation(err) {
			return su.getWallet(ctx, "user_id", userID.String())
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	var created []Wallet
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("failed to unmarshal created wallet: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("no wallet data returned after insert")
	}
	return &created[0], nil
}

func (su *SupabaseRepo) findLedgerEntry(ctx context.Context, entry *WalletTransaction) (*WalletTransaction, error) {
	raw, _, err := su.supabaseClient.From(WalletTransactionsTable).
		Select("*", "", false).
		Eq("reference_type", entry.ReferenceType).
		Eq("reference_id", entry.ReferenceID.String()).
		Eq("type", string(entry.Type)).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	var entries []WalletTransaction
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger rows: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// CreditWallet writes the ledger entry first so the unique reference gates the balance
// change. PostgREST offers no multi-table transaction, so a failure after the insert
// returns the entry together with an error; reconciliation finds it by reference.
func (su *SupabaseRepo) CreditWallet(ctx context.Context, entry *WalletTransaction) (*WalletTransaction, bool, error) {
	if err := Validate.Struct(entry); err != nil {
		return nil, false, fmt.Errorf("invalid ledger entry: %w", err)
	}
	if !entry.Amount.IsPositive() {
		return nil, false, fmt.Errorf("credit amount must be positive, got %s", entry.Amount)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = su.now().UTC()
	}

	raw, _, err := su.supabaseClient.From(WalletTransactionsTable).
		Insert(entry, false, "", "representation", "").
		Execute()
	if err != nil {
		if isUniqueViolation(err) {
			existing, findErr := su.findLedgerEntry(ctx, entry)
			if findErr != nil {
				return nil, false, fmt.Errorf("ledger entry already exists but could not be read: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	var created []WalletTransaction
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal ledger entry: %w", err)
	}
	if len(created) == 0 {
		return nil, false, fmt.Errorf("no ledger data returned after insert")
	}

	if err := su.incrementBalance(ctx, entry.WalletID, entry.Amount); err != nil {
		return &created[0], true, fmt.Errorf("ledger entry %s recorded but balance not applied: %w", entry.ID, err)
	}
	return &created[0], true, nil
}

// incrementBalance adds amount using the previous balance as an optimistic lock.
func (su *SupabaseRepo) incrementBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		wallet, err := su.getWallet(ctx, "id", walletID.String())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}

		raw, _, err := su.supabaseClient.From(WalletsTable).
			Update(map[string]interface{}{
				"balance":    wallet.Balance.Add(amount),
				"updated_at": su.now().UTC(),
			}, "representation", "").
			Eq("id", walletID.String()).
			Eq("balance", wallet.Balance.String()).
			Execute()
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to update wallet balance: %w", err)
		}

		var rows []map[string]interface{}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to unmarshal wallet: %w", err))
		}
		if len(rows) == 0 {
			return struct{}{}, errBalanceConflict
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(newBalanceBackOff()), backoff.WithMaxTries(balanceRetryAttempts))
	return err
}

func newBalanceBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}
