package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/meetsweeper/internal/models"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSplitHostShare(t *testing.T) {
	tests := []struct {
		amount     string
		fee        int
		net        string
		commission string
	}{
		{"100", 10, "90", "10"},
		{"155", 15, "131", "24"},
		{"99.99", 10, "89", "10.99"},
		{"50", 0, "50", "0"},
		{"50", 100, "0", "50"},
	}

	for _, tt := range tests {
		share := SplitHostShare(decimal.RequireFromString(tt.amount), tt.fee)
		if !share.Net.Equal(decimal.RequireFromString(tt.net)) {
			t.Errorf("amount %s fee %d: expected net %s, got %s", tt.amount, tt.fee, tt.net, share.Net)
		}
		if !share.Commission.Equal(decimal.RequireFromString(tt.commission)) {
			t.Errorf("amount %s fee %d: expected commission %s, got %s", tt.amount, tt.fee, tt.commission, share.Commission)
		}
		if !share.Net.Add(share.Commission).Equal(share.Gross) {
			t.Errorf("amount %s: net and commission do not add up to gross", tt.amount)
		}
	}
}

func TestRefundFullReplayDoesNotCreditTwice(t *testing.T) {
	repo := models.MemoryNewRepo()
	ledger := NewLedgerService(repo, repo, repo, 24*time.Hour, discardLogger())
	ctx := context.Background()

	meetID, fanID, bidID := uuid.New(), uuid.New(), uuid.New()
	repo.PutBid(&models.Bid{ID: bidID, UserID: fanID, Amount: decimal.NewFromInt(40), Status: models.BidStatusWon})
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	refundID, err := ledger.RefundFull(ctx, meetID, fanID, bidID, decimal.NewFromInt(40), first)
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	again, err := ledger.RefundFull(ctx, meetID, fanID, bidID, decimal.NewFromInt(40), first.Add(time.Minute))
	if err != nil {
		t.Fatalf("replayed refund: %v", err)
	}

	if again != refundID {
		t.Errorf("expected replay to return %q, got %q", refundID, again)
	}
	if got := repo.Balance(fanID); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected balance 40 after replay, got %s", got)
	}
	if n := len(repo.LedgerFor(meetID)); n != 1 {
		t.Errorf("expected one ledger entry, got %d", n)
	}
	if n := len(repo.NotificationsFor(fanID)); n != 1 {
		t.Errorf("expected one fan notification, got %d", n)
	}
	bid := repo.Bid(bidID)
	if bid.RefundStatus == nil || *bid.RefundStatus != models.RefundStatusCompleted {
		t.Error("bid was not marked refunded")
	}
}

func TestRefundFullRejectsNonPositiveAmount(t *testing.T) {
	repo := models.MemoryNewRepo()
	ledger := NewLedgerService(repo, repo, repo, 0, discardLogger())

	_, err := ledger.RefundFull(context.Background(), uuid.New(), uuid.New(), uuid.Nil, decimal.Zero, time.Now())
	if err == nil {
		t.Fatal("expected error for zero refund")
	}
}

func TestCreditHostShareSetsHoldAndCommission(t *testing.T) {
	repo := models.MemoryNewRepo()
	ledger := NewLedgerService(repo, repo, repo, 48*time.Hour, discardLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meetID, hostID := uuid.New(), uuid.New()

	share, err := ledger.CreditHostShare(context.Background(), meetID, hostID, decimal.NewFromInt(200), 20, now)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !share.Net.Equal(decimal.NewFromInt(160)) {
		t.Errorf("expected net 160, got %s", share.Net)
	}

	entries := repo.LedgerFor(meetID)
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Type != models.LedgerTypeMeetEarning || entry.Direction != models.DirectionCredit {
		t.Errorf("unexpected entry kind %s/%s", entry.Type, entry.Direction)
	}
	if entry.CommissionAmount == nil || !entry.CommissionAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected commission 40, got %v", entry.CommissionAmount)
	}
	if entry.CommissionPercent == nil || *entry.CommissionPercent != 20 {
		t.Errorf("expected commission percent 20, got %v", entry.CommissionPercent)
	}
	if entry.AvailableForWithdrawalAt == nil || !entry.AvailableForWithdrawalAt.Equal(now.Add(48*time.Hour)) {
		t.Errorf("expected withdrawable at %s, got %v", now.Add(48*time.Hour), entry.AvailableForWithdrawalAt)
	}
	if got := repo.Balance(hostID); !got.Equal(decimal.NewFromInt(160)) {
		t.Errorf("expected host balance 160, got %s", got)
	}
}

func TestCreditHostShareNothingToCredit(t *testing.T) {
	repo := models.MemoryNewRepo()
	ledger := NewLedgerService(repo, repo, repo, 0, discardLogger())
	hostID := uuid.New()

	_, err := ledger.CreditHostShare(context.Background(), uuid.New(), hostID, decimal.NewFromInt(10), 100, time.Now())
	if !errors.Is(err, ErrNothingToCredit) {
		t.Fatalf("expected ErrNothingToCredit, got %v", err)
	}
	if !repo.Balance(hostID).IsZero() {
		t.Error("balance moved although nothing was credited")
	}
}
