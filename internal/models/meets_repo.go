package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supabase-community/postgrest-go"
)

// formatTimestamp renders t the way PostgREST filters expect it.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// isUniqueViolation matches PostgREST's rendering of SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

func (su *SupabaseRepo) ListMeetsByStatus(ctx context.Context, status MeetStatus, scheduledBefore *time.Time, limit int) ([]*Meet, error) {
	query := su.supabaseClient.From(MeetsTable).
		Select("*", "", false).
		Eq("status", string(status))
	if scheduledBefore != nil {
		query = query.Lte("scheduled_at", formatTimestamp(*scheduledBefore))
	}
	query = query.Order("scheduled_at", &postgrest.OrderOpts{Ascending: true})
	if limit > 0 {
		query = query.Limit(limit, "")
	}

	raw, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s meets: %w", status, err)
	}

	var meets []*Meet
	if err := json.Unmarshal(raw, &meets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meets: %w", err)
	}
	return meets, nil
}

func (su *SupabaseRepo) TransitionMeet(ctx context.Context, id uuid.UUID, from, to MeetStatus, update MeetUpdate) (bool, error) {
	if id == uuid.Nil {
		return false, fmt.Errorf("invalid meet ID")
	}

	cols := update.Columns()
	cols["status"] = string(to)

	// The status filter turns the update into a compare-and-swap: a meet some other run
	// already moved matches zero rows.
	raw, _, err := su.supabaseClient.From(MeetsTable).
		Update(cols, "representation", "").
		Eq("id", id.String()).
		Eq("status", string(from)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to transition meet %s to %s: %w", id, to, err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return false, fmt.Errorf("failed to unmarshal transitioned meet: %w", err)
	}
	return len(rows) > 0, nil
}

func (su *SupabaseRepo) UpdateMeet(ctx context.Context, id uuid.UUID, update MeetUpdate) error {
	cols := update.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("no fields to update")
	}

	raw, _, err := su.supabaseClient.From(MeetsTable).
		Update(cols, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update meet %s: %w", id, err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("failed to unmarshal updated meet: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (su *SupabaseRepo) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	raw, _, err := su.supabaseClient.From(EventsTable).
		Select("id,creator_id,title,winning_bid_id", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	// Supabase returns an array even for single results
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event rows: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return &events[0], nil
}

func (su *SupabaseRepo) GetBid(ctx context.Context, id uuid.UUID) (*Bid, error) {
	raw, _, err := su.supabaseClient.From(BidsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get bid %s: %w", id, err)
	}

	var bids []Bid
	if err := json.Unmarshal(raw, &bids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bid rows: %w", err)
	}
	if len(bids) == 0 {
		return nil, ErrNotFound
	}
	return &bids[0], nil
}

func (su *SupabaseRepo) GetWinningBid(ctx context.Context, eventID uuid.UUID) (*Bid, error) {
	raw, _, err := su.supabaseClient.From(BidsTable).
		Select("*", "", false).
		Eq("event_id", eventID.String()).
		Eq("status", BidStatusWon).
		Order("amount", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get winning bid for event %s: %w", eventID, err)
	}

	var bids []Bid
	if err := json.Unmarshal(raw, &bids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bid rows: %w", err)
	}
	if len(bids) == 0 {
		return nil, ErrNotFound
	}
	return &bids[0], nil
}

func (su *SupabaseRepo) MarkBidRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	raw, _, err := su.supabaseClient.From(BidsTable).
		Update(map[string]interface{}{
			"refund_amount": amount,
			"refund_status": RefundStatusCompleted,
			"refunded_at":   at.UTC(),
		}, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to mark bid %s refunded: %w", id, err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("failed to unmarshal refunded bid: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}
