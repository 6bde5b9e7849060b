package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryRepo is an in-process Store used by tests and local development.
// Every operation runs under one mutex, so credits and transitions are atomic.
type MemoryRepo struct {
	mu            sync.Mutex
	meets         map[uuid.UUID]*Meet
	events        map[uuid.UUID]*Event
	bids          map[uuid.UUID]*Bid
	wallets       map[uuid.UUID]*Wallet // keyed by user ID
	ledger        []*WalletTransaction
	meetingEvents []*MeetingEvent
	notifications []*Notification
	now           func() time.Time
}

func MemoryNewRepo() *MemoryRepo {
	return &MemoryRepo{
		meets:   map[uuid.UUID]*Meet{},
		events:  map[uuid.UUID]*Event{},
		bids:    map[uuid.UUID]*Bid{},
		wallets: map[uuid.UUID]*Wallet{},
		now:     time.Now,
	}
}

func (m *MemoryRepo) PutMeet(meet *Meet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *meet
	m.meets[meet.ID] = &cp
}

func (m *MemoryRepo) PutEvent(event *Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events[event.ID] = &cp
}

func (m *MemoryRepo) PutBid(bid *Bid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bid
	m.bids[bid.ID] = &cp
}

func (m *MemoryRepo) PutWallet(wallet *Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *wallet
	m.wallets[wallet.UserID] = &cp
}

// Meet returns a copy of the stored meet, or nil.
func (m *MemoryRepo) Meet(id uuid.UUID) *Meet {
	m.mu.Lock()
	defer m.mu.Unlock()
	meet, ok := m.meets[id]
	if !ok {
		return nil
	}
	cp := *meet
	return &cp
}

func (m *MemoryRepo) Bid(id uuid.UUID) *Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[id]
	if !ok {
		return nil
	}
	cp := *bid
	return &cp
}

// Balance returns the user's wallet balance, zero when no wallet exists.
func (m *MemoryRepo) Balance(userID uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[userID]; ok {
		return w.Balance
	}
	return decimal.Zero
}

// LedgerFor returns the ledger entries that reference the given meet.
func (m *MemoryRepo) LedgerFor(meetID uuid.UUID) []WalletTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WalletTransaction
	for _, e := range m.ledger {
		if e.ReferenceID == meetID {
			out = append(out, *e)
		}
	}
	return out
}

// MeetingEvents returns the audit lines for a meet in insertion order.
func (m *MemoryRepo) MeetingEvents(meetID uuid.UUID) []MeetingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MeetingEvent
	for _, e := range m.meetingEvents {
		if e.MeetID == meetID {
			out = append(out, *e)
		}
	}
	return out
}

func (m *MemoryRepo) NotificationsFor(userID uuid.UUID) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}

func (m *MemoryRepo) ListMeetsByStatus(ctx context.Context, status MeetStatus, scheduledBefore *time.Time, limit int) ([]*Meet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Meet
	for _, meet := range m.meets {
		if meet.Status != status {
			continue
		}
		if scheduledBefore != nil && meet.ScheduledAt.After(*scheduledBefore) {
			continue
		}
		cp := *meet
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) TransitionMeet(ctx context.Context, id uuid.UUID, from, to MeetStatus, update MeetUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meet, ok := m.meets[id]
	if !ok {
		return false, ErrNotFound
	}
	if meet.Status != from {
		return false, nil
	}
	meet.Status = to
	update.Apply(meet)
	return true, nil
}

func (m *MemoryRepo) UpdateMeet(ctx context.Context, id uuid.UUID, update MeetUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meet, ok := m.meets[id]
	if !ok {
		return ErrNotFound
	}
	update.Apply(meet)
	return nil
}

func (m *MemoryRepo) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *event
	return &cp, nil
}

func (m *MemoryRepo) GetBid(ctx context.Context, id uuid.UUID) (*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *bid
	return &cp, nil
}

func (m *MemoryRepo) GetWinningBid(ctx context.Context, eventID uuid.UUID) (*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Bid
	for _, bid := range m.bids {
		if bid.EventID != eventID || bid.Status != BidStatusWon {
			continue
		}
		if best == nil || bid.Amount.GreaterThan(best.Amount) {
			best = bid
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MemoryRepo) MarkBidRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bid, ok := m.bids[id]
	if !ok {
		return ErrNotFound
	}
	status := RefundStatusCompleted
	refundedAt := at
	bid.RefundAmount = &amount
	bid.RefundStatus = &status
	bid.RefundedAt = &refundedAt
	return nil
}

func (m *MemoryRepo) EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("invalid user ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet, ok := m.wallets[userID]
	if !ok {
		now := m.now()
		wallet = &Wallet{ID: uuid.New(), UserID: userID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		m.wallets[userID] = wallet
	}
	cp := *wallet
	return &cp, nil
}

func (m *MemoryRepo) CreditWallet(ctx context.Context, entry *WalletTransaction) (*WalletTransaction, bool, error) {
	if err := Validate.Struct(entry); err != nil {
		return nil, false, fmt.Errorf("invalid ledger entry: %w", err)
	}
	if !entry.Amount.IsPositive() {
		return nil, false, fmt.Errorf("credit amount must be positive, got %s", entry.Amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.ledger {
		if existing.SameReference(entry) {
			cp := *existing
			return &cp, false, nil
		}
	}

	var wallet *Wallet
	for _, w := range m.wallets {
		if w.ID == entry.WalletID {
			wallet = w
			break
		}
	}
	if wallet == nil {
		return nil, false, ErrNotFound
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	wallet.Balance = wallet.Balance.Add(entry.Amount)
	wallet.UpdatedAt = entry.CreatedAt
	cp := *entry
	m.ledger = append(m.ledger, &cp)

	out := cp
	return &out, true, nil
}

func (m *MemoryRepo) AppendMeetingEvent(ctx context.Context, event *MeetingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	cp := *event
	m.meetingEvents = append(m.meetingEvents, &cp)
	return nil
}

func (m *MemoryRepo) CreateNotification(ctx context.Context, notification *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	cp := *notification
	m.notifications = append(m.notifications, &cp)
	return nil
}
