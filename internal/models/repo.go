package models

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

const (
	MeetsTable              = "meets"
	EventsTable             = "events"
	BidsTable               = "bids"
	WalletsTable            = "wallets"
	WalletTransactionsTable = "wallet_transactions"
	MeetingEventsTable      = "meeting_events"
	NotificationsTable      = "notifications"
)

var Validate = validator.New()

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

type MeetRepo interface {
	// ListMeetsByStatus returns meets in status. When scheduledBefore is set only meets
	// with scheduled_at <= *scheduledBefore are returned.
	ListMeetsByStatus(ctx context.Context, status MeetStatus, scheduledBefore *time.Time, limit int) ([]*Meet, error)
	// TransitionMeet moves a meet from one status to another only if it is still in from.
	// It reports whether this call performed the transition.
	TransitionMeet(ctx context.Context, id uuid.UUID, from, to MeetStatus, update MeetUpdate) (bool, error)
	UpdateMeet(ctx context.Context, id uuid.UUID, update MeetUpdate) error
}

type EventRepo interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
}

type BidRepo interface {
	GetBid(ctx context.Context, id uuid.UUID) (*Bid, error)
	// GetWinningBid returns the highest bid with status won for the event.
	GetWinningBid(ctx context.Context, eventID uuid.UUID) (*Bid, error)
	MarkBidRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error
}

type WalletRepo interface {
	// EnsureWallet returns the user's wallet, creating an empty one if none exists.
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// CreditWallet records entry and adds entry.Amount to the wallet balance. If an entry
	// with the same reference already exists it is returned with applied=false and the
	// balance is left alone.
	CreditWallet(ctx context.Context, entry *WalletTransaction) (*WalletTransaction, bool, error)
}

type MeetingEventRepo interface {
	AppendMeetingEvent(ctx context.Context, event *MeetingEvent) error
}

type NotificationRepo interface {
	CreateNotification(ctx context.Context, notification *Notification) error
}

// Store is everything the lifecycle sweep reads and writes.
type Store interface {
	MeetRepo
	EventRepo
	BidRepo
	WalletRepo
	MeetingEventRepo
	NotificationRepo
}

type SupabaseRepo struct {
	supabaseClient *supabase.Client
	now            func() time.Time
}

func SupabaseNewRepo(supabaseClient *supabase.Client) *SupabaseRepo {
	return &SupabaseRepo{
		supabaseClient: supabaseClient,
		now:            time.Now,
	}
}

type PostgresRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func PostgresNewRepo(db *gorm.DB) *PostgresRepo {
	return &PostgresRepo{
		db:  db,
		now: time.Now,
	}
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

// AuditedStore routes meeting-event appends to a separate sink and everything else to Store.
type AuditedStore struct {
	Store
	audit MeetingEventRepo
}

func NewAuditedStore(store Store, audit MeetingEventRepo) *AuditedStore {
	return &AuditedStore{Store: store, audit: audit}
}

func (a *AuditedStore) AppendMeetingEvent(ctx context.Context, event *MeetingEvent) error {
	return a.audit.AppendMeetingEvent(ctx, event)
}
