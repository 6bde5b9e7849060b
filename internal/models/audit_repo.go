package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MeetingEventsCollection = "meeting_events"

func (su *SupabaseRepo) AppendMeetingEvent(ctx context.Context, event *MeetingEvent) error {
	if event.MeetID == uuid.Nil || event.EventType == "" {
		return fmt.Errorf("meeting event needs a meet ID and a type")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = su.now().UTC()
	}

	_, _, err := su.supabaseClient.From(MeetingEventsTable).
		Insert(event, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert meeting event %s: %w", event.EventType, err)
	}
	return nil
}

func (su *SupabaseRepo) CreateNotification(ctx context.Context, notification *Notification) error {
	if notification.UserID == uuid.Nil {
		return fmt.Errorf("invalid user ID")
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = su.now().UTC()
	}

	_, _, err := su.supabaseClient.From(NotificationsTable).
		Insert(notification, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// AppendMeetingEvent stores the audit line as a document; ids are kept as strings so the
// collection can be queried by the same values the relational tables use.
func (mdb *MongodbRepo) AppendMeetingEvent(ctx context.Context, event *MeetingEvent) error {
	if event.MeetID == uuid.Nil || event.EventType == "" {
		return fmt.Errorf("meeting event needs a meet ID and a type")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	col, err := mdb.GetCollection(ctx, MeetingEventsCollection)
	if err != nil {
		return fmt.Errorf("failed to append meeting event: %w", err)
	}

	doc := bson.M{
		"_id":        event.ID.String(),
		"meet_id":    event.MeetID.String(),
		"event_type": event.EventType,
		"metadata":   event.Metadata,
		"created_at": event.CreatedAt,
	}
	if _, err := col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert meeting event into database: %w", err)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes on the meeting events collection.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, MeetingEventsCollection)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "meet_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("meet_created_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("event_type_created_at_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating indexes: %w", err)
	}
	return nil
}
