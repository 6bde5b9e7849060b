package connect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	SupabaseClient *supabase.Client
	PostgresDB     *gorm.DB
	MongoDBClient  *mongo.Client
)

// InitSupabase builds a PostgREST client authenticated with the service role key.
// The sweep writes across users, so the anon key is not enough.
func InitSupabase(url, serviceRoleKey string) (*supabase.Client, error) {
	if url == "" || serviceRoleKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	client, err := supabase.NewClient(url, serviceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	SupabaseClient = client
	return client, nil
}

func Disconnect() {
	SupabaseClient = nil
}

func InitPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get postgres handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	PostgresDB = db
	return db, nil
}

func PostgresDisconnect() error {
	if PostgresDB == nil {
		return nil
	}
	sqlDB, err := PostgresDB.DB()
	if err != nil {
		return err
	}
	PostgresDB = nil
	return sqlDB.Close()
}

// MongoDBConnect connects the audit sink. A "<password>" placeholder in uri is
// replaced with password.
func MongoDBConnect(uri, password string) (*mongo.Client, error) {
	fullUri := strings.Replace(uri, "<password>", password, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(fullUri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	MongoDBClient = client
	return client, nil
}

func MongoDBDisconnect() error {
	if MongoDBClient == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := MongoDBClient.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	MongoDBClient = nil
	return nil
}

// Close releases every connection that was opened.
func Close() []error {
	var errs []error
	Disconnect()
	if err := PostgresDisconnect(); err != nil {
		errs = append(errs, err)
	}
	if err := MongoDBDisconnect(); err != nil {
		errs = append(errs, err)
	}
	return errs
}
