package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshua-takyi/meetsweeper/internal/config"
	"github.com/joshua-takyi/meetsweeper/internal/connect"
	"github.com/joshua-takyi/meetsweeper/internal/helpers"
	"github.com/joshua-takyi/meetsweeper/internal/models"
	"github.com/joshua-takyi/meetsweeper/internal/services"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config
	// Database clients; only the ones the configured backends need are set.
	SupabaseClient *supabase.Client
	PostgresDB     *gorm.DB
	MongoDBClient  *mongo.Client

	Store            models.Store
	LedgerService    *services.LedgerService
	LifecycleService *services.LifecycleService
	TokenVerifier    *helpers.TokenVerifier
}

// Clients are the open connections a container is built from.
type Clients struct {
	Supabase *supabase.Client
	Postgres *gorm.DB
	MongoDB  *mongo.Client
}

// Connect opens the connections the configured backends need. If any of them fails,
// the ones already opened are released before the error is returned.
func Connect(cfg *config.Config, logger *slog.Logger) (clients Clients, err error) {
	defer func() {
		if err != nil {
			Release(logger)
			clients = Clients{}
		}
	}()

	switch cfg.StoreBackend {
	case config.BackendPostgrest:
		clients.Supabase, err = connect.InitSupabase(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
		if err != nil {
			return clients, err
		}
		logger.Info("Connected to Supabase successfully")
	case config.BackendPostgres:
		clients.Postgres, err = connect.InitPostgres(cfg.DatabaseURL)
		if err != nil {
			return clients, err
		}
		logger.Info("Connected to Postgres successfully")
	}

	if cfg.AuditBackend == config.AuditBackendMongo {
		clients.MongoDB, err = connect.MongoDBConnect(cfg.MongoDBURI, cfg.MongoDBPassword)
		if err != nil {
			return clients, err
		}
		logger.Info("Connected to MongoDB successfully")
	}
	return clients, nil
}

// NewStore picks the repository for the configured backend and, when requested, routes
// meeting events to MongoDB.
func NewStore(cfg *config.Config, clients Clients) (models.Store, error) {
	var store models.Store
	switch cfg.StoreBackend {
	case config.BackendPostgrest:
		if clients.Supabase == nil {
			return nil, fmt.Errorf("supabase client is required for the %s backend", cfg.StoreBackend)
		}
		store = models.SupabaseNewRepo(clients.Supabase)
	case config.BackendPostgres:
		if clients.Postgres == nil {
			return nil, fmt.Errorf("postgres connection is required for the %s backend", cfg.StoreBackend)
		}
		store = models.PostgresNewRepo(clients.Postgres)
	case config.BackendMemory:
		store = models.MemoryNewRepo()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.AuditBackend == config.AuditBackendMongo {
		if clients.MongoDB == nil {
			return nil, fmt.Errorf("mongodb client is required for the %s audit backend", cfg.AuditBackend)
		}
		store = models.NewAuditedStore(store, models.MongodbNewRepo(clients.MongoDB, cfg.MongoDBDatabase))
	}
	return store, nil
}

// EnsureAuditIndexes creates the MongoDB audit indexes when that sink is in use.
func EnsureAuditIndexes(ctx context.Context, cfg *config.Config, clients Clients) error {
	if cfg.AuditBackend != config.AuditBackendMongo || clients.MongoDB == nil {
		return nil
	}
	return models.MongodbNewRepo(clients.MongoDB, cfg.MongoDBDatabase).EnsureIndexes(ctx)
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, logger *slog.Logger, cfg *config.Config, clients Clients) (*Container, error) {
	store, err := NewStore(cfg, clients)
	if err != nil {
		return nil, err
	}
	if err := EnsureAuditIndexes(ctx, cfg, clients); err != nil {
		logger.Warn("Failed to ensure audit indexes", "error", err)
	}

	c := &Container{
		Logger:         logger,
		Config:         cfg,
		SupabaseClient: clients.Supabase,
		PostgresDB:     clients.Postgres,
		MongoDBClient:  clients.MongoDB,
	}
	c.wireServices(store)

	if cfg.SupabaseJWKSURL != "" {
		verifier, err := helpers.NewJWKSVerifier(cfg.SupabaseJWKSURL)
		if err != nil {
			return nil, err
		}
		c.TokenVerifier = verifier
	}
	return c, nil
}

// NewContainerWithStore builds the services over an existing store.
func NewContainerWithStore(logger *slog.Logger, cfg *config.Config, store models.Store) *Container {
	c := &Container{Logger: logger, Config: cfg}
	c.wireServices(store)
	return c
}

func (c *Container) wireServices(store models.Store) {
	c.Store = store
	c.LedgerService = services.NewLedgerService(store, store, store, c.Config.EarningsHoldPeriod, c.Logger)
	c.LifecycleService = services.NewLifecycleService(store, c.LedgerService, services.LifecycleConfig{
		PlatformFeePercent: c.Config.PlatformFeePercent,
		BatchLimit:         c.Config.SweepBatchLimit,
	}, c.Logger)
}

// Close stops background work and closes every connection.
func (c *Container) Close() {
	if c.TokenVerifier != nil {
		c.TokenVerifier.Close()
	}
	Release(c.Logger)
}

// Release closes every connection Connect opened. It is safe to call more than once.
func Release(logger *slog.Logger) {
	for _, err := range connect.Close() {
		logger.Error("Error closing connection", "error", err)
	}
}
