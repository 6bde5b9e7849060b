package container

import (
	"io"
	"log/slog"
	"testing"

	"github.com/joshua-takyi/meetsweeper/internal/config"
	"github.com/joshua-takyi/meetsweeper/internal/connect"
	"github.com/joshua-takyi/meetsweeper/internal/models"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore(&config.Config{StoreBackend: config.BackendMemory, AuditBackend: config.AuditBackendStore}, Clients{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.(*models.MemoryRepo); !ok {
		t.Errorf("expected memory repo, got %T", store)
	}
}

func TestNewStoreRequiresClients(t *testing.T) {
	cases := []*config.Config{
		{StoreBackend: config.BackendPostgrest, AuditBackend: config.AuditBackendStore},
		{StoreBackend: config.BackendPostgres, AuditBackend: config.AuditBackendStore},
		{StoreBackend: config.BackendMemory, AuditBackend: config.AuditBackendMongo},
		{StoreBackend: "sqlite"},
	}
	for _, cfg := range cases {
		if _, err := NewStore(cfg, Clients{}); err == nil {
			t.Errorf("expected error for backend %q / audit %q", cfg.StoreBackend, cfg.AuditBackend)
		}
	}
}

func TestConnectReleasesOpenedClientsOnFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		StoreBackend:           config.BackendPostgrest,
		SupabaseURL:            "http://127.0.0.1:54321",
		SupabaseServiceRoleKey: "service-role-key",
		AuditBackend:           config.AuditBackendMongo,
		MongoDBURI:             "not-a-mongodb-uri",
	}

	clients, err := Connect(cfg, logger)
	if err == nil {
		t.Fatal("expected the audit connection to fail")
	}
	if clients.Supabase != nil || clients.MongoDB != nil {
		t.Errorf("no clients should be handed back on failure, got %+v", clients)
	}
	if connect.SupabaseClient != nil {
		t.Error("the supabase client opened before the failure was not released")
	}

	// Releasing again after a failed connect is harmless.
	Release(logger)
}
