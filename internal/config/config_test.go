package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.PlatformFeePercent != 10 {
		t.Errorf("expected default fee 10, got %d", cfg.PlatformFeePercent)
	}
	if cfg.EarningsHoldPeriod != 24*time.Hour {
		t.Errorf("expected default hold 24h, got %s", cfg.EarningsHoldPeriod)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("expected ticker disabled by default, got %s", cfg.SweepInterval)
	}
	if cfg.AuditBackend != AuditBackendStore {
		t.Errorf("expected audit backend %q, got %q", AuditBackendStore, cfg.AuditBackend)
	}
	if len(cfg.CorsAllowOrigins) != 1 || cfg.CorsAllowOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected cors origins %v", cfg.CorsAllowOrigins)
	}
}

func TestLoadConfigRequiresSupabaseForPostgrest(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgrest")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when supabase credentials are missing")
	}

	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	if _, err := LoadConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfigRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigRejectsFeeOutOfRange(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("PLATFORM_FEE_PERCENT", "120")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for fee above 100")
	}
}

func TestLoadConfigParseError(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SWEEP_BATCH_LIMIT", "many")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadConfigProductionNeedsTriggerCredential(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CRON_SECRET", "")
	t.Setenv("SUPABASE_JWKS_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without scheduler credentials in production")
	}

	t.Setenv("CRON_SECRET", "s3cret")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() || !cfg.SchedulerAuthConfigured() {
		t.Fatalf("expected production config with auth, got %+v", cfg)
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf strings.Builder
	cfg := &Config{Environment: "production", LogLevel: "warn"}
	logger := NewLogger(cfg, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "meet_id", "m1")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("expected JSON warn line, got %s", out)
	}
}
