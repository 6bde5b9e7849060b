package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	BackendPostgrest = "postgrest"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"

	AuditBackendStore = "store"
	AuditBackendMongo = "mongo"
)

var validate = validator.New()

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development staging production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgrest" validate:"oneof=postgrest postgres memory"`
	AuditBackend string `env:"AUDIT_BACKEND" envDefault:"store" validate:"oneof=store mongo"`

	SupabaseURL            string `env:"SUPABASE_URL" validate:"required_if=StoreBackend postgrest"`
	SupabaseServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY" validate:"required_if=StoreBackend postgrest"`
	DatabaseURL            string `env:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`

	MongoDBURI      string `env:"MONGODB_URI" validate:"required_if=AuditBackend mongo"`
	MongoDBPassword string `env:"MONGODB_PASSWORD"`
	MongoDBDatabase string `env:"MONGODB_DATABASE" envDefault:"meetsweeper"`

	CronSecret       string   `env:"CRON_SECRET"`
	SupabaseJWKSURL  string   `env:"SUPABASE_JWKS_URL" validate:"omitempty,url"`
	CorsAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	PlatformFeePercent int           `env:"PLATFORM_FEE_PERCENT" envDefault:"10" validate:"min=0,max=100"`
	EarningsHoldPeriod time.Duration `env:"EARNINGS_HOLD_PERIOD" envDefault:"24h" validate:"min=0"`
	SweepBatchLimit    int           `env:"SWEEP_BATCH_LIMIT" envDefault:"500" validate:"min=1"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s" validate:"min=0"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.AuditBackend = strings.ToLower(strings.TrimSpace(cfg.AuditBackend))

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// The trigger endpoint moves money; production must not run it unauthenticated.
	if cfg.IsProduction() && cfg.CronSecret == "" && cfg.SupabaseJWKSURL == "" {
		return nil, fmt.Errorf("CRON_SECRET or SUPABASE_JWKS_URL is required in production")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SchedulerAuthConfigured reports whether any trigger credential is set.
func (c *Config) SchedulerAuthConfigured() bool {
	return c.CronSecret != "" || c.SupabaseJWKSURL != ""
}
