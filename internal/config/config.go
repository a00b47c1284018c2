package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                     string        `mapstructure:"PORT"`
	Env                      string        `mapstructure:"ENV"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32         `mapstructure:"DB_MIN_CONNS"`
	BackendBaseURL           string        `mapstructure:"BACKEND_BASE_URL"`
	BackendTimeout           time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	FirestoreProjectID       string        `mapstructure:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentialsFile string        `mapstructure:"FIRESTORE_CREDENTIALS_FILE"`
	SessionSigningKey        string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionTTL               time.Duration `mapstructure:"SESSION_TTL"`
	CORSOrigins              []string      `mapstructure:"CORS_ORIGINS"`
	RosterRefreshMinInterval time.Duration `mapstructure:"ROSTER_REFRESH_MIN_INTERVAL"`
	OutboxPollInterval       time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxMaxAttempts        int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	ClinicTimezone           string        `mapstructure:"CLINIC_TIMEZONE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ROSTER_REFRESH_MIN_INTERVAL", "1500ms")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 5)
	v.SetDefault("CLINIC_TIMEZONE", "Africa/Cairo")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("BACKEND_BASE_URL")
	v.BindEnv("BACKEND_TIMEOUT")
	v.BindEnv("FIRESTORE_PROJECT_ID")
	v.BindEnv("FIRESTORE_CREDENTIALS_FILE")
	v.BindEnv("SESSION_SIGNING_KEY")
	v.BindEnv("SESSION_TTL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("ROSTER_REFRESH_MIN_INTERVAL")
	v.BindEnv("OUTBOX_POLL_INTERVAL")
	v.BindEnv("OUTBOX_MAX_ATTEMPTS")
	v.BindEnv("CLINIC_TIMEZONE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}

	if cfg.IsDev() && cfg.SessionSigningKey == "" {
		log.Println("WARNING: SESSION_SIGNING_KEY is empty; using an ephemeral key.")
		log.Println("WARNING: All sessions are invalidated on restart. Dev mode only.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a session signing key must be set so that issued tokens survive restarts
// and cannot be forged.
func (c *Config) Validate() error {
	if !c.IsDev() && c.SessionSigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.SessionSigningKey != "" && len(c.SessionSigningKey) < 32 {
		return fmt.Errorf("SESSION_SIGNING_KEY must be at least 32 bytes, got %d", len(c.SessionSigningKey))
	}
	if c.RosterRefreshMinInterval < 0 {
		return fmt.Errorf("ROSTER_REFRESH_MIN_INTERVAL must not be negative")
	}
	if c.OutboxMaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be at least 1")
	}
	if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE %q is not a valid IANA zone: %w", c.ClinicTimezone, err)
	}
	return nil
}

// Location returns the clinic's IANA timezone, falling back to UTC when the
// configured zone cannot be loaded. Validate catches bad zones at startup;
// the fallback only matters for zero-value configs in tests.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
