package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Prefix is the environment variable prefix, e.g. LIFESYNC_LOG_LEVEL.
const Prefix = "LIFESYNC"

// Config holds every tunable of the state engine.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// Local cache
	DataDir   string `envconfig:"DATA_DIR" default:""`
	CacheFile string `envconfig:"CACHE_FILE" default:""`

	// Remote store; empty DSN runs local-only.
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	UserID      string `envconfig:"USER_ID" default:""`

	// LLM defaults, used when settings carry no active connection.
	LLMBaseURL     string        `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	LLMAPIKey      string        `envconfig:"LLM_API_KEY" default:""`
	LLMModel       string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMTemperature float64       `envconfig:"LLM_TEMPERATURE" default:"0.8"`
	LLMMaxTokens   int           `envconfig:"LLM_MAX_TOKENS" default:"1200"`
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// Sync
	CriticalFetchTimeout time.Duration `envconfig:"CRITICAL_FETCH_TIMEOUT" default:"10s"`
	SyncGateDelay        time.Duration `envconfig:"SYNC_GATE_DELAY" default:"1s"`

	// Mutations
	UndoTTL          time.Duration `envconfig:"UNDO_TTL" default:"6s"`
	ActivityLogLimit int           `envconfig:"ACTIVITY_LOG_LIMIT" default:"200"`

	// Triggers
	DigestSchedule         string        `envconfig:"DIGEST_SCHEDULE" default:"@every 60s"`
	DigestBucketHours      int           `envconfig:"DIGEST_BUCKET_HOURS" default:"4"`
	DigestActivityWindow   time.Duration `envconfig:"DIGEST_ACTIVITY_WINDOW" default:"4h"`
	DigestActivityScan     int           `envconfig:"DIGEST_ACTIVITY_SCAN" default:"50"`
	ChainLength            int           `envconfig:"CHAIN_LENGTH" default:"1"`
	ServerQueueForSignedIn bool          `envconfig:"SERVER_QUEUE_FOR_SIGNED_IN" default:"false"`

	// Status HTTP surface
	StatusPort int `envconfig:"STATUS_PORT" default:"8787"`
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.DigestBucketHours <= 0 || 24%c.DigestBucketHours != 0 {
		return fmt.Errorf("DIGEST_BUCKET_HOURS must divide 24, got %d", c.DigestBucketHours)
	}
	if c.ActivityLogLimit <= 0 {
		return fmt.Errorf("ACTIVITY_LOG_LIMIT must be positive, got %d", c.ActivityLogLimit)
	}
	if c.ChainLength <= 0 {
		return fmt.Errorf("CHAIN_LENGTH must be positive, got %d", c.ChainLength)
	}
	if c.UndoTTL <= 0 {
		return fmt.Errorf("UNDO_TTL must be positive, got %s", c.UndoTTL)
	}
	if c.CriticalFetchTimeout <= 0 {
		return fmt.Errorf("CRITICAL_FETCH_TIMEOUT must be positive, got %s", c.CriticalFetchTimeout)
	}
	return nil
}

// New creates a Config from LIFESYNC_ prefixed environment variables.
// Example: LIFESYNC_POSTGRES_DSN, LIFESYNC_UNDO_TTL
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("log_level", cfg.LogLevel).
		Str("postgres_dsn_present", fmt.Sprint(cfg.PostgresDSN != "")).
		Str("llm_base_url", cfg.LLMBaseURL).
		Str("llm_model", cfg.LLMModel).
		Dur("critical_fetch_timeout", cfg.CriticalFetchTimeout).
		Dur("undo_ttl", cfg.UndoTTL).
		Str("digest_schedule", cfg.DigestSchedule).
		Bool("server_queue_for_signed_in", cfg.ServerQueueForSignedIn).
		Int("status_port", cfg.StatusPort).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config with short delays and no remote DSN.
func NewForTesting() *Config {
	return &Config{
		Environment:          EnvTesting,
		LogLevel:             "debug",
		LLMBaseURL:           "http://127.0.0.1:0",
		LLMModel:             "test-model",
		LLMTemperature:       0.8,
		LLMMaxTokens:         256,
		LLMTimeout:           time.Second,
		CriticalFetchTimeout: 500 * time.Millisecond,
		SyncGateDelay:        10 * time.Millisecond,
		UndoTTL:              6 * time.Second,
		ActivityLogLimit:     200,
		DigestSchedule:       "@every 60s",
		DigestBucketHours:    4,
		DigestActivityWindow: 4 * time.Hour,
		DigestActivityScan:   50,
		ChainLength:          1,
		StatusPort:           0,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// StatusAddr returns the status server listen address.
func (c *Config) StatusAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.StatusPort)
}
