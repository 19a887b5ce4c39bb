package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries all runtime settings, loaded from the environment.
type Config struct {
	DBSource string `envconfig:"DB_SOURCE"`
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	Env      string `envconfig:"ENVIRONMENT" default:"development"`

	ChainEnabled     bool          `envconfig:"CHAIN_ENABLED" default:"true"`
	ChainGatewayURL  string        `envconfig:"CHAIN_GATEWAY_URL"`
	ChainAPIKey      string        `envconfig:"CHAIN_API_KEY"`
	ChainCallTimeout time.Duration `envconfig:"CHAIN_CALL_TIMEOUT" default:"10s"`

	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`
	NotifyInterval    time.Duration `envconfig:"NOTIFY_INTERVAL" default:"1h"`
	SweepBatchSize    int           `envconfig:"SWEEP_BATCH_SIZE" default:"100"`

	// Points credited per currency unit on an earn.
	EarnRate int64 `envconfig:"EARN_RATE" default:"100"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.DBSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}
	if cfg.ChainEnabled && cfg.ChainGatewayURL == "" {
		return nil, fmt.Errorf("CHAIN_GATEWAY_URL is required when CHAIN_ENABLED=true")
	}
	return &cfg, nil
}
