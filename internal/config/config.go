// Package config loads environment configuration and the optional worker
// tuning file.
package config

import (
	"github.com/caarlos0/env/v11"
)

// Config holds process-level settings shared by the binaries. Database
// settings live in the dbconfig package.
type Config struct {
	Port            string `env:"PORT"              envDefault:"8080"`
	NATSURL         string `env:"NATS_URL"          envDefault:"nats://localhost:4222"`
	LogLevel        string `env:"LOG_LEVEL"         envDefault:"info"`
	ConsumerName    string `env:"CONSUMER_NAME"     envDefault:"orderhub-inbox"`
	DLQConsumerName string `env:"DLQ_CONSUMER_NAME" envDefault:"orderhub-dlq"`
	DLQBatchMode    bool   `env:"DLQ_BATCH_MODE"    envDefault:"false"`
	AlertWebhookURL string `env:"ALERT_WEBHOOK_URL"`
	TuningPath      string `env:"TUNING_PATH"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
