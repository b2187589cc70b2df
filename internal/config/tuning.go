package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses yaml scalars in Go duration syntax, like "5s" or "168h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Tuning overrides worker timings and batch sizes. All fields default to
// the values in each worker's DefaultConfig; a tuning file only needs the
// settings it changes.
type Tuning struct {
	Outbox struct {
		PollInterval    Duration `yaml:"poll_interval"`
		BatchSize       int      `yaml:"batch_size"`
		MaxAttempts     int      `yaml:"max_attempts"`
		CleanupInterval Duration `yaml:"cleanup_interval"`
		Retention       Duration `yaml:"retention"`
		LagThreshold    int      `yaml:"lag_threshold"`
	} `yaml:"outbox"`
	Inbox struct {
		CleanupInterval Duration `yaml:"cleanup_interval"`
		Retention       Duration `yaml:"retention"`
	} `yaml:"inbox"`
	DLQ struct {
		FlushInterval Duration `yaml:"flush_interval"`
	} `yaml:"dlq"`
}

func DefaultTuning() Tuning {
	var t Tuning
	t.Outbox.PollInterval = Duration(5 * time.Second)
	t.Outbox.BatchSize = 20
	t.Outbox.MaxAttempts = 5
	t.Outbox.CleanupInterval = Duration(time.Hour)
	t.Outbox.Retention = Duration(7 * 24 * time.Hour)
	t.Outbox.LagThreshold = 1000
	t.Inbox.CleanupInterval = Duration(6 * time.Hour)
	t.Inbox.Retention = Duration(30 * 24 * time.Hour)
	t.DLQ.FlushInterval = Duration(10 * time.Minute)
	return t
}

// LoadTuning returns defaults overlaid with the yaml file at path, or the
// plain defaults when path is empty.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return tuning, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	return tuning, nil
}
