package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CADENZA_CONFIG is set
//  3. env (prefix CADENZA_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CADENZA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: CADENZA_ADDR, CADENZA_WORKER_COUNT, ...
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("CADENZA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "cadenza_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ScrobblesPath == "":
		return fmt.Errorf("%w: scrobbles_path must not be empty", ErrInvalidConfig)
	case c.CheckpointDir == "":
		return fmt.Errorf("%w: checkpoint_dir must not be empty", ErrInvalidConfig)
	case c.DatasetPath == "":
		return fmt.Errorf("%w: dataset_path must not be empty", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.CallDelayMS < 0:
		return fmt.Errorf("%w: call_delay_ms must not be negative", ErrInvalidConfig)
	}
	if c.WorkerCount > maxWorkerCount {
		c.WorkerCount = maxWorkerCount
	}
	return nil
}
