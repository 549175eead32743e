package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "RAIDSTATS_"
	envFileVar = "RAIDSTATS_CONFIG"
)

// ErrLoadConfig wraps file, env and decode failures. ErrInvalidConfig wraps
// Validate failures.
var (
	ErrLoadConfig    = errors.New("load config")
	ErrInvalidConfig = errors.New("invalid config")
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RAIDSTATS_CONFIG is set
//  3. env (prefix RAIDSTATS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RAIDSTATS_QUEUE_SIZE -> queue_size. Underscores are kept so keys stay flat.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == envFileVar {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreBackend != BackendMemory && c.StoreBackend != BackendRedis:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.StoreBackend == BackendRedis && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr required for redis backend", ErrInvalidConfig)
	case c.SearchLimit <= 0:
		return fmt.Errorf("%w: search_limit must be positive", ErrInvalidConfig)
	case c.MaxPasteBytes <= 0:
		return fmt.Errorf("%w: max_paste_bytes must be positive", ErrInvalidConfig)
	case c.RelayEnabled && len(c.Brokers()) == 0:
		return fmt.Errorf("%w: kafka_brokers required when relay is enabled", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}
