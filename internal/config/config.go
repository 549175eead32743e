// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Flat snake_case keys matching the koanf tags below.
//   - New() returns the defaults; Load layers a YAML file and env vars on top.
package config

import (
	"runtime"
	"strings"
	"time"
	_ "time/tzdata" // zone database for slim images
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the key-value collaborator: memory or redis.
	StoreBackend   string `koanf:"store_backend"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// RosterFile optionally points at a members YAML file loaded at startup.
	RosterFile string `koanf:"roster_file"`

	// Timezone is the IANA zone used to interpret pasted log dates.
	Timezone string `koanf:"timezone"`

	// SearchLimit caps GET /members/search results.
	SearchLimit int `koanf:"search_limit"`

	// MaxPasteBytes rejects larger analysis payloads.
	MaxPasteBytes int `koanf:"max_paste_bytes"`

	// EventQueueSize bounds the in-memory relay event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of relay ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the relay event id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RelayEnabled starts the Kafka consumers.
	RelayEnabled       bool   `koanf:"relay_enabled"`
	KafkaBrokers       string `koanf:"kafka_brokers"`
	KafkaDiscordTopic  string `koanf:"kafka_discord_topic"`
	KafkaTwitchTopic   string `koanf:"kafka_twitch_topic"`
	KafkaGroupID       string `koanf:"kafka_group_id"`
	KafkaPollTimeoutMS int    `koanf:"kafka_poll_timeout_ms"`
}

// New creates a Config filled with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		StoreBackend:       BackendMemory,
		RedisAddr:          "localhost:6379",
		RedisKeyPrefix:     "raidstats",
		Timezone:           "Europe/Paris",
		SearchLimit:        10,
		MaxPasteBytes:      1 << 20,
		EventQueueSize:     10_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		KafkaDiscordTopic:  "raids.discord",
		KafkaTwitchTopic:   "raids.twitch",
		KafkaGroupID:       "raidstats",
		KafkaPollTimeoutMS: 1000,
	}
}

// Brokers splits KafkaBrokers on commas, dropping blanks.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// PollTimeout returns the Kafka fetch wait as a duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.KafkaPollTimeoutMS) * time.Millisecond
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
