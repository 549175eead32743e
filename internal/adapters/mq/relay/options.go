package relay

import (
	"time"

	"github.com/okian/raidstats/pkg/logger"
)

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithPollTimeout bounds each FetchMessage call.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.poll = d
		}
	}
}

// WithRetryDelay sets the wait between submits rejected by backpressure.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// withFetcher swaps the Kafka reader, for tests.
func withFetcher(f fetcher) Option {
	return func(c *Consumer) {
		if f != nil {
			c.fetcher = f
		}
	}
}
