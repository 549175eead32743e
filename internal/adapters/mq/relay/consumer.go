// Package relay consumes Discord and Twitch relay topics from Kafka and hands
// the decoded raids to the service.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/raidstats/internal/adapters/mq/queue"
	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/pkg/logger"
	"github.com/okian/raidstats/pkg/metrics"
)

const (
	defaultPollTimeout = 5 * time.Second
	defaultRetryDelay  = 100 * time.Millisecond
)

// Sink accepts decoded relay events. accepted is false for duplicates.
type Sink interface {
	Submit(ctx context.Context, e model.SourceEvent) (accepted bool, err error)
}

// Config selects the topic and the source its messages imply.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	Source  model.Source
}

type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic and submits every message to a Sink.
type Consumer struct {
	cfg        Config
	fetcher    fetcher
	sink       Sink
	poll       time.Duration
	retryDelay time.Duration
	logger     logger.Logger
}

// NewConsumer validates cfg and builds a group reader for it.
func NewConsumer(cfg Config, sink Sink, opts ...Option) (*Consumer, error) {
	switch {
	case len(cfg.Brokers) == 0:
		return nil, fmt.Errorf("%w: at least one broker is required", ErrConfig)
	case strings.TrimSpace(cfg.Topic) == "":
		return nil, fmt.Errorf("%w: topic must not be empty", ErrConfig)
	case strings.TrimSpace(cfg.GroupID) == "":
		return nil, fmt.Errorf("%w: consumer group must not be empty", ErrConfig)
	case sink == nil:
		return nil, fmt.Errorf("%w: sink must not be nil", ErrConfig)
	}
	if _, err := model.ParseSource(string(cfg.Source)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	c := &Consumer{
		cfg:        cfg,
		sink:       sink,
		poll:       defaultPollTimeout,
		retryDelay: defaultRetryDelay,
		logger:     logger.Get().Named("relay"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.String("topic", cfg.Topic))
	if c.fetcher == nil {
		c.fetcher = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		})
	}
	return c, nil
}

// Close shuts down the underlying Kafka reader.
func (c *Consumer) Close() error {
	if c == nil || c.fetcher == nil {
		return nil
	}
	return c.fetcher.Close()
}

// Run blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "relay consumer started",
		logger.String("group", c.cfg.GroupID),
		logger.String("source", string(c.cfg.Source)),
		logger.String("brokers", strings.Join(c.cfg.Brokers, ",")),
		logger.Duration("pollTimeout", c.poll),
	)
	defer c.logger.Info(ctx, "relay consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.fetcher.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			metrics.RecordRelayError("fetch")
			c.logger.Error(ctx, "relay fetch failed", logger.Error(err))
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// The offset stays uncommitted.
			return err
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.fetcher.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				metrics.RecordRelayError("commit")
				c.logger.Error(ctx, "relay commit failed", logger.Error(err))
			}
		}
		commitCancel()
	}
}

// handle decodes and submits msg, waiting out backpressure. Undecodable or
// rejected messages are logged and dropped. A closed queue stops the consumer
// before the offset is committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ev, err := decodeMessage(msg, c.cfg.Source)
	if err != nil {
		metrics.RecordRelayError("decode")
		c.logger.Warn(ctx, "relay decode failed", logger.Error(err), logger.Any("offset", msg.Offset))
		return nil
	}

	for {
		accepted, err := c.sink.Submit(ctx, ev)
		switch {
		case err == nil:
			if !accepted {
				c.logger.Debug(ctx, "relay duplicate dropped", logger.String("eventID", ev.ID))
			}
			return nil
		case errors.Is(err, queue.ErrFull):
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, queue.ErrClosed):
			return err
		default:
			metrics.RecordRelayError("submit")
			c.logger.Error(ctx, "relay submit failed", logger.String("eventID", ev.ID), logger.Error(err))
			return nil
		}
	}
}
