package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/raidstats/internal/adapters/http/api"
	"github.com/okian/raidstats/internal/adapters/http/swagger"
	"github.com/okian/raidstats/internal/adapters/mq/relay"
	"github.com/okian/raidstats/internal/adapters/repository"
	"github.com/okian/raidstats/internal/adapters/roster"
	app "github.com/okian/raidstats/internal/app"
	"github.com/okian/raidstats/internal/config"
	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/pkg/logger"
	"github.com/okian/raidstats/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	bodySlack                 = 64 << 10
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be available yet.
		os.Stderr.WriteString("raidstats: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		svc.Stop()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	var relays sync.WaitGroup
	if cfg.RelayEnabled {
		consumers, err := newRelayConsumers(cfg, svc, log)
		if err != nil {
			return err
		}
		for _, c := range consumers {
			relays.Add(1)
			go func(c *relay.Consumer) {
				defer relays.Done()
				defer func() { _ = c.Close() }()
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error(ctx, "relay consumer stopped", logger.Error(err))
				}
			}(c)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for a shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	relays.Wait()

	log.Info(ctx, "server stopped")
	return nil
}

// newStore selects the key-value collaborator.
func newStore(cfg *config.Config) repository.Store {
	if cfg.StoreBackend == config.BackendRedis {
		return repository.NewRedisStore(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, repository.WithKeyPrefix(cfg.RedisKeyPrefix))
	}
	return repository.NewMemoryStore()
}

// newService builds the raid service and seeds the roster when a file is set.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store := newStore(cfg)
	if cfg.RosterFile != "" {
		n, err := roster.Sync(ctx, cfg.RosterFile, store)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("sync roster: %w", err)
		}
		log.Info(ctx, "roster loaded", logger.String("file", cfg.RosterFile), logger.Int("members", n))
	}
	return app.New(
		app.WithStore(store),
		app.WithLocation(loc),
		app.WithSearchLimit(cfg.SearchLimit),
		app.WithMaxPasteBytes(cfg.MaxPasteBytes),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithLogger(log.Named("service")),
	), nil
}

// newRelayConsumers builds one consumer per relay topic.
func newRelayConsumers(cfg *config.Config, sink relay.Sink, log logger.Logger) ([]*relay.Consumer, error) {
	topics := []struct {
		topic  string
		source model.Source
	}{
		{cfg.KafkaDiscordTopic, model.SourceDiscord},
		{cfg.KafkaTwitchTopic, model.SourceTwitch},
	}
	var out []*relay.Consumer
	for _, t := range topics {
		if t.topic == "" {
			continue
		}
		c, err := relay.NewConsumer(relay.Config{
			Brokers: cfg.Brokers(),
			Topic:   t.topic,
			GroupID: cfg.KafkaGroupID,
			Source:  t.source,
		}, sink,
			relay.WithPollTimeout(cfg.PollTimeout()),
			relay.WithLogger(log.Named("relay."+string(t.source))),
		)
		if err != nil {
			for _, prev := range out {
				_ = prev.Close()
			}
			return nil, fmt.Errorf("relay %s: %w", t.topic, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// newMux registers the API and its OpenAPI document.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithMaxBodyBytes(int64(cfg.MaxPasteBytes)+bodySlack),
		api.WithLogger(log.Named("api")),
	).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
