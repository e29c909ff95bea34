package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketscout/internal/alerting"
	"marketscout/internal/auth"
	"marketscout/internal/cache"
	"marketscout/internal/config"
	"marketscout/internal/database"
	"marketscout/internal/engine"
	"marketscout/internal/events"
	"marketscout/internal/export"
	"marketscout/internal/handlers"
	"marketscout/internal/logger"
	"marketscout/internal/notifications"
	"marketscout/internal/ratelimit"
	"marketscout/internal/scheduler"
	"marketscout/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Error("API server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, "marketscout-api", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}()

	store, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	clientIPs, err := ratelimit.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	deps := handlers.Deps{
		Store:     store,
		Tokens:    auth.NewTokenManager(cfg.SecretKey, cfg.TokenLifetime()),
		ClientIPs: clientIPs,
		Hub:       handlers.NewHub(),
		Settings:  handlers.SettingsFromConfig(cfg),
	}

	// Without Redis the API still serves: no response cache, no rate limiting and
	// alerts reach only the connections of this instance.
	var publisher cache.Publisher
	rdb, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Log.Warn("Redis unavailable, running without cache, rate limiting and alert fan-out", zap.Error(err))
	} else {
		defer rdb.Close()

		deps.Cache = cache.New(rdb, cfg.Instance)
		deps.Limiter = ratelimit.NewRedisLimiter(rdb)
		publisher = cache.NewPublisher(rdb)

		sub, err := cache.NewRedisSubscriber(ctx, rdb, cache.AlertsChannel)
		if err != nil {
			return err
		}
		defer sub.Close()
		g.Go(func() error {
			return deps.Hub.Run(ctx, sub)
		})
	}

	engineOpts := []engine.Option{}
	if cfg.JitterSeed != 0 {
		engineOpts = append(engineOpts, engine.WithJitter(engine.NewRandomJitter(cfg.JitterSeed)))
	}
	if cfg.KafkaEnabled() {
		producer, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
		if err != nil {
			return err
		}
		defer producer.Close()
		engineOpts = append(engineOpts, engine.WithPublisher(producer))
		logger.Log.Info("Publishing trend scores to Kafka", zap.String("topic", cfg.Topic))
	}
	trendEngine := engine.New(store, engineOpts...)

	if publisher == nil {
		publisher = deps.Hub
	}

	deps.Engine = trendEngine
	deps.Exporter = export.New(store)
	deps.Dispatcher = alerting.NewDispatcher(store, publisher, notifications.FromConfig(cfg.Notifications), "api")

	if cfg.RescoreSchedule != "" {
		var schedOpts []scheduler.Option
		if deps.Cache != nil {
			schedOpts = append(schedOpts, scheduler.WithInvalidator(deps.Cache))
		}
		rescorer := scheduler.NewService(store, trendEngine, schedOpts...)
		if err := rescorer.Start(cfg.RescoreSchedule); err != nil {
			return err
		}
		defer rescorer.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.NewRouter(handlers.NewServer(deps)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Log.Info("API server starting",
			zap.String("port", cfg.Port),
			zap.String("instance", cfg.Instance),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Log.Info("Shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
