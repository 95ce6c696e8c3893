package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"callpulse-server/pkg/analytics"
	"callpulse-server/pkg/cache"
	"callpulse-server/pkg/config"
	"callpulse-server/pkg/events"
	"callpulse-server/pkg/http"
	"callpulse-server/pkg/metrics"
	"callpulse-server/pkg/store"
	"callpulse-server/pkg/util"
	"callpulse-server/pkg/ws"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(config.ParseLogLevel(cfg.LogLevel))

	metrics.Init()

	pgStore, err := store.NewPostgresStore(cfg.Postgres, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	var redisCache *cache.RedisCache
	if cfg.RedisOn {
		redisCache = cache.NewRedisCache(cfg.Redis, logger)
	} else {
		redisCache = cache.Disabled(logger)
	}

	hub := ws.NewHub(logger, nil, pgStore)
	pipeline := analytics.NewPipeline(logger, cfg.Pipeline, pgStore, redisCache, hub)
	hub.SetState(pipeline)

	hub.Run()
	pipeline.Start()

	subscriber := events.NewSubscriber(logger, cfg.AMQP, pipeline)
	if err := subscriber.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start event subscriber")
	}

	server := http.NewServer(logger, http.Config{ListenAddr: cfg.HTTPListenAddr}, hub, pipeline)
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Intake stops first, then the pipeline, then its backing stores.
	shutdown := util.NewGracefulShutdown(logger, 30*time.Second)
	shutdown.Register(util.ShutdownResource{Name: "http_server", Priority: 10, Shutdown: server.Shutdown})
	shutdown.Register(util.ShutdownResource{Name: "event_subscriber", Priority: 20, Shutdown: subscriber.Stop})
	shutdown.Register(util.ShutdownResource{Name: "analytics_pipeline", Priority: 30, Shutdown: pipeline.Stop})
	shutdown.RegisterCloser("websocket_hub", hub, 40)
	shutdown.RegisterCloser("redis_cache", redisCache, 50)
	shutdown.RegisterCloser("postgres_store", pgStore, 60)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	if err := shutdown.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}
}
