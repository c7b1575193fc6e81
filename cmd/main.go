package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/augustino-massawe/chat-notifier/internal/config"
	"github.com/augustino-massawe/chat-notifier/internal/consumer"
	"github.com/augustino-massawe/chat-notifier/internal/dedup"
	"github.com/augustino-massawe/chat-notifier/internal/dispatcher"
	"github.com/augustino-massawe/chat-notifier/internal/push"
	"github.com/augustino-massawe/chat-notifier/internal/store"
	pkglog "github.com/augustino-massawe/chat-notifier/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "chat-notifier",
	})
	logger := pkglog.L()

	logger.Info().Msg("starting chat notifier")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store
	st, err := store.NewMongoStore(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize mongodb store")
	}
	logger.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	// Redelivery guard (best effort, optional)
	var guard dedup.Guard = dedup.Nop{}
	if cfg.Redis.Enabled {
		rg, err := dedup.NewRedisGuard(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize redis guard")
		}
		guard = rg
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	}

	// Push delivery provider
	sender, err := push.NewFCMSender(ctx, cfg.Push)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize fcm sender")
	}
	logger.Info().Dur("send_timeout", cfg.Push.SendTimeout).Msg("fcm sender initialized")

	d := dispatcher.New(st, sender, guard, cfg.Push.SendTimeout)

	cons, err := consumer.New(cfg.Kafka, d)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	logger.Info().
		Str("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Msg("kafka consumer created")

	// Health HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      pkglog.HTTPMiddleware(logger)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("health server error")
		}
	}()

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- cons.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("received shutdown signal")
	case err := <-consumerDone:
		if err != nil {
			logger.Error().Err(err).Msg("consumer exited with error")
		}
	}

	logger.Info().Msg("shutting down chat notifier")
	cancel()

	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer shutdown timed out")
	}

	cons.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	guard.Close()
	st.Close(shutdownCtx)

	logger.Info().Msg("chat notifier stopped")
}
