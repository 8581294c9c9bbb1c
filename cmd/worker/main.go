package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/snigdhasv/email-delivery-service/internal/config"
	"github.com/snigdhasv/email-delivery-service/internal/mail"
	"github.com/snigdhasv/email-delivery-service/internal/queue"
	"github.com/snigdhasv/email-delivery-service/internal/store"
	"github.com/snigdhasv/email-delivery-service/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.ResendAPIKey == "" {
		logger.Error("RESEND_API_KEY is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	q := queue.New(redisStore.Client(), logger)
	limiter := queue.NewRateLimiter(redisStore.Client(), logger)
	sender := mail.NewResendSender(cfg.ResendAPIKey)

	processor := worker.NewProcessor(pgStore, sender, q, logger, cfg.RetryBaseDelay)
	pool := worker.NewPool(cfg.WorkerConcurrency, processor, logger)
	dispatcher := worker.NewDispatcher(q, limiter, pool, cfg.DispatchRatePerSecond, logger)

	// The dispatcher stops on signal; the pool keeps its own context so
	// in-flight dispatches drain instead of being cancelled mid-update.
	dispatchCtx, stopDispatch := context.WithCancel(ctx)

	pool.Start(ctx)
	go dispatcher.Start(dispatchCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")

	// The pool's channel must stay open until the dispatcher's in-flight
	// poll has submitted everything it claimed.
	stopDispatch()
	dispatcher.Wait()
	pool.Stop()

	logger.Info("worker stopped")
}
