package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"campusattend/internal/attendance"
	"campusattend/internal/config"
	"campusattend/internal/logging"
	"campusattend/internal/queue"
	"campusattend/internal/store"
)

// Worker consumes class.cancelled events and re-applies the excused cascade.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("worker failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.App, log *zap.Logger) error {
	if cfg.StoreBackend != config.BackendPostgres || cfg.QueueBackend != config.BackendRedis {
		return fmt.Errorf("worker needs shared backends, got store=%s queue=%s", cfg.StoreBackend, cfg.QueueBackend)
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet; consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	engine := attendance.NewEngine(attendance.NewRepository(db.Client), cfg.Engine,
		attendance.WithLogger(log.Named("engine")))
	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)

	return attendance.NewReconciler(engine, log.Named("reconciler")).Run(ctx, q)
}
