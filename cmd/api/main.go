package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/config"
	"campusattend/internal/handler"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/logging"
	"campusattend/internal/queue"
	"campusattend/internal/store"
)

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

	if logging.IsProduction(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("api server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.App, log *zap.Logger) error {
	var (
		st     attendance.Store
		health = map[string]func(context.Context) bool{}
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("using in-memory store; data is lost on restart")
		st = attendance.NewMemoryRepository()
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		st = attendance.NewRepository(db.Client)
		health["db"] = db.Healthy
	}

	var q queue.Queue
	switch cfg.QueueBackend {
	case config.BackendMemory:
		q = queue.NewInMemory(64)
	default:
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		health["redis"] = redisClient.Healthy
	}

	engine := attendance.NewEngine(st, cfg.Engine,
		attendance.WithLogger(log.Named("engine")),
		attendance.WithEvents(q))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(log.Named("http"), "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, check := range health {
			ok := check(c.Request.Context())
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	})

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	handler.New(engine, log.Named("handler")).
		Register(r, auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer), limiter.GinMiddleware())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreBackend), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.QueueBackend == config.BackendMemory {
		// Nothing outside this process can read an in-memory queue.
		g.Go(func() error {
			return attendance.NewReconciler(engine, log.Named("reconciler")).Run(ctx, q)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
