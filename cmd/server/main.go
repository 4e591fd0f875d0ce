package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafe_pos_backend/internal/config"
	"cafe_pos_backend/internal/database"
	"cafe_pos_backend/internal/idempotency"
	"cafe_pos_backend/internal/middleware"
	"cafe_pos_backend/internal/realtime"
	"cafe_pos_backend/internal/router"
	"cafe_pos_backend/internal/services"
	"cafe_pos_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.InitLogger("info", true)
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize Logger
	utils.InitLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
	utils.LogInfo("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize Database
	db, err := database.Open(ctx, database.Options{
		DSN:          cfg.DSN(),
		MaxOpenConns: cfg.DBMaxOpenConns,
		SchemaPath:   cfg.DBSchemaPath,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	// Realtime notifiers
	hub := realtime.NewHub()
	notifiers := realtime.Fanout{hub}
	if cfg.RabbitMQURL != "" {
		publisher, err := realtime.DialPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		utils.LogInfo("RabbitMQ notifier enabled", map[string]interface{}{"exchange": cfg.RabbitMQExchange})
	}
	dispatcher := services.NewDispatcher(notifiers, cfg.NotifyTimeout)

	var keyStore middleware.KeyStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			utils.LogWarn(err, "Redis unreachable, idempotency keys will be checked once it recovers", map[string]interface{}{"addr": cfg.RedisAddr})
		}
		keyStore = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), utils.GinLogger())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.IdempotencyKeyHeader, middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Setup all application routes
	router.Setup(engine, db, router.Options{
		JWTSecret:  []byte(cfg.JWTSecret),
		TxTimeout:  cfg.DBTxTimeout,
		Dispatcher: dispatcher,
		Hub:        hub,
		KeyStore:   keyStore,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(hubCtx)
	})
	g.Go(func() error {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.LogInfo("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Deliver events of requests that finished during shutdown before the hub goes away.
		dispatcher.Wait()
		stopHub()
		return err
	})

	return g.Wait()
}
