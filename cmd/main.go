package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/directfanz/interact-service/internal/access"
	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/internal/domain"
	"github.com/directfanz/interact-service/internal/firehose"
	"github.com/directfanz/interact-service/internal/handler"
	"github.com/directfanz/interact-service/internal/hub"
	"github.com/directfanz/interact-service/internal/registry"
	"github.com/directfanz/interact-service/internal/repository"
	"github.com/directfanz/interact-service/internal/service"
	"github.com/directfanz/interact-service/pkg/database"
	"github.com/directfanz/interact-service/pkg/jwt"
	pkglog "github.com/directfanz/interact-service/pkg/log"
	"github.com/directfanz/interact-service/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "interact-service",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db,
		&domain.ChatMessageModel{},
		&domain.DonationEventModel{},
		&domain.ViewerRecordModel{},
		&domain.LikeTallyModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	store := repository.NewGormStore(db)

	// Stream registry and access-decision cache share the Redis deploy;
	// both stay off in single-instance setups.
	var reg registry.Registry
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		rr, err := registry.NewRedisRegistry(cfg.Redis, cfg.Server.AdvertiseAddress)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis registry")
		}
		defer rr.Close()
		reg = rr

		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis registry connected")
	}

	// Access checks go to the platform core, collapsed and cached
	httpChecker := access.NewHTTPChecker(cfg.Access)
	defer httpChecker.Close()
	checker := access.NewCachedChecker(httpChecker, redisClient, cfg.Access.CacheTTL)

	// Firehose producer for the analytics pipeline
	var producer firehose.Producer
	if cfg.Kafka.Enabled {
		p, err := firehose.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to kafka")
		}
		producer = p
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka producer connected")
	}

	// Token verifier; tokens are issued by the account service
	verifier, err := jwt.NewVerifierFromFile(cfg.JWT.PublicKeyFile, cfg.JWT.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load jwt public key")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize hub
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run(ctx)

	// Initialize interact service
	svc := service.NewInteractService(wsHub, store, checker, producer, reg, cfg.Chat)
	if err := svc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start interact service")
	}
	defer svc.Stop()

	// Handlers
	wsHandler := handler.NewWSHandler(wsHub, svc, verifier, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(wsHub, middleware.NewAuthMiddleware(verifier))

	// Gin router for the REST surface
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(router)

	// One listener serves the WebSocket endpoint, metrics and REST
	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("interact service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down interact service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}

	// Closing the sockets drives every client through the normal
	// disconnect path before the deferred Stop flushes the firehose.
	wsHub.Shutdown()

	logger.Info().Msg("interact service stopped")
}
