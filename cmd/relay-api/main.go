package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/chat"
	"github.com/collab-messenger/relay/internal/common/config"
	"github.com/collab-messenger/relay/internal/common/logging"
	"github.com/collab-messenger/relay/internal/dm"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/friends"
	"github.com/collab-messenger/relay/internal/gateway"
	"github.com/collab-messenger/relay/internal/gif"
	"github.com/collab-messenger/relay/internal/identity"
	"github.com/collab-messenger/relay/internal/infra"
	"github.com/collab-messenger/relay/internal/infra/cache"
	"github.com/collab-messenger/relay/internal/infra/db"
	"github.com/collab-messenger/relay/internal/infra/migrations"
	"github.com/collab-messenger/relay/internal/membership"
	"github.com/collab-messenger/relay/internal/messages"
	"github.com/collab-messenger/relay/internal/middleware"
	"github.com/collab-messenger/relay/internal/notifications"
	"github.com/collab-messenger/relay/internal/observability"
	"github.com/collab-messenger/relay/internal/presence"
	"github.com/collab-messenger/relay/internal/ratelimit"
	"github.com/collab-messenger/relay/internal/readtracking"
	"github.com/collab-messenger/relay/internal/storage"
	"github.com/collab-messenger/relay/internal/typing"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting relay-api",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
	)

	database, err := db.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	logger.Info("connected to database")

	ctx := context.Background()

	if err := migrations.Run(ctx, database.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied successfully")

	var cacheClient *cache.Cache
	if cfg.Redis.Enabled {
		cacheClient, err = cache.New(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			logger.Warn("failed to connect to redis, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer func() {
				if err := cacheClient.Close(); err != nil {
					logger.Error("failed to close cache", zap.Error(err))
				}
			}()
			logger.Info("connected to redis")
		}
	}

	metrics := observability.NewMetrics(logger)
	healthChecker := observability.NewHealthChecker(logger, version)

	healthChecker.RegisterCheck("database", func(ctx context.Context) (observability.HealthStatus, string, error) {
		if err := database.Health(ctx); err != nil {
			return observability.StatusUnhealthy, "database connection failed", err
		}
		return observability.StatusHealthy, "database connection ok", nil
	})
	if cacheClient != nil {
		healthChecker.RegisterCheck("redis", func(ctx context.Context) (observability.HealthStatus, string, error) {
			if err := cacheClient.Ping(ctx); err != nil {
				return observability.StatusDegraded, "redis connection failed", err
			}
			return observability.StatusHealthy, "redis connection ok", nil
		})
	}

	verifier := auth.NewVerifier(cfg.Auth.TokenSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenAudience)

	rateLimiter := ratelimit.NewLimiter(
		cacheClient,
		cfg.RateLimit.RequestsPerMinute,
		cfg.RateLimit.Burst,
		cfg.RateLimit.Enabled,
	)
	defer rateLimiter.Close()

	eventsHub := events.NewHub(logger)
	eventsHub.OnDrop(metrics.RecordDroppedEvent)

	readRepo := readtracking.NewRepository(database.Pool)

	publishers := []notifications.Publisher{
		notifications.NewHubPublisher(eventsHub, readRepo),
	}
	if cfg.Notifications.KafkaEnabled {
		kafkaPub := notifications.NewKafkaPublisher(
			strings.Split(cfg.Notifications.KafkaBrokers, ","),
			cfg.Notifications.KafkaTopic,
		)
		defer func() {
			if err := kafkaPub.Close(); err != nil {
				logger.Error("failed to close kafka writer", zap.Error(err))
			}
		}()
		publishers = append(publishers, kafkaPub)
		logger.Info("kafka notification publisher enabled",
			zap.String("topic", cfg.Notifications.KafkaTopic))
	}
	dispatcher := notifications.NewDispatcher(
		cfg.Notifications.QueueSize,
		cfg.Notifications.Workers,
		logger,
		publishers...,
	)
	dispatcher.OnDepthChange(metrics.SetNotificationQueueDepth)
	defer dispatcher.Shutdown()

	aside := cache.NewAsidePattern(cacheClient)
	if cacheClient == nil {
		aside = nil
	} else {
		aside.OnLookup(func(hit bool) {
			metrics.RecordCacheHit("membership", hit)
		})
	}

	allocator := infra.NewSequenceAllocator(1)

	identityRepo := identity.NewRepositoryWithCache(database.Pool, cacheClient)
	identityService := identity.NewService(identityRepo, eventsHub)
	identityHandler := identity.NewHandler(identityService)

	messagesRepo := messages.NewRepository(database.Pool, allocator)

	membershipRepo := membership.NewRepository(database.Pool)
	membershipService := membership.NewService(membershipRepo, messagesRepo, eventsHub, aside)
	membershipHandler := membership.NewHandler(membershipService)

	dmRepo := dm.NewRepository(database.Pool)
	dmService := dm.NewService(dmRepo, eventsHub, membershipService)
	dmHandler := dm.NewHandler(dmService)

	chatService := chat.NewService(messagesRepo, membershipService, membershipRepo, eventsHub, dispatcher, logger).WithObserver(metrics)
	chatHandler := chat.NewHandler(chatService)

	readService := readtracking.NewService(readRepo, membershipService, eventsHub)
	readHandler := readtracking.NewHandler(readService)

	friendsRepo := friends.NewRepositoryWithCache(database.Pool, cacheClient)
	friendsService := friends.NewService(friendsRepo, eventsHub)
	friendsHandler := friends.NewHandler(friendsService)

	presenceManager := presence.NewManager(identityRepo, friendsRepo, membershipRepo, eventsHub, presence.Config{
		CheckInterval:    cfg.Presence.HeartbeatInterval,
		AwayThreshold:    cfg.Presence.AwayThreshold,
		OfflineThreshold: cfg.Presence.OfflineThreshold,
	})
	defer presenceManager.Stop()
	presenceHandler := presence.NewHandler(presenceManager)

	typingRepo := typing.NewRepository()
	typingService := typing.NewService(typingRepo, membershipService, eventsHub)
	defer typingService.Stop()

	notifRepo := notifications.NewRepository(database.Pool)
	notifService := notifications.NewService(notifRepo, messagesRepo, readService, friendsRepo, dispatcher)
	notifHandler := notifications.NewHandler(notifService)

	gifClient := gif.NewClient(cfg.Gif)
	gifHandler := gif.NewHandler(gifClient)

	var storageHandler *storage.Handler
	if cfg.Storage.AccessKey != "" {
		storageClient, err := storage.NewClient(ctx, cfg.Storage)
		if err != nil {
			logger.Warn("object storage unavailable, uploads disabled", zap.Error(err))
		} else {
			storageHandler = storage.NewHandler(storageClient)
		}
	}

	gatewayHandler := gateway.NewHandler(
		verifier,
		eventsHub,
		membershipService,
		membershipRepo,
		messagesRepo,
		presenceManager,
		typingService,
		logger,
	).WithMetrics(metrics)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logging(logger),
		metrics.GinMiddleware(),
	)

	// The socket authenticates itself from the token query parameter.
	gatewayHandler.RegisterRoutes(router)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(verifier), ratelimit.Middleware(rateLimiter, "default"))
	identityHandler.RegisterRoutes(api)
	membershipHandler.RegisterRoutes(api)
	dmHandler.RegisterRoutes(api)
	chatHandler.RegisterRoutes(api)
	readHandler.RegisterRoutes(api)
	friendsHandler.RegisterRoutes(api)
	presenceHandler.RegisterRoutes(api)
	notifHandler.RegisterRoutes(api)
	gifHandler.RegisterRoutes(api)
	if storageHandler != nil {
		storageHandler.RegisterRoutes(api)
	}

	serverCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := metrics.Start(serverCtx, cfg.Server.MetricsPort); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		if err := healthChecker.Start(serverCtx, cfg.Server.MetricsPort+1); err != nil {
			logger.Error("health server failed", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-serverCtx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := eventsHub.Shutdown(shutdownCtx); err != nil {
		logger.Error("hub shutdown failed", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
