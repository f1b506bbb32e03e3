package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mitra/config"
	"mitra/cron"
	"mitra/database"
	journalRepo "mitra/database/repository/journal"
	"mitra/handlers"
	"mitra/middleware"
	"mitra/routes"
	"mitra/services/account"
	"mitra/services/booking"
	"mitra/services/gateway"
	"mitra/services/inventory"
	"mitra/services/tasks"
	"mitra/services/transport"
	"mitra/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	cfg := config.AppConfig

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var authStore *utils.AuthSessionStore
	if cfg.RedisEnabled {
		authStore = utils.NewAuthSessionStore(utils.GetCacheClient(), "default")
	}

	// Partner API session and transport.
	session := transport.NewSession(cfg.APIToken, func(reason string) {
		logger.Warn("Partner API session invalidated, sign in again", zap.String("reason", reason))
		if authStore != nil {
			if err := authStore.Delete(context.Background()); err != nil {
				logger.Warn("main: failed to drop persisted sign-in", zap.Error(err))
			}
		}
	})
	if authStore != nil && cfg.APIToken == "" {
		if saved, err := authStore.Load(ctx); err != nil {
			logger.Warn("main: failed to load persisted sign-in", zap.Error(err))
		} else if saved != nil {
			session.SetToken(saved.Token, saved.User)
			logger.Info("main: restored partner API sign-in")
		}
	}
	client := transport.NewClient(transport.Options{
		BaseURL:             cfg.APIBaseURL,
		Timeout:             cfg.APITimeout(),
		RequestsPerSec:      cfg.OutboundRequestsPerSec,
		Burst:               cfg.OutboundBurst,
		ConsecutiveFailures: uint32(cfg.BreakerConsecutiveFailures),
		OpenTimeout:         cfg.BreakerOpenTimeout(),
	}, session, logger.Named("transport"))
	gw := gateway.New(client, logger.Named("gateway"))

	// Optional backing stores.
	var (
		redisClient *redis.Client
		mongoClient *mongo.Client
		store       inventory.SelectionStore
		journal     journalRepo.TransactionJournalRepository
		opts        []booking.Option
	)
	if cfg.RedisEnabled {
		redisClient = utils.GetCacheClient()
		store = inventory.NewRedisSelectionStore(redisClient, "default", cfg.SelectionTTL())
	}
	if cfg.JournalEnabled {
		database.InitDB()
		mongoClient = database.MongoClient
		if err := journalRepo.EnsureIndexes(ctx, database.Database()); err != nil {
			logger.Warn("main: failed to create journal indexes", zap.Error(err))
		}
		journal = journalRepo.NewMongoJournalRepo(database.Database())
		opts = append(opts, booking.WithJournal(journal))
	}

	var queue *asynq.Client
	if cfg.ReconcileWorkerEnabled {
		queue = asynq.NewClient(utils.QueueRedisOpt())
		opts = append(opts, booking.WithReconcileScheduler(tasks.NewReconcileScheduler(queue, utils.ReconcileDelay)))
	}

	cache := inventory.NewCache(store, logger.Named("inventory"))
	if err := cache.Restore(ctx); err != nil {
		logger.Warn("main: failed to restore pending selection", zap.Error(err))
	}
	coordinator := booking.NewCoordinator(gw, logger.Named("coordinator"), opts...)
	bookingService := booking.NewBookingSessionService(gw, cache, coordinator)
	accountService := account.NewService(gw, session, logger.Named("account"))
	if authStore != nil {
		accountService.WithPersister(authStore)
	}

	var worker *asynq.Server
	if cfg.ReconcileWorkerEnabled {
		worker = cron.InitReconcileWorker(coordinator, logger.Named("reconcile"))
	}

	health := utils.NewHealthMonitor(redisClient, mongoClient, client.BreakerState)
	health.Start(ctx)

	// Create the Gin router.
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Fatal("main: invalid TRUSTED_PROXIES", zap.Error(err))
	}
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	routes.RegisterRoutes(router, &handlers.HandlerBundle{
		Transactions: handlers.NewTransactionHandler(bookingService, journal),
		Account:      handlers.NewAccountHandler(accountService),
		Health:       health,
		Session:      session,
	}, cfg.CORSAllowedOrigins)

	// Start the HTTP server.
	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	if queue != nil {
		_ = queue.Close()
	}
	if err := database.CloseDB(shutdownCtx); err != nil {
		logger.Warn("main: failed to disconnect MongoDB", zap.Error(err))
	}
	_ = logger.Sync()

	logger.Sugar().Info("main: server stopped gracefully")
}
