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

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/database"
	"expensetracker/internal/handlers"
	"expensetracker/internal/imagehost"
	"expensetracker/internal/logger"
	"expensetracker/internal/models"
	"expensetracker/internal/realtime"
	"expensetracker/internal/router"
	"expensetracker/internal/services"
	"expensetracker/internal/validator"
)

// @title           Expense Tracker API
// @version         1.0
// @description     Expense tracker with wallets, income and expense transactions, savings goals, statistics and live updates.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	validator.Register()

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if appConfig.AutoMigrate {
		if err := dbManager.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	db := dbManager.DB()

	// Realtime: the hub serves local subscribers; with AMQP configured,
	// writes go through the exchange so every instance sees them.
	hub := realtime.NewHub()
	defer hub.Close()

	var events realtime.Publisher = hub
	var relay *realtime.Relay
	if appConfig.AMQPURL != "" {
		relay, err = realtime.NewRelay(appConfig.AMQPURL, appConfig.AMQPExchange, hub)
		if err != nil {
			return fmt.Errorf("failed to connect realtime relay: %w", err)
		}
		defer relay.Close()
		events = relay
		log.Infow("realtime relay enabled", "exchange", appConfig.AMQPExchange)
	}

	auditService, closeAudit, err := newAuditService(ctx, appConfig, db)
	if err != nil {
		return err
	}
	defer closeAudit()

	uploader, closeUploader, err := newUploader(ctx, appConfig)
	if err != nil {
		return err
	}
	defer closeUploader()

	profiles := cache.NewLRU[models.User](appConfig.UserCacheSize, appConfig.UserCacheTTL)

	// Services
	userService := services.NewUserService(db, events, profiles)
	walletService := services.NewWalletService(db, events)
	transactionService := services.NewTransactionService(db, walletService, events)
	goalService := services.NewGoalService(db, walletService, events, appConfig.GoalCompletionPolicy)
	statisticsService := services.NewStatisticsService(db, appConfig.StatsLocation)

	// Handlers
	snapshots := handlers.ServiceSnapshots{
		Users:        userService,
		Wallets:      walletService,
		Transactions: transactionService,
		Goals:        goalService,
	}
	opts := router.Options{}
	if appConfig.ImageBackend == config.ImageBackendLocal {
		opts.UploadDir = appConfig.UploadDir
	}
	engine := router.New(router.Handlers{
		Auth:        handlers.NewAuthHandler(userService, auditService),
		Wallet:      handlers.NewWalletHandler(walletService, auditService),
		Transaction: handlers.NewTransactionHandler(transactionService, auditService),
		Goal:        handlers.NewGoalHandler(goalService, auditService),
		Statistics:  handlers.NewStatisticsHandler(statisticsService),
		Image:       handlers.NewImageHandler(uploader),
		Stream:      handlers.NewStreamHandler(hub, snapshots),
	}, opts)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting expense tracker server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("realtime relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if appConfig.UserCacheTTL <= 0 {
			return nil
		}
		ticker := time.NewTicker(appConfig.UserCacheTTL)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if dropped := profiles.Purge(); dropped > 0 {
					log.Debugw("purged expired profiles", "count", dropped)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		// Open event streams end when the hub closes.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newAuditService writes audit events to MongoDB when MONGO_URI is set and to
// the primary database otherwise.
func newAuditService(ctx context.Context, cfg *config.Config, db *gorm.DB) (services.AuditServicer, func(), error) {
	if cfg.MongoURI == "" {
		return services.NewAuditService(db), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := services.ConnectMongo(connectCtx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	logger.Get().Infow("audit sink: mongodb", "database", cfg.MongoDatabase)

	collection := client.Database(cfg.MongoDatabase).Collection(services.AuditCollection)
	closeFn := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}
	return services.NewMongoAuditService(collection), closeFn, nil
}

// newUploader selects the image host backend.
func newUploader(ctx context.Context, cfg *config.Config) (imagehost.Uploader, func(), error) {
	switch cfg.ImageBackend {
	case config.ImageBackendGCS:
		gcs, err := imagehost.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCS image host: %w", err)
		}
		return gcs, func() { _ = gcs.Close() }, nil
	case config.ImageBackendLocal:
		local, err := imagehost.NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create local image host: %w", err)
		}
		return local, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown IMAGE_BACKEND %q (use local or gcs)", cfg.ImageBackend)
}
