// Package main provides the main entry point for the ZapFlow campaign dispatch platform
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/zapflowbr/zapflow/app/handlers"
	"github.com/zapflowbr/zapflow/app/middleware"
	"github.com/zapflowbr/zapflow/app/queue"
	"github.com/zapflowbr/zapflow/app/router"
	"github.com/zapflowbr/zapflow/app/scheduler"
	"github.com/zapflowbr/zapflow/app/services"
	"github.com/zapflowbr/zapflow/app/worker"
	businessflow "github.com/zapflowbr/zapflow/business_flow"
	"github.com/zapflowbr/zapflow/config"
	"github.com/zapflowbr/zapflow/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting ZapFlow application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop schedulers and queue consumers, draining in-flight work
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeRedis initializes the Redis client and verifies connectivity
func initializeRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.Addr(), cfg.DB)
	return rc, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeRedis(cfg.Redis)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	publicRepo := repository.NewPublicRepository(db)
	publicContactRepo := repository.NewPublicContactRepository(db)
	contactRepo := repository.NewContactRepository(db)
	numberRepo := repository.NewNumberRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Evolution API client doubles as message sender and contact source
	evolutionClient := services.NewEvolutionClient(&cfg.Channel)

	// Initialize the queue runtime
	dispatchQueue := queue.NewRedisQueue(rc, cfg.Redis.Prefix, log.Default())
	dispatchQueue.SetConcurrency(queue.QueueCampaigns, cfg.Queue.CampaignConcurrency)
	dispatchQueue.SetConcurrency(queue.QueueMessages, cfg.Queue.MessageConcurrency)
	dispatchQueue.SetConcurrency(queue.QueueSimplifiedPublic, cfg.Queue.ResolveConcurrency)
	dispatchQueue.SetConcurrency(queue.QueueCustomPublic, cfg.Queue.ResolveConcurrency)

	// Initialize flows
	resolver := businessflow.NewAudienceResolver(contactRepo, publicContactRepo)

	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo,
		publicRepo,
		numberRepo,
		messageRepo,
		resolver,
		db,
	)

	publicFlow := businessflow.NewPublicFlow(
		publicRepo,
		resolver,
		dispatchQueue,
		db,
	)

	resolutionFlow := businessflow.NewPublicResolutionFlow(
		publicRepo,
		publicContactRepo,
		contactRepo,
		resolver,
		db,
	)

	contactFlow := businessflow.NewContactFlow(contactRepo, numberRepo)

	importFlow := businessflow.NewContactImportFlow(contactRepo, numberRepo, db)

	syncFlow := businessflow.NewContactSyncFlow(contactRepo, numberRepo, evolutionClient)

	// Bind queue consumers
	guard := worker.NewRedisDispatchGuard(rc, cfg.Redis.Prefix, 10*time.Minute)

	campaignProcessor := worker.NewCampaignProcessor(
		campaignRepo,
		publicRepo,
		messageRepo,
		resolver,
		dispatchQueue,
		guard,
		db,
		log.Default(),
	)
	publicProcessor := worker.NewPublicProcessor(resolutionFlow, log.Default())
	messageProcessor := worker.NewMessageProcessor(
		messageRepo,
		campaignRepo,
		numberRepo,
		evolutionClient,
		log.Default(),
	)

	dispatchQueue.Register(queue.QueueCampaigns, campaignProcessor.Process)
	dispatchQueue.Register(queue.QueueMessages, messageProcessor.Process)
	dispatchQueue.Register(queue.QueueSimplifiedPublic, publicProcessor.ProcessSimplified)
	dispatchQueue.Register(queue.QueueCustomPublic, publicProcessor.ProcessCustom)

	stopQueue := dispatchQueue.Start(context.Background())
	stopFuncs = append(stopFuncs, stopQueue)

	// Start the campaign scheduler
	campaignScheduler := scheduler.NewCampaignScheduler(
		campaignRepo,
		dispatchQueue,
		scheduler.NewSchedulerLogger("campaign_scheduler.log"),
		cfg.Scheduler.CampaignInterval,
		cfg.Scheduler.CampaignBatchSize,
	)
	stopFuncs = append(stopFuncs, campaignScheduler.Start(context.Background()))

	// Start the contact sync scheduler
	syncScheduler := scheduler.NewContactSyncScheduler(
		numberRepo,
		syncFlow,
		scheduler.NewSchedulerLogger("contact_sync.log"),
		cfg.Scheduler.ContactSyncInterval,
	)
	stopFuncs = append(stopFuncs, syncScheduler.Start(context.Background()))

	// Initialize handlers
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	publicHandler := handlers.NewPublicHandler(publicFlow, cfg.Import.UploadDir)
	contactHandler := handlers.NewContactHandler(contactFlow, importFlow, cfg.Import.MaxFileSize)
	adminHandler := handlers.NewAdminHandler(dispatchQueue)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authMiddleware,
		campaignHandler,
		publicHandler,
		contactHandler,
		adminHandler,
		cfg.Security.AllowedOrigins,
	)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
