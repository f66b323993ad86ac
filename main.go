package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/database"
	"github.com/Ananth-NQI/delivery-backend/internal/cache"
	"github.com/Ananth-NQI/delivery-backend/internal/config"
	"github.com/Ananth-NQI/delivery-backend/internal/handlers"
	"github.com/Ananth-NQI/delivery-backend/internal/jobs"
	"github.com/Ananth-NQI/delivery-backend/internal/logger"
	"github.com/Ananth-NQI/delivery-backend/internal/media"
	"github.com/Ananth-NQI/delivery-backend/internal/metrics"
	"github.com/Ananth-NQI/delivery-backend/internal/routes"
	"github.com/Ananth-NQI/delivery-backend/internal/services"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	loadedEnv := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer func() { _ = log.Sync() }()
	if !loadedEnv {
		log.Info("No .env file found - using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var (
		store       storage.Store
		sqlDB       *sql.DB
		storageType string
	)
	if cfg.Database.UseMemoryStore {
		log.Warn("Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
		storageType = "memory"
	} else {
		db, err := database.Connect(cfg.Database, cfg.Log.Level, log)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		log.Info("Running database migrations...")
		if err := storage.AutoMigrate(db); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
		if sqlDB, err = db.DB(); err != nil {
			log.Fatal("Failed to get database handle", zap.Error(err))
		}
		defer sqlDB.Close()
		store = storage.NewDatabaseStore(db)
		storageType = cfg.Database.Driver
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Outbound messaging
	var dispatcher services.Dispatcher
	if cfg.Twilio.Configured() {
		twilioService, err := services.NewTwilioService(cfg.Twilio, log)
		if err != nil {
			log.Fatal("Failed to initialize Twilio service", zap.Error(err))
		}
		dispatcher = twilioService
		log.Info("Twilio service initialized", zap.String("from", cfg.Twilio.WhatsAppFrom))
	} else {
		log.Warn("Twilio credentials not found - outbound messages will only be logged")
		dispatcher = services.NewLogDispatcher(log)
	}

	// Product image uploads
	var images services.ImageIngestor
	if cfg.Storage.Configured() && cfg.Twilio.AccountSID != "" {
		objects, err := media.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		images = media.NewIngestor(media.NewTwilioFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken), objects, log)
		log.Info("Image uploads enabled", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		log.Warn("Object storage not configured - only image URLs are accepted")
	}

	// Webhook redelivery dedup
	var dedup cache.Deduplicator
	if cfg.Redis.Addr != "" {
		redisDedup, err := cache.NewRedisDeduplicator(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisDedup.Close()
		dedup = redisDedup
	} else {
		dedup = cache.NewMemoryDeduplicator()
	}

	// Initialize all services
	notifier := services.NewNotifier(dispatcher, cfg.Bot.NotifyTimeout, log, m)
	sessions := services.NewSessionStore(store, cfg.Bot.SessionTimeout, log)
	codes := services.NewDeliveryCodes(store, cfg.Bot.DeliveryCodeAttempts, log, m)
	orders := services.NewOrderLifecycle(store, codes, notifier, cfg.Bot.AdminPhone, log, m)
	flow := services.NewCatalogFlow(store, sessions, notifier, images, log)
	router := services.NewRouter(cfg.Bot, sessions, flow, orders, notifier, log, m)
	reminders := services.NewDeliveryReminders(store, notifier, cfg.Bot.AdminPhone, cfg.Reminders.Threshold, log)

	reminderJob := jobs.NewReminderJob(reminders, cfg.Reminders.Interval, log)
	reminderJob.Start(ctx)

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Delivery Bot v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Cron-Secret",
		AllowMethods: "GET, POST, PATCH, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, routes.Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(router, dedup, cfg.Bot.DedupTTL, log),
		Admin:    handlers.NewAdminHandler(store, orders, reminders, log),
		Health:   handlers.NewHealthHandler(version, storageType, sqlDB),
		Gatherer: registry,
	}, log)

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("Gracefully shutting down...")
		reminderJob.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Delivery Bot starting",
		zap.String("port", cfg.App.Port),
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", storageType),
		zap.Bool("whatsapp", cfg.Twilio.Configured()),
		zap.String("admin", logger.MaskPhone(cfg.Bot.AdminPhone)),
	)

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		log.Error("Server stopped", zap.Error(err))
	}
}
