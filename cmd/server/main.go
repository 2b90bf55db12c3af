package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"nightpress/internal/config"
	"nightpress/internal/handlers"
	"nightpress/internal/jobs"
	"nightpress/internal/logging"
	"nightpress/internal/middleware"
	"nightpress/internal/services"
	"nightpress/internal/store"
	"nightpress/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Nightpress Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, default stage delay: %v)", cfg.Port, cfg.DefaultStageDelay)

	// Select the storage backend by configuration. With no MongoDB the
	// engine runs on the in-memory store, whose only durability is the
	// recovery snapshot.
	var st store.Store
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoStore, err := store.NewMongo(cfg.MongoURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		defer mongoStore.Close(context.Background())

		if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
			log.Printf("⚠️ Failed to ensure indexes: %v", err)
		}
		st = mongoStore
	} else {
		log.Println("⚠️ MONGODB_URI not set - using in-memory store (pending records survive restarts only via the recovery snapshot)")
		st = store.NewMemory()
	}

	// Redis is optional: without it, delivery fan-out is store-only.
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		var err error
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (live delivery notifications disabled)", err)
			redisService = nil
		} else {
			defer redisService.Close()
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - live delivery notifications disabled")
	}

	// Core engine wiring
	queue := services.NewPendingQueue()
	metrics := services.InitMetrics(queue)
	log.Println("✅ Prometheus metrics initialized")

	bus := services.NewPublishBus(metrics)
	recordService := services.NewRecordService(st, queue, bus, cfg, metrics)

	generator := services.NewExtractiveGenerator()
	sessionRecaps := services.NewSessionRecapService(st, generator, cfg.SessionGap, metrics)
	dayRecaps := services.NewDayRecapService(st, generator, metrics)
	deliveryService := services.NewDeliveryService(st, redisService, metrics)
	digestService := services.NewDigestService(st)

	// Consumers run synchronously in registration order on every publish.
	bus.OnPublish("session-recap", sessionRecaps.HandlePublish)
	bus.OnPublish("day-recap", dayRecaps.HandlePublish)
	bus.OnPublish("delivery", deliveryService.HandlePublish)

	// Rebuild the pending index from the store, then consume any recovery
	// snapshot left by the previous shutdown.
	recoveryService := services.NewRecoveryService(cfg.RecoveryFile, st, queue, cfg.SnapshotTimeout)
	recoveryService.CheckWritable()
	if err := recordService.RebuildPendingIndex(context.Background()); err != nil {
		log.Printf("⚠️ Failed to rebuild pending index: %v", err)
	}
	if err := recoveryService.Load(context.Background()); err != nil {
		log.Printf("⚠️ Recovery load failed: %v", err)
	}

	// Background jobs: minute-granularity publish sweep plus the fixed-hour
	// digest check.
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := scheduler.RegisterInterval(time.Minute, jobs.NewPublishSweep(recordService)); err != nil {
		log.Fatalf("❌ Failed to register publish sweep: %v", err)
	}
	digestCron := fmt.Sprintf("0 %d * * *", cfg.DigestHourUTC)
	if err := scheduler.RegisterCron(digestCron, jobs.NewDigestChecker(dayRecaps, digestService)); err != nil {
		log.Fatalf("❌ Failed to register digest checker: %v", err)
	}
	scheduler.Start()

	// Author identity
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("✅ JWT auth initialized")
	} else if cfg.Environment == "production" {
		log.Fatal("❌ JWT_SECRET is required in production")
	} else {
		log.Println("⚠️ JWT_SECRET not set - running with dev identity (development only)")
	}

	// HTTP transport
	app := fiber.New(fiber.Config{
		AppName:      "nightpress",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	prom := fiberprometheus.New("nightpress")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	rateCfg := middleware.DefaultRateLimitConfig()
	app.Use("/api", middleware.GlobalLimiter(rateCfg))

	healthHandler := handlers.NewHealthHandler(st, redisService)
	recordHandler := handlers.NewRecordHandler(recordService)
	recapHandler := handlers.NewRecapHandler(sessionRecaps, dayRecaps)

	app.Get("/health", healthHandler.Health)

	api := app.Group("/api", middleware.AuthorAuth(jwtAuth, cfg.Environment))
	api.Post("/entries", middleware.WriteLimiter(rateCfg), recordHandler.CreateEntry)
	api.Post("/conversations", middleware.WriteLimiter(rateCfg), recordHandler.CreateConversation)
	api.Get("/records", recordHandler.ListPublished)
	api.Get("/records/pending", recordHandler.ListPending)
	api.Post("/records/:id/publish", recordHandler.ForcePublish)
	api.Delete("/records/:id", recordHandler.Delete)
	api.Get("/recaps/sessions", recapHandler.ListSessionRecaps)
	api.Get("/recaps/days", recapHandler.ListDayRecaps)
	api.Post("/recaps/days/:date/generate", recapHandler.GenerateDayRecap)

	// Serve until interrupted, then snapshot pending state before exit.
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()
	log.Printf("🌙 Nightpress listening on :%s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")

	if err := scheduler.Stop(); err != nil {
		log.Printf("⚠️ Scheduler shutdown error: %v", err)
	}

	// The snapshot write is bounded; exceeding the bound we exit anyway
	// rather than hang the shutdown.
	if err := recoveryService.Save(context.Background()); err != nil {
		log.Printf("⚠️ Failed to save recovery snapshot: %v", err)
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
