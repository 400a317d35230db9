package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"auditgate/internal/audit"
	"auditgate/internal/config"
	"auditgate/internal/database"
	"auditgate/internal/handlers"
	"auditgate/internal/jobs"
	"auditgate/internal/logging"
	"auditgate/internal/middleware"
	"auditgate/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting AuditGate Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Upstream: %s)", cfg.Port, cfg.AuditBaseURL)

	// Schedule storage
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	scheduleStore := database.NewScheduleStore(db)

	// Upstream audit client
	auditClient := audit.NewClient(audit.Config{
		BaseURL:          cfg.AuditBaseURL,
		MaxPollAttempts:  cfg.AuditPollMaxAttempts,
		PollBaseDelay:    cfg.AuditPollBaseDelay,
		MaxPollTimeout:   cfg.AuditPollTimeout,
		UserAgent:        cfg.AuditUserAgent,
		CacheTTL:         cfg.AuditCacheTTL,
		BreakerThreshold: cfg.AuditBreakerThreshold,
		BreakerRecovery:  cfg.AuditBreakerRecovery,
		GlobalRate:       cfg.AuditGlobalRate,
		PerSessionRate:   cfg.AuditPerSessionRate,
	})
	audit.InitMetrics(auditClient)

	// Requirements catalog with hot reload
	requirementsStore, err := services.NewRequirementsStore(cfg.RequirementsConfigDir)
	if err != nil {
		log.Fatalf("❌ Failed to load requirements config: %v", err)
	}
	defer requirementsStore.Close()
	if err := requirementsStore.Watch(); err != nil {
		log.Printf("⚠️  Requirements watcher unavailable: %v", err)
	}

	processor := services.NewDegreeProgressProcessor()

	// Background jobs
	jobScheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register("cache-cleanup", cfg.CleanupSchedule, jobs.NewCacheCleanupJob(auditClient)); err != nil {
		log.Fatalf("❌ Failed to register cache cleanup: %v", err)
	}
	if err := jobScheduler.Register("schedule-retention", "0 2 * * *", jobs.NewRetentionCleanupJob(scheduleStore, cfg.ScheduleRetention)); err != nil {
		log.Fatalf("❌ Failed to register retention cleanup: %v", err)
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "AuditGate v1.0",
		ReadTimeout:  180 * time.Second, // audit generation can take minutes upstream
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  180 * time.Second,
		BodyLimit:    10 * 1024 * 1024, // schedule imports carry whole subjects
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("auditgate")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Rate limiting
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Audit=%d/min, ScheduleWrite=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AuditFetchMax,
		rateLimitConfig.ScheduleWriteMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	allowCredentials := allowedOrigins != "*"

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Audit-Cookie",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(auditClient, db)
	auditHandler := handlers.NewAuditHandler(auditClient, processor, requirementsStore)
	scheduleHandler := handlers.NewScheduleHandler(scheduleStore)

	// Routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Handle)

	auditGroup := app.Group("/api/degree_audit", middleware.AuditFetchRateLimiter(rateLimitConfig))
	auditGroup.Get("/", auditHandler.Get)
	auditGroup.Get("/progress", auditHandler.Progress)
	auditGroup.Get("/completed_courses", auditHandler.CompletedCourses)
	auditGroup.Get("/subrequirement/:subreqId/eligible_courses", auditHandler.EligibleCourses)
	auditGroup.Get("/requirements", auditHandler.Requirements)
	auditGroup.Get("/next_courses", auditHandler.NextCourses)
	auditGroup.Get("/cache_stats", auditHandler.CacheStats)
	auditGroup.Post("/invalidate_cache", auditHandler.InvalidateCache)

	app.Get("/api/requirements", auditHandler.Catalog)

	app.Put("/api/schedule/courses/:subject", middleware.ScheduleWriteRateLimiter(rateLimitConfig), scheduleHandler.ReplaceSubject)
	app.Get("/api/schedule/courses", scheduleHandler.Courses)
	app.Get("/api/schedule/stats", scheduleHandler.Stats)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}
		requirementsStore.Close()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
