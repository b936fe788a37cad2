package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/finledger/api/internal/client"
	"github.com/finledger/api/internal/config"
	"github.com/finledger/api/internal/handler"
	"github.com/finledger/api/internal/middleware"
	"github.com/finledger/api/internal/render"
	"github.com/finledger/api/internal/repository"
	"github.com/finledger/api/internal/service"
	"github.com/finledger/api/internal/stats"
	"github.com/finledger/api/internal/store"
	"github.com/finledger/api/internal/worker"
	"github.com/finledger/api/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize transaction repository
	txnRepo, err := repository.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open transaction database: %v", err)
	}
	defer txnRepo.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Job records live in Redis; artifacts go to the S3 bucket when one is
	// configured, otherwise they stay in Redis alongside the records.
	retention := time.Duration(cfg.Worker.RetentionDays) * 24 * time.Hour
	jobStore := store.NewRedisStore(redisClient, retention)
	var artifactStore store.ArtifactStore = jobStore
	s3Enabled := false
	if cfg.Storage.BucketName != "" {
		s3Client, err := client.NewS3Client(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: S3 storage not initialized, using Redis artifacts: %v", err)
		} else {
			artifactStore = s3Client
			s3Enabled = true
		}
	}

	engine := stats.NewEngine(txnRepo)
	renderer := render.NewWorkbookRenderer()
	reportWorker := worker.NewReportWorker(jobStore, artifactStore, txnRepo, engine, renderer, hub)

	// Choose the dispatcher: Redis task queue or in-process pool
	var dispatcher service.Dispatcher
	var pool *worker.Pool
	if strings.EqualFold(cfg.Worker.Mode, "inprocess") {
		log.Println("Info: in-process worker pool enabled")
		pool = worker.NewPool(reportWorker, cfg.Worker.Concurrency, cfg.Worker.QueueSize)
		pool.Start()
		dispatcher = pool
	} else {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		dispatcher = worker.NewAsynqDispatcher(asynqClient)
		go startWorkerServer(cfg, reportWorker)
	}

	// Initialize services
	reportService := service.NewReportService(jobStore, artifactStore, dispatcher, renderer)
	statsService := service.NewStatsService(engine, redisClient)

	// Initialize handlers
	reportHandler := handler.NewReportHandler(reportService, validate)
	statsHandler := handler.NewStatisticsHandler(statsService)

	// Initialize middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		redisUp := redisClient.Ping(c.Context()).Err() == nil
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":    redisUp,
				"database": true,
				"storage":  s3Enabled,
			},
		})
	})

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Report routes
	reports := api.Group("/reports")
	reports.Post("/", rateLimiter.ReportLimit(cfg.RateLimit.ReportPerHour), reportHandler.Submit)
	reports.Get("/:jobId/status", reportHandler.Status)
	reports.Get("/:jobId/download", reportHandler.Download)

	// Statistics routes
	statistics := api.Group("/statistics", rateLimiter.StatsLimit(cfg.RateLimit.StatsPerMin))
	statistics.Get("/monthly-balance", statsHandler.MonthlyBalance)
	statistics.Get("/monthly-balances", statsHandler.MonthlyBalances)
	statistics.Get("/category-expenses", statsHandler.CategoryExpenses)
	statistics.Get("/trends", statsHandler.Trends)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/reports/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if pool != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pool.Shutdown(shutdownCtx); err != nil {
				log.Printf("Worker pool shutdown error: %v", err)
			}
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, reportWorker *worker.ReportWorker) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			LogLevel:    asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeReportGenerate, reportWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
