package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/slidecast/api/internal/client"
	"github.com/slidecast/api/internal/config"
	"github.com/slidecast/api/internal/handler"
	"github.com/slidecast/api/internal/middleware"
	"github.com/slidecast/api/internal/registry"
	"github.com/slidecast/api/internal/service"
	"github.com/slidecast/api/internal/storage"
	"github.com/slidecast/api/internal/voice"
	"github.com/slidecast/api/internal/worker"
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

	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
		redisAvailable = false
	}

	// Job records live in Redis when it is up, otherwise on disk next to
	// the project store.
	var jobStore registry.Store
	if redisAvailable {
		jobStore = registry.NewRedisStore(redisClient)
	} else {
		fileStore, err := registry.NewFileStore(filepath.Join(filepath.Dir(cfg.Storage.Root), "jobs"))
		if err != nil {
			log.Fatalf("Failed to open job store: %v", err)
		}
		jobStore = fileStore
	}
	jobRegistry, err := registry.New(ctx, jobStore)
	if err != nil {
		log.Fatalf("Failed to load job registry: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Project stores
	artifacts, err := storage.NewArtifactStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to open artifact store: %v", err)
	}
	scripts, err := storage.NewScriptStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to open script store: %v", err)
	}

	// Initialize external clients
	voices := voice.NewResolver(cfg.Voices)
	ttsClient := client.NewTTSClient(&cfg.TTS, voices)
	llmClient := client.NewLLMClient(&cfg.LLM)

	// Initialize R2 mirror (optional - continues if not configured)
	var mirror client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			mirror = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, page audio stays local only")
	}

	// Initialize services
	audioService := service.NewAudioService(ttsClient, voices, artifacts, scripts, jobRegistry, asynqClient, mirror, cfg.Assets)
	scriptService := service.NewScriptService(llmClient, scripts, audioService, jobRegistry, asynqClient)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobRegistry, validate)
	audioHandler := handler.NewAudioHandler(audioService, artifacts, validate)
	scriptHandler := handler.NewScriptHandler(scriptService, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
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

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"tts":   ttsClient.IsConfigured(),
				"llm":   llmClient.IsConfigured(),
				"redis": redisAvailable,
				"r2":    mirror != nil,
			},
		})
	})

	// API routes
	api := app.Group("/api")

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Post("/", jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/running", jobHandler.ListRunning)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)
	jobs.Delete("/:jobId", jobHandler.Delete)

	// Project routes
	projects := api.Group("/projects/:projectId")
	projects.Post("/audio", rateLimiter.GenerationLimit(cfg.RateLimit.GenerationPerHour), audioHandler.StartBatchGeneration)

	pages := projects.Group("/pages/:page")
	pages.Post("/audio", rateLimiter.GenerationLimit(cfg.RateLimit.GenerationPerHour), audioHandler.StartPageGeneration)
	pages.Get("/audio", audioHandler.GetPageAudio)
	pages.Get("/audio/url", audioHandler.GetPageAudioURL)
	pages.Post("/script", rateLimiter.GenerationLimit(cfg.RateLimit.GenerationPerHour), scriptHandler.Generate)
	pages.Get("/script", scriptHandler.Get)
	pages.Put("/dialogues/order", scriptHandler.Reorder)
	pages.Post("/dialogues/:dialogueId/audio", rateLimiter.SynthesisLimit(cfg.RateLimit.SynthesisPerMin), audioHandler.SynthesizeDialogue)
	pages.Get("/dialogues/:dialogueId/audio", audioHandler.GetDialogueAudio)
	pages.Delete("/dialogues/:dialogueId", scriptHandler.DeleteDialogue)

	// Start Asynq worker server
	go startWorkerServer(cfg, jobRegistry, audioService, scriptService)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
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

func startWorkerServer(
	cfg *config.Config,
	jobRegistry *registry.Registry,
	audioService *service.AudioService,
	scriptService *service.ScriptService,
) {
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
			// Low concurrency: synthesis already throttles itself
			// against the provider's rate limit.
			Concurrency: 2,
			Queues: map[string]int{
				"audio":  6,
				"script": 4,
			},
			LogLevel: asynqLogLevel,
		},
	)

	audioWorker := worker.NewAudioWorker(audioService, jobRegistry)
	scriptWorker := worker.NewScriptWorker(scriptService, jobRegistry)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePageAudio, audioWorker.ProcessPageTask)
	mux.HandleFunc(service.TaskTypeBatchAudio, audioWorker.ProcessBatchTask)
	mux.HandleFunc(service.TaskTypeScript, scriptWorker.ProcessTask)

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
