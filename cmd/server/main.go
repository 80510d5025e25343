package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyboard-server/internal/ai"
	"storyboard-server/internal/batch"
	"storyboard-server/internal/config"
	"storyboard-server/internal/database"
	"storyboard-server/internal/handler"
	"storyboard-server/internal/ingest"
	"storyboard-server/internal/logger"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/middleware"
	"storyboard-server/internal/planner"
	"storyboard-server/internal/renderer"
	"storyboard-server/internal/repository"
	"storyboard-server/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogOutput,
		Service:    "storyboard-server",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	log.Info("Configuration loaded", cfg.LogFields()...)

	styles, err := config.LoadStyleCatalog(cfg.StylesFile)
	if err != nil {
		log.Fatal("Failed to load style catalog", zap.Error(err))
	}

	// --- External connections ---
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStartup()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = setupRedis(startupCtx, cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	projects, closeStore, err := setupProjectStore(startupCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to set up project store", zap.Error(err))
	}
	defer closeStore()
	if redisClient != nil {
		projects = repository.NewCachedProjectRepository(projects, redisClient, cfg.CacheTTL, log)
	}

	publisher, err := setupPublisher(startupCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to set up event publisher", zap.Error(err))
	}
	defer publisher.Close()

	aiClient, err := ai.NewClient(cfg, log)
	if err != nil {
		log.Fatal("Failed to create AI client", zap.Error(err))
	}

	// --- Dependency injection ---
	shotPlanner := planner.NewPlanner(aiClient, planner.NewHTTPQuickClient(cfg.QuickBaseURL, cfg.QuickTimeout, log), log)
	frameRenderer := renderer.NewRenderer(renderer.NewHTTPImageBackend(cfg.ImageBaseURL, cfg.ImageTimeout, log), styles, nil, log)
	// one pacer for the batch and for individual regenerations
	pacer := batch.NewRatePacer(cfg.RenderInterval, cfg.RenderBurst)
	runner := batch.NewRunner(projects, frameRenderer, pacer, log, batch.WithItemDelay(cfg.RenderItemDelay))
	storyboardService := service.NewStoryboardService(projects, shotPlanner, runner, publisher, log)

	ingester := ingest.NewService(ingest.NewHTTPOCRClient(cfg.OCRBaseURL, cfg.OCRTimeout, log), cfg.MaxUploadBytes, log)
	progressHub := ingest.NewProgressHub()

	verifier, err := middleware.NewJWTVerifier(cfg.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	var limiterStore *redis.Client
	if redisClient != nil {
		limiterStore = redisClient
	}
	rateLimiter := handler.NewRateLimiter(limiterStore, cfg.PlannerRateWindow, uint(cfg.PlannerRateLimit), log)
	storyboardHandler := handler.NewStoryboardHandler(storyboardService, ingester, progressHub, verifier, cfg.MaxUploadBytes, log)

	// --- HTTP server ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ZapLogger(log))
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	if allowedOrigins := cfg.GetAllowedOrigins(); len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
		log.Info("CORS_ALLOWED_ORIGINS not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	storyboardHandler.RegisterRoutes(router, rateLimiter)

	// registered after the routes so it sees all of them
	p.Use(router)

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// synchronous batches and OCR uploads hold the response open
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	// background batches stop after their current shot; frames left generating are retried by
	// the next run
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.RenderDrainTimeout)
	defer drainCancel()
	if err := runner.Shutdown(drainCtx); err != nil {
		log.Warn("Batch runs still active at exit", zap.Error(err))
	}
	log.Info("Server exiting")
}

// setupProjectStore opens and migrates the configured backend. The returned func releases it.
func setupProjectStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.ProjectRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if err := database.ApplyPostgresMigrations(pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPgProjectRepository(pool, log), closePool(pool), nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := database.ApplySQLiteMigrations(db, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("Using sqlite project store", zap.String("path", cfg.SQLitePath))
		return repository.NewSQLiteProjectRepository(db, log), closeDB(db, log), nil

	default:
		log.Warn("Using in-memory project store; projects are lost on restart")
		return repository.NewMemoryProjectRepository(log), func() {}, nil
	}
}

func closePool(pool *pgxpool.Pool) func() {
	return pool.Close
}

func closeDB(db *sql.DB, log *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close sqlite database", zap.Error(err))
		}
	}
}

func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// setupPublisher connects to RabbitMQ when configured and falls back to a no-op publisher.
func setupPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) (messaging.EventPublisher, error) {
	if cfg.RabbitMQURL == "" {
		log.Info("RABBITMQ_URL not set, storyboard events are not published")
		return messaging.NewNopPublisher(), nil
	}
	conn, err := messaging.Connect(ctx, cfg.RabbitMQURL, 10, 3*time.Second, log)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	publisher, err := messaging.NewRabbitMQPublisher(ch, cfg.EventsExchange, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &connPublisher{RabbitMQPublisher: publisher, closeConn: conn.Close}, nil
}

// connPublisher closes the connection along with the channel.
type connPublisher struct {
	*messaging.RabbitMQPublisher
	closeConn func() error
}

func (p *connPublisher) Close() error {
	return errors.Join(p.RabbitMQPublisher.Close(), p.closeConn())
}
