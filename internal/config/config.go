package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds the storyboard server configuration.
type Config struct {
	Env                string `envconfig:"ENV" default:"development"`
	ServerPort         string `envconfig:"SERVER_PORT" default:"8080"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	LogOutput   string `envconfig:"LOG_OUTPUT" default:""`

	// Project store
	StoreDriver   string        `envconfig:"STORE_DRIVER" default:"memory"`
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"storyboard_db"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE" default:"5m"`
	DBPassword    string        `envconfig:"DB_PASSWORD"`
	SQLitePath    string        `envconfig:"SQLITE_PATH" default:"storyboard.db"`

	// Redis cache and rate limit store; disabled when empty
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	// Events; a no-op publisher is used when RabbitMQURL is empty
	RabbitMQURL    string `envconfig:"RABBITMQ_URL" default:""`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"storyboard_events"`

	// Text generation
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel       string        `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"8192"`
	AIAPIKey      string        `envconfig:"AI_API_KEY"`

	// Image generation, fused quick storyboard, OCR
	ImageBaseURL string        `envconfig:"IMAGE_BASE_URL" default:"http://localhost:8001"`
	ImageTimeout time.Duration `envconfig:"IMAGE_TIMEOUT" default:"180s"`
	QuickBaseURL string        `envconfig:"QUICK_BASE_URL" default:"http://localhost:8002"`
	QuickTimeout time.Duration `envconfig:"QUICK_TIMEOUT" default:"300s"`
	OCRBaseURL   string        `envconfig:"OCR_BASE_URL" default:"http://localhost:8003"`
	OCRTimeout   time.Duration `envconfig:"OCR_TIMEOUT" default:"300s"`

	// Rendering pace shared by batch and individual regenerations
	RenderInterval time.Duration `envconfig:"RENDER_INTERVAL" default:"1s"`
	RenderBurst    int           `envconfig:"RENDER_BURST" default:"1"`
	// Pause after each batch shot, counted from the end of its render
	RenderItemDelay time.Duration `envconfig:"RENDER_ITEM_DELAY" default:"1s"`
	// How long shutdown waits for running batches to finish their current shot
	RenderDrainTimeout time.Duration `envconfig:"RENDER_DRAIN_TIMEOUT" default:"60s"`

	// Per-user limit on model-backed routes
	PlannerRateLimit  int           `envconfig:"PLANNER_RATE_LIMIT" default:"10"`
	PlannerRateWindow time.Duration `envconfig:"PLANNER_RATE_WINDOW" default:"1m"`

	StylesFile     string `envconfig:"STYLES_FILE" default:""`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"20971520"`

	JWTSecret string `envconfig:"JWT_SECRET"`
}

// LoadConfig reads .env (when present), the environment and Docker secrets.
func LoadConfig(envFiles ...string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	var err error
	if cfg.JWTSecret, err = secretOrEnv(cfg.JWTSecret, "jwt_secret"); err != nil {
		return nil, err
	}
	if cfg.AIClientType == "openai" {
		if cfg.AIAPIKey, err = secretOrEnv(cfg.AIAPIKey, "ai_api_key"); err != nil {
			return nil, err
		}
	}
	if cfg.StoreDriver == StorePostgres {
		if cfg.DBPassword, err = secretOrEnv(cfg.DBPassword, "db_password"); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot check by itself.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: expected memory, postgres or sqlite", c.StoreDriver)
	}
	switch c.AIClientType {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid AI_CLIENT_TYPE %q: expected openai or ollama", c.AIClientType)
	}
	if c.RenderInterval < 0 {
		return fmt.Errorf("RENDER_INTERVAL must not be negative")
	}
	if c.RenderItemDelay < 0 {
		return fmt.Errorf("RENDER_ITEM_DELAY must not be negative")
	}
	if c.RenderBurst < 1 {
		return fmt.Errorf("RENDER_BURST must be at least 1")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword), c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c *Config) GetAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LogFields returns the configuration as log fields with secrets hidden.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("env", c.Env),
		zap.String("port", c.ServerPort),
		zap.String("storeDriver", c.StoreDriver),
		zap.String("dbDSN", c.getMaskedDSN()),
		zap.Bool("redisEnabled", c.RedisAddr != ""),
		zap.Bool("eventsEnabled", c.RabbitMQURL != ""),
		zap.String("aiClientType", c.AIClientType),
		zap.String("aiBaseURL", c.AIBaseURL),
		zap.String("aiModel", c.AIModel),
		zap.String("imageBaseURL", c.ImageBaseURL),
		zap.String("quickBaseURL", c.QuickBaseURL),
		zap.String("ocrBaseURL", c.OCRBaseURL),
		zap.Duration("renderInterval", c.RenderInterval),
		zap.Duration("renderItemDelay", c.RenderItemDelay),
		zap.String("stylesFile", c.StylesFile),
	}
}

func (c *Config) getMaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}
