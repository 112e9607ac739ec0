// Package config loads service configuration from the environment and holds
// the domain constants of the complaint workflow.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the backend.
type Config struct {
	ServiceName string

	HTTP struct {
		Addr           string
		AllowedOrigins []string
	}

	Database struct {
		Driver   string // "postgres" or "sqlite"
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
		Path     string // sqlite file
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Log struct {
		Level  string
		Format string
	}

	AI struct {
		APIKey        string
		URL           string
		BaseDelay     time.Duration
		MaxRetries    int
		RatePerSecond float64
		Burst         int
		Timeout       time.Duration
	}

	Pipeline struct {
		Workers           int
		QueueSize         int
		StaleAfter        time.Duration
		ReconcileInterval time.Duration
	}

	Escalation struct {
		Interval time.Duration
		LockTTL  time.Duration
	}

	Embedding struct {
		TTL           time.Duration
		VocabSize     int
		ColdStartDims int
		Threshold     float64
		TopK          int
		BackfillBatch int
	}

	Uploads struct {
		Dir       string
		Tesseract string
	}

	Telegram struct {
		Token  string
		ChatID int64
	}

	Auth struct {
		JWTSecret string
	}

	Sentry struct {
		DSN         string
		Environment string
	}

	DirectoryFile string
	MessagesDir   string
	HistoryLang   string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.ServiceName = getEnv("SERVICE_NAME", "civicshield-backend")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.AllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"))

	cfg.Database.Driver = getEnv("DB_DRIVER", "postgres")
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnv("DB_NAME", "civicshield")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.Path = getEnv("DB_PATH", "civicshield.db")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.AI.APIKey = getEnv("GEMINI_API_KEY", "")
	cfg.AI.URL = getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent")
	cfg.AI.BaseDelay = getEnvDuration("AI_RETRY_BASE_DELAY", VerdictBaseDelay)
	cfg.AI.MaxRetries = getEnvInt("AI_MAX_RETRIES", VerdictMaxRetries)
	cfg.AI.RatePerSecond = getEnvFloat("AI_RATE_PER_SECOND", 1)
	cfg.AI.Burst = getEnvInt("AI_RATE_BURST", 2)
	cfg.AI.Timeout = getEnvDuration("AI_TIMEOUT", 60*time.Second)

	cfg.Pipeline.Workers = getEnvInt("PIPELINE_WORKERS", 2)
	cfg.Pipeline.QueueSize = getEnvInt("PIPELINE_QUEUE_SIZE", 256)
	cfg.Pipeline.StaleAfter = getEnvDuration("PIPELINE_STALE_AFTER", 10*time.Minute)
	cfg.Pipeline.ReconcileInterval = getEnvDuration("PIPELINE_RECONCILE_INTERVAL", 5*time.Minute)

	cfg.Escalation.Interval = getEnvDuration("ESCALATION_INTERVAL", EscalationInterval)
	cfg.Escalation.LockTTL = getEnvDuration("ESCALATION_LOCK_TTL", 10*time.Minute)

	cfg.Embedding.TTL = getEnvDuration("EMBEDDING_IDF_TTL", IDFCacheTTL)
	cfg.Embedding.VocabSize = getEnvInt("EMBEDDING_VOCAB_SIZE", VocabularySize)
	cfg.Embedding.ColdStartDims = getEnvInt("EMBEDDING_COLD_DIMS", ColdStartDimension)
	cfg.Embedding.Threshold = getEnvFloat("SIMILARITY_THRESHOLD", SimilarityThreshold)
	cfg.Embedding.TopK = getEnvInt("SIMILARITY_TOP_K", SimilarityTopK)
	cfg.Embedding.BackfillBatch = getEnvInt("EMBEDDING_BACKFILL_BATCH", BackfillBatchSize)

	cfg.Uploads.Dir = getEnv("UPLOADS_DIR", "uploads")
	cfg.Uploads.Tesseract = getEnv("TESSERACT_BIN", "tesseract")

	cfg.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Telegram.ChatID = int64(getEnvInt("TELEGRAM_CHAT_ID", 0))

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")

	cfg.Sentry.DSN = getEnv("SENTRY_DSN", "")
	cfg.Sentry.Environment = getEnv("SENTRY_ENVIRONMENT", "development")

	cfg.DirectoryFile = getEnv("DIRECTORY_FILE", "")
	cfg.MessagesDir = getEnv("MESSAGES_DIR", "")
	cfg.HistoryLang = getEnv("HISTORY_LANG", "en")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("PIPELINE_QUEUE_SIZE must be at least 1")
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES must not be negative")
	}
	if c.Embedding.Threshold < 0 || c.Embedding.Threshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0,1]")
	}
	return nil
}

// PostgresDSN renders the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Database.Host, c.Database.User, c.Database.Password, c.Database.Name, c.Database.Port, c.Database.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
