package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds the runtime configuration for the intake pipeline. Values are
// read from the environment, with a .env file loaded automatically when
// present.
type Config struct {
	// Database
	DBDriver string // sqlite or postgres
	DBDSN    string // file path for sqlite, DSN for postgres

	// Artifact store
	ArtifactBackend string // fs or minio
	DataDir         string // root directory for case folders
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioSecure     bool

	// Redis (progress events + manifest cache)
	RedisAddr     string
	RedisPassword string

	// Kafka (optional progress event transport)
	KafkaBrokers string
	KafkaTopic   string

	// Qdrant (semantic index)
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	// LLM (analysis + embeddings)
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	EmbedModel   string
	EmbedDim     int
	AnalysisCap  int // max characters submitted for analysis
	LLMTimeout   time.Duration

	// OCR
	OCRBaseURL string
	OCRAPIKey  string
	OCRModel   string
	OCRTimeout time.Duration

	// Intake limits
	MaxFileBytes int64
	MaxPages     int

	// Pipeline
	MaxConcurrent int
	RetryAttempts int
	RetryBaseWait time.Duration

	// Reconciler
	StaleAfter     time.Duration
	TrashRetention time.Duration
	ReconcileCron  string
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() *Config {
	return &Config{
		DBDriver: envString("DB_DRIVER", "sqlite"),
		DBDSN:    envString("DB_DSN", ".data/warroom.db"),

		ArtifactBackend: envString("ARTIFACT_BACKEND", "fs"),
		DataDir:         envString("DATA_DIR", ".data/cases"),
		MinioEndpoint:   envString("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  envString("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  envString("MINIO_SECRET_KEY", ""),
		MinioBucket:     envString("MINIO_BUCKET", "case-artifacts"),
		MinioSecure:     envBool("MINIO_SECURE", false),

		RedisAddr:     envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: envString("REDIS_PASSWORD", ""),

		KafkaBrokers: envString("KAFKA_BROKERS", ""),
		KafkaTopic:   envString("KAFKA_TOPIC", "document-progress"),

		QdrantHost:       envString("QDRANT_HOST", "localhost"),
		QdrantPort:       envInt("QDRANT_PORT", 6334),
		QdrantCollection: envString("QDRANT_COLLECTION", "case_documents"),

		LLMBaseURL:  envString("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:   envString("LLM_API_KEY", ""),
		LLMModel:    envString("LLM_MODEL", "gpt-4o-mini"),
		EmbedModel:  envString("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:    envInt("EMBED_DIM", 1536),
		AnalysisCap: envInt("ANALYSIS_CHAR_CAP", 120000),
		LLMTimeout:  envDuration("LLM_TIMEOUT", 90*time.Second),

		OCRBaseURL: envString("OCR_BASE_URL", "https://api.mistral.ai/v1"),
		OCRAPIKey:  envString("OCR_API_KEY", ""),
		OCRModel:   envString("OCR_MODEL", "mistral-ocr-latest"),
		OCRTimeout: envDuration("OCR_TIMEOUT", 120*time.Second),

		MaxFileBytes: envInt64("MAX_FILE_BYTES", 50<<20),
		MaxPages:     envInt("MAX_PAGES", 1000),

		MaxConcurrent: envInt("MAX_CONCURRENT", 10),
		RetryAttempts: envInt("RETRY_ATTEMPTS", 3),
		RetryBaseWait: envDuration("RETRY_BASE_WAIT", 500*time.Millisecond),

		StaleAfter:     envDuration("STALE_AFTER", 10*time.Minute),
		TrashRetention: envDuration("TRASH_RETENTION", 7*24*time.Hour),
		ReconcileCron:  envString("RECONCILE_CRON", "@every 15m"),
	}
}

// GetDB opens the gorm database connection for the configured driver.
func GetDB(cfg *Config) (*gorm.DB, error) {
	if cfg.DBDriver == "postgres" {
		return gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	}
	return gorm.Open(sqlite.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
