package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment.
type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// History store (MongoDB)
	MongoURI       string
	DBName         string
	CollectionName string

	// Hosted model
	GeminiAPIKey    string
	ChatModel       string
	ChatTemperature float64
	ChatTier        string

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "openai"
	GoogleEmbeddingsModel string
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	OpenAIBaseURL         string

	// Conversation memory
	MemoryType   string // "buffer", "buffer_window", "buffer_summary"
	MemoryWindow int
	MemoryTokens int
	RetrieverK   int

	// Ingestion
	MaxChunkSize int
	ChunkOverlap int
	VectorDBDir  string

	// Acquisition
	DownloadDir     string
	PortalURL       string
	Headless        bool
	DedupStrategy   string // "id" (default), "filename"
	DownloadWait    time.Duration
	PageWait        time.Duration
	StepTimeout     time.Duration
	TopicsFile      string
	AcquisitionCron string

	// Redis Configuration
	RedisURL         string
	RedisPassword    string
	RedisDB          int
	RateLimitEnabled bool
	RateLimitReqs    int
	RateLimitWindow  int
	AsyncDownloads   bool

	// Admin endpoints are open when empty
	AdminJWTSecret string

	OTelEnabled  bool
	OTelEndpoint string
}

// LoadConfig reads .env (when present) and the environment, applying defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8000"), ","),

		MongoURI:       getEnv("CONNECTION_STRING", getEnv("MONGO_URI", "mongodb://localhost:27017")),
		DBName:         getEnv("MONGODD_NAME", getEnv("DB_NAME", "abogacia")),
		CollectionName: getEnv("COLLECTION_NAME", "chat_histories"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", "gemini-2.0-flash"),
		ChatTemperature: getEnvFloat64("CHAT_TEMPERATURE", 0.5),
		ChatTier:        getEnv("GEMINI_TIER", "free"),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		MemoryType:   getEnv("MEMORY_TYPE", "buffer_window"),
		MemoryWindow: getEnvInt("MEMORY_WINDOW", 2),
		MemoryTokens: getEnvInt("MEMORY_TOKENS", 500),
		RetrieverK:   getEnvInt("RETRIEVER_K", 6),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 30),
		VectorDBDir:  getEnv("VECTOR_DB_DIR", "./abogacia_data"),

		DownloadDir:     getEnv("DOWNLOAD_DIR", "./downloads"),
		PortalURL:       getEnv("PORTAL_URL", "http://consultajurisprudencial.ramajudicial.gov.co:8080/WebRelatoria/csj/index.xhtml"),
		Headless:        getEnvBool("HEADLESS", true),
		DedupStrategy:   getEnv("DEDUP_STRATEGY", "id"),
		DownloadWait:    getEnvDuration("DOWNLOAD_WAIT", 10*time.Second),
		PageWait:        getEnvDuration("PAGE_WAIT", 10*time.Second),
		StepTimeout:     getEnvDuration("STEP_TIMEOUT", 10*time.Second),
		TopicsFile:      getEnv("TOPICS_FILE", ""),
		AcquisitionCron: getEnv("ACQUISITION_CRON", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", false),
		RateLimitReqs:    getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		AsyncDownloads:   getEnvBool("ASYNC_DOWNLOADS", false),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	switch c.MemoryType {
	case "buffer", "buffer_window", "buffer_summary":
	default:
		return fmt.Errorf("MEMORY_TYPE must be one of buffer, buffer_window, buffer_summary; got %q", c.MemoryType)
	}

	switch c.DedupStrategy {
	case "id", "filename":
	default:
		return fmt.Errorf("DEDUP_STRATEGY must be id or filename; got %q", c.DedupStrategy)
	}

	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("MAX_CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE)")
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}
	if c.EmbeddingsProvider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDINGS_PROVIDER=openai")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
