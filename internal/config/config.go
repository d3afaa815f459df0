package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	pkgRetry "github.com/futig/safeguard-backend/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`

	// Database configuration
	DatabaseURL         string        `env:"DATABASE_URL,notEmpty"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Capability configuration
	OpenAICfg OpenAIConfig `envPrefix:"OPENAI_"`

	// External service configurations
	ASRConnectorCfg      ASRConnectorConfig      `envPrefix:"ASR_"`
	DocStoreConnectorCfg DocStoreConnectorConfig `envPrefix:"DOCSTORE_"`
	CallbackConnectorCfg CallbackConnectorConfig `envPrefix:"CALLBACK_"`

	// Core configuration
	GuardCfg    GuardConfig    `envPrefix:"GUARD_"`
	RAGCfg      RAGConfig      `envPrefix:"RAG_"`
	PipelineCfg PipelineConfig `envPrefix:"PIPELINE_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// File upload configuration
	FileUploadCfg FileUploadConfig `envPrefix:"FILE_UPLOAD_"`

	// Path to a rules yaml overriding the embedded defaults
	RulesPath string `env:"RULES_PATH"`
	Rules     *Rules `env:"-"`

	// License key for .docx extraction
	UnidocLicenseKey string `env:"UNIDOC_LICENSE_API_KEY"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (optional)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string `env:"-"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken           string `env:"BOT_TOKEN"`
	UpdateTimeout      int    `env:"UPDATE_TIMEOUT" envDefault:"60"`
	MaxConcurrentUsers int    `env:"MAX_CONCURRENT_USERS" envDefault:"100"`
	ShutdownTimeout    int    `env:"SHUTDOWN_TIMEOUT" envDefault:"30"` // seconds
	FloodPerMinute     int    `env:"FLOOD_PER_MINUTE" envDefault:"20"`
	FloodBurst         int    `env:"FLOOD_BURST" envDefault:"5"`

	SendRetry pkgRetry.RetryConfig `envPrefix:"SEND_RETRY_"`
}

// OpenAIConfig configures chat, embedding and image capabilities.
type OpenAIConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL"`

	ChatModel   string  `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.05"`
	MaxTokens   int64   `env:"MAX_TOKENS" envDefault:"700"`

	EmbeddingModel             string  `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimension         int     `env:"EMBEDDING_DIMENSION" envDefault:"1536"`
	EmbeddingBatchSize         int     `env:"EMBEDDING_BATCH_SIZE" envDefault:"100"`
	EmbeddingRequestsPerSecond float64 `env:"EMBEDDING_REQUESTS_PER_SECOND" envDefault:"5"`

	ImageModel   string `env:"IMAGE_MODEL" envDefault:"dall-e-3"`
	ImageSize    string `env:"IMAGE_SIZE" envDefault:"1024x1024"`
	ImageQuality string `env:"IMAGE_QUALITY" envDefault:"standard"`

	ChatRetry      pkgRetry.RetryConfig `envPrefix:"CHAT_RETRY_"`
	EmbeddingRetry pkgRetry.RetryConfig `envPrefix:"EMBEDDING_RETRY_"`
	ImageRetry     pkgRetry.RetryConfig `envPrefix:"IMAGE_RETRY_"`
}

type ASRConnectorConfig struct {
	HTTPClientConfig
	TranscribeEndpoint string               `env:"TRANSCRIBE_ENDPOINT" envDefault:"/transcribe"`
	Retry              pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// DocStoreConnectorConfig points at the service holding raw document text.
type DocStoreConnectorConfig struct {
	HTTPClientConfig
	TextEndpoint string               `env:"TEXT_ENDPOINT" envDefault:"/documents/%s/text"`
	Retry        pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type CallbackConnectorConfig struct {
	HTTPClientConfig
	Retry pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"5s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"30s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"20s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

// GuardConfig bounds inbound messages.
type GuardConfig struct {
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH" envDefault:"500"`
	RateLimit        int           `env:"RATE_LIMIT" envDefault:"20"`
	RateWindow       time.Duration `env:"RATE_WINDOW" envDefault:"1h"`
}

// RAGConfig configures chunking, the vector index and retrieval.
type RAGConfig struct {
	ChunkSize       int     `env:"CHUNK_SIZE" envDefault:"500"`
	ChunkOverlap    int     `env:"CHUNK_OVERLAP" envDefault:"50"`
	TopK            int     `env:"TOP_K" envDefault:"5"`
	SimilarityFloor float64 `env:"SIMILARITY_FLOOR" envDefault:"0.55"`

	IndexBackend string       `env:"INDEX_BACKEND" envDefault:"pgvector"`
	QdrantCfg    QdrantConfig `envPrefix:"QDRANT_"`
}

type QdrantConfig struct {
	Host       string `env:"HOST" envDefault:"localhost"`
	Port       int    `env:"PORT" envDefault:"6334"`
	APIKey     string `env:"API_KEY"`
	UseTLS     bool   `env:"USE_TLS" envDefault:"false"`
	Collection string `env:"COLLECTION" envDefault:"safety_chunks"`
	// how long a replaced generation stays readable before its chunks are deleted
	RetireGrace time.Duration `env:"RETIRE_GRACE" envDefault:"30s"`
}

// PipelineConfig configures response generation.
type PipelineConfig struct {
	Channel               string        `env:"CHANNEL" envDefault:"whatsapp"`
	MaxMessageLength      int           `env:"MAX_MESSAGE_LENGTH" envDefault:"1400"`
	GeneralReplyMaxChars  int           `env:"GENERAL_REPLY_MAX_CHARS" envDefault:"200"`
	ImageDescriptionChars int           `env:"IMAGE_DESCRIPTION_CHARS" envDefault:"120"`
	FollowUpWindow        time.Duration `env:"FOLLOW_UP_WINDOW" envDefault:"10m"`
	FollowUpMaxChars      int           `env:"FOLLOW_UP_MAX_CHARS" envDefault:"120"`
}

// FileUploadConfig holds file upload limits
type FileUploadConfig struct {
	MaxFileSize   int64 `env:"MAX_FILE_SIZE" envDefault:"5242880"`    // 5 MiB
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10 MiB
}

// LoadConfig reads .env.<environment> if present, parses the environment and loads rules.
func LoadConfig(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	cfg.Rules = rules

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	// Validate core configuration
	if cfg.GuardCfg.MaxMessageLength < 1 {
		errors = append(errors, fmt.Sprintf("GUARD_MAX_MESSAGE_LENGTH must be positive, got %d", cfg.GuardCfg.MaxMessageLength))
	}
	if cfg.GuardCfg.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("GUARD_RATE_LIMIT must be positive, got %d", cfg.GuardCfg.RateLimit))
	}
	if cfg.GuardCfg.RateWindow <= 0 {
		errors = append(errors, fmt.Sprintf("GUARD_RATE_WINDOW must be positive, got %s", cfg.GuardCfg.RateWindow))
	}

	if cfg.RAGCfg.ChunkSize < 1 {
		errors = append(errors, fmt.Sprintf("RAG_CHUNK_SIZE must be positive, got %d", cfg.RAGCfg.ChunkSize))
	}
	if cfg.RAGCfg.ChunkOverlap < 0 || cfg.RAGCfg.ChunkOverlap >= cfg.RAGCfg.ChunkSize {
		errors = append(errors, fmt.Sprintf("RAG_CHUNK_OVERLAP must be between 0 and RAG_CHUNK_SIZE(%d), got %d", cfg.RAGCfg.ChunkSize, cfg.RAGCfg.ChunkOverlap))
	}
	if cfg.RAGCfg.TopK < 1 || cfg.RAGCfg.TopK > 20 {
		errors = append(errors, fmt.Sprintf("RAG_TOP_K must be between 1 and 20, got %d", cfg.RAGCfg.TopK))
	}
	if cfg.RAGCfg.SimilarityFloor < -1 || cfg.RAGCfg.SimilarityFloor > 1 {
		errors = append(errors, fmt.Sprintf("RAG_SIMILARITY_FLOOR must be between -1 and 1, got %f", cfg.RAGCfg.SimilarityFloor))
	}
	switch cfg.RAGCfg.IndexBackend {
	case "memory", "pgvector", "qdrant":
	default:
		errors = append(errors, fmt.Sprintf("RAG_INDEX_BACKEND must be memory, pgvector or qdrant, got %q", cfg.RAGCfg.IndexBackend))
	}

	switch cfg.PipelineCfg.Channel {
	case "whatsapp", "telegram", "plain":
	default:
		errors = append(errors, fmt.Sprintf("PIPELINE_CHANNEL must be whatsapp, telegram or plain, got %q", cfg.PipelineCfg.Channel))
	}
	if cfg.PipelineCfg.MaxMessageLength < 200 {
		errors = append(errors, fmt.Sprintf("PIPELINE_MAX_MESSAGE_LENGTH must be at least 200, got %d", cfg.PipelineCfg.MaxMessageLength))
	}

	if !cfg.EnableMocks && cfg.OpenAICfg.APIKey == "" {
		errors = append(errors, "OPENAI_API_KEY is required unless ENABLE_MOCKS is set")
	}
	if cfg.OpenAICfg.EmbeddingDimension < 1 {
		errors = append(errors, fmt.Sprintf("OPENAI_EMBEDDING_DIMENSION must be positive, got %d", cfg.OpenAICfg.EmbeddingDimension))
	}

	if cfg.TelegramCfg.ShutdownTimeout < 1 || cfg.TelegramCfg.ShutdownTimeout > 300 {
		errors = append(errors, fmt.Sprintf("TELEGRAM_SHUTDOWN_TIMEOUT must be between 1 and 300 seconds, got %d", cfg.TelegramCfg.ShutdownTimeout))
	}

	// Validate Database configuration
	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		errors = append(errors, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
	}

	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		errors = append(errors, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
