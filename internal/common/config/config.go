// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	VenueIndex string   `mapstructure:"venue_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// APIsConfig holds settings for the completion and discovery services.
type APIsConfig struct {
	GenAI     GenAIConfig     `mapstructure:"genai"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

type GenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

type WebSearchConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	MaxResults        int     `mapstructure:"max_results"`
	SearchDepth       string  `mapstructure:"search_depth"`
	Timeout           int     `mapstructure:"timeout"`   // milliseconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	CacheTTL          int     `mapstructure:"cache_ttl"` // seconds
}

// PipelineConfig carries every batching, pacing and retry constant used by
// the research pipeline. Durations are milliseconds.
type PipelineConfig struct {
	SearchDelayHigh        int     `mapstructure:"search_delay_high"`
	SearchDelayDefault     int     `mapstructure:"search_delay_default"`
	DefaultMaxResults      int     `mapstructure:"default_max_results"`
	MinResultRelevance     float64 `mapstructure:"min_result_relevance"`
	MaxExtractURLs         int     `mapstructure:"max_extract_urls"`
	ExtractBatchSize       int     `mapstructure:"extract_batch_size"`
	ExtractBatchPause      int     `mapstructure:"extract_batch_pause"`
	ExtractRetries         int     `mapstructure:"extract_retries"`
	ExtractRetryBackoff    int     `mapstructure:"extract_retry_backoff"`
	MinWordCount           int     `mapstructure:"min_word_count"`
	MinDocumentRelevance   float64 `mapstructure:"min_document_relevance"`
	ChunkSize              int     `mapstructure:"chunk_size"`
	ChunkDelay             int     `mapstructure:"chunk_delay"`
	ChunkContentLimit      int     `mapstructure:"chunk_content_limit"`
	CompletionRetries      int     `mapstructure:"completion_retries"`
	CompletionRetryBackoff int     `mapstructure:"completion_retry_backoff"`
	RetryFailedExtractions bool    `mapstructure:"retry_failed_extractions"`
}

// Settings is the resolved, duration-typed view of PipelineConfig.
type Settings struct {
	SearchDelayHigh        time.Duration
	SearchDelayDefault     time.Duration
	DefaultMaxResults      int
	MinResultRelevance     float64
	MaxExtractURLs         int
	ExtractBatchSize       int
	ExtractBatchPause      time.Duration
	ExtractRetries         int
	ExtractRetryBackoff    time.Duration
	MinWordCount           int
	MinDocumentRelevance   float64
	ChunkSize              int
	ChunkDelay             time.Duration
	ChunkContentLimit      int
	CompletionRetries      int
	CompletionRetryBackoff time.Duration
	RetryFailedExtractions bool
}

// Settings converts the raw millisecond values.
func (p PipelineConfig) Settings() Settings {
	return Settings{
		SearchDelayHigh:        GetDuration(p.SearchDelayHigh),
		SearchDelayDefault:     GetDuration(p.SearchDelayDefault),
		DefaultMaxResults:      p.DefaultMaxResults,
		MinResultRelevance:     p.MinResultRelevance,
		MaxExtractURLs:         p.MaxExtractURLs,
		ExtractBatchSize:       p.ExtractBatchSize,
		ExtractBatchPause:      GetDuration(p.ExtractBatchPause),
		ExtractRetries:         p.ExtractRetries,
		ExtractRetryBackoff:    GetDuration(p.ExtractRetryBackoff),
		MinWordCount:           p.MinWordCount,
		MinDocumentRelevance:   p.MinDocumentRelevance,
		ChunkSize:              p.ChunkSize,
		ChunkDelay:             GetDuration(p.ChunkDelay),
		ChunkContentLimit:      p.ChunkContentLimit,
		CompletionRetries:      p.CompletionRetries,
		CompletionRetryBackoff: GetDuration(p.CompletionRetryBackoff),
		RetryFailedExtractions: p.RetryFailedExtractions,
	}
}

// DefaultPipeline returns the pipeline constants used when nothing is configured.
func DefaultPipeline() PipelineConfig {
	var p PipelineConfig
	applyPipelineDefaults(&p)
	return p
}

// NotificationConfig holds settings for the notify-itinerary worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RegistryConfig points at the task registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
