// Package config loads process configuration from an optional YAML file and
// SITEBOT_-prefixed environment variables. The resulting Config is loaded once
// at startup and passed into component constructors; nothing reads it after
// construction.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the worker and CLI binaries.
type Config struct {
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Answer  AnswerConfig  `mapstructure:"answer"`
	Worker  WorkerConfig  `mapstructure:"worker"`
}

// OpenAIConfig contains provider credentials and model selection.
type OpenAIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	EmbeddingModel  string `mapstructure:"embedding_model"`
	CompletionModel string `mapstructure:"completion_model"`
	// Dimension is the fixed output dimensionality of the embedding model.
	// Vectors of any other length are rejected before storage.
	Dimension       int `mapstructure:"dimension"`
	MaxAnswerTokens int `mapstructure:"max_answer_tokens"`
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	// Backend is "postgres" (default) or "qdrant".
	Backend     string `mapstructure:"backend"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	QdrantHost  string `mapstructure:"qdrant_host"`
	QdrantPort  int    `mapstructure:"qdrant_port"`
}

// RedisConfig configures the stream broker and the queue names the worker
// consumes from and publishes to.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Group    string `mapstructure:"group"`

	TrainingRequestStream   string `mapstructure:"training_request_stream"`
	TrainingResponseStream  string `mapstructure:"training_response_stream"`
	CompletionRequestStream string `mapstructure:"completion_request_stream"`
	DefaultReplyStream      string `mapstructure:"default_reply_stream"`
}

// CrawlerConfig bounds a crawl run.
type CrawlerConfig struct {
	MaxDepth     int           `mapstructure:"max_depth"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// DeniedHosts are host suffixes whose links are never followed.
	DeniedHosts []string `mapstructure:"denied_hosts"`
	// ChunkTokens is the per-chunk token budget for page text.
	ChunkTokens int `mapstructure:"chunk_tokens"`
}

// AnswerConfig tunes retrieval and prompt composition.
type AnswerConfig struct {
	// SimilarityThreshold filters retrieved chunks; cosine similarity must
	// exceed it to be used as context.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// TopK caps retrieval; 0 means unbounded.
	TopK          int `mapstructure:"top_k"`
	HistoryTokens int `mapstructure:"history_tokens"`
}

// WorkerConfig controls dispatcher behaviour.
type WorkerConfig struct {
	// PublishTrainingFailures emits a status "Failed" message on the training
	// response stream when a crawl run errors. Off by default to match the
	// fire-and-forget behaviour callers already rely on.
	PublishTrainingFailures bool `mapstructure:"publish_training_failures"`
}

// Load reads configuration from the given file (optional, may be empty) with
// environment variables taking precedence. Environment keys use the SITEBOT_
// prefix with underscores, e.g. SITEBOT_OPENAI_API_KEY, SITEBOT_REDIS_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SITEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Secrets default to empty so viper knows the keys exist; without a
	// default, Unmarshal never consults the environment for them when no
	// config file is loaded.
	v.SetDefault("openai.api_key", "")
	v.SetDefault("redis.password", "")

	v.SetDefault("openai.embedding_model", "text-embedding-ada-002")
	v.SetDefault("openai.completion_model", "gpt-3.5-turbo")
	v.SetDefault("openai.dimension", 1536)
	v.SetDefault("openai.max_answer_tokens", 150)

	v.SetDefault("storage.backend", "postgres")
	v.SetDefault("storage.postgres_dsn", "postgres://localhost:5432/sitebot?sslmode=disable")
	v.SetDefault("storage.qdrant_host", "localhost")
	v.SetDefault("storage.qdrant_port", 6334)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.group", "sitebot-workers")
	v.SetDefault("redis.training_request_stream", "training_request")
	v.SetDefault("redis.training_response_stream", "training_response")
	v.SetDefault("redis.completion_request_stream", "message_completion_request")
	v.SetDefault("redis.default_reply_stream", "gpt_response_queue")

	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.fetch_timeout", 15*time.Second)
	v.SetDefault("crawler.denied_hosts", []string{"youtube.com", "facebook.com", "twitter.com"})
	v.SetDefault("crawler.chunk_tokens", 512)

	v.SetDefault("answer.similarity_threshold", 0.7)
	v.SetDefault("answer.top_k", 0)
	v.SetDefault("answer.history_tokens", 1024)

	v.SetDefault("worker.publish_training_failures", false)
}
