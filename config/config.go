package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ServiceName    = "nlp-service"
	ServiceVersion = "1.0.0"
)

// Config holds all service configuration, populated from environment
// variables with sensible defaults for local development.
type Config struct {
	ServicePort int    `env:"SERVICE_PORT" envDefault:"5084"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`

	QueueKey   string `env:"NLP_QUEUE" envDefault:"nlp:processing:queue"`
	ResultsKey string `env:"NLP_RESULTS_QUEUE" envDefault:"nlp:results:queue"`

	ModelServerURL string `env:"MODEL_SERVER_URL" envDefault:"http://localhost:8000"`
	ModelName      string `env:"MODEL_NAME" envDefault:"en_core_web_sm"`

	BatchSize   int `env:"BATCH_SIZE" envDefault:"10"`
	WorkerCount int `env:"WORKER_COUNT" envDefault:"1"`

	EnableNER               bool `env:"ENABLE_NER" envDefault:"true"`
	EnableClassification    bool `env:"ENABLE_CLASSIFICATION" envDefault:"true"`
	EnableKeyPhrases        bool `env:"ENABLE_KEY_PHRASES" envDefault:"true"`
	EnableEmbeddings        bool `env:"ENABLE_EMBEDDINGS" envDefault:"true"`
	EnableLanguageDetection bool `env:"ENABLE_LANGUAGE_DETECTION" envDefault:"true"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	// ResultsDSN enables the Postgres results archiver when set.
	ResultsDSN string `env:"RESULTS_DSN" envDefault:""`
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// RedisAddr returns the host:port address of the broker.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ListenAddr returns the HTTP listen address.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.ServicePort)
}
