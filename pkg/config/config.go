// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Corpus, Search, Cache, Feedback, Redis, Kafka,
// Postgres, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// CorpusConfig selects and configures the article source.
type CorpusConfig struct {
	// Source is "file" or "postgres".
	Source string `yaml:"source"`
	// Path to a JSON article file when Source is "file".
	Path string `yaml:"path"`
}

// SearchConfig controls query execution and relevance defaults.
type SearchConfig struct {
	MaxResults     int           `yaml:"maxResults"`
	DefaultLimit   int           `yaml:"defaultLimit"`
	MinRelevance   float64       `yaml:"minRelevance"`
	FuzzyThreshold float64       `yaml:"fuzzyThreshold"`
	FuzzyTimeout   time.Duration `yaml:"fuzzyTimeout"`
	QueryCacheSize int           `yaml:"queryCacheSize"`
	MaxSuggestions int           `yaml:"maxSuggestions"`
}

// CacheConfig controls the tiered key/value cache.
type CacheConfig struct {
	MaxMemoryEntries  int           `yaml:"maxMemoryEntries"`
	DefaultTTL        time.Duration `yaml:"defaultTTL"`
	SweepInterval     time.Duration `yaml:"sweepInterval"`
	CompressThreshold int           `yaml:"compressThreshold"`
	// Durable is "file", "redis", or "" to disable the durable tier.
	Durable string `yaml:"durable"`
	DataDir string `yaml:"dataDir"`
}

// FeedbackConfig controls the feedback ranker and its persistence.
type FeedbackConfig struct {
	DefaultBoost  float64       `yaml:"defaultBoost"`
	MaxScore      float64       `yaml:"maxScore"`
	DecayInterval time.Duration `yaml:"decayInterval"`
	DecayFactor   float64       `yaml:"decayFactor"`
	StateKey      string        `yaml:"stateKey"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the durable cache tier.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	KeyPrefix string        `yaml:"keyPrefix"`
	OpTimeout time.Duration `yaml:"opTimeout"`
}

// KafkaConfig holds Kafka broker and topic settings for the feedback
// event pipeline.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	FeedbackEvents string `yaml:"feedbackEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-
// variable overrides. It returns a Config populated with sensible defaults
// for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Source: "file",
			Path:   "data/articles.json",
		},
		Search: SearchConfig{
			MaxResults:     100,
			DefaultLimit:   10,
			MinRelevance:   0.1,
			FuzzyThreshold: 0.7,
			FuzzyTimeout:   500 * time.Millisecond,
			QueryCacheSize: 100,
			MaxSuggestions: 5,
		},
		Cache: CacheConfig{
			MaxMemoryEntries:  1000,
			DefaultTTL:        time.Hour,
			SweepInterval:     5 * time.Minute,
			CompressThreshold: 1024,
			Durable:           "file",
			DataDir:           "data/cache",
		},
		Feedback: FeedbackConfig{
			DefaultBoost:  10,
			MaxScore:      1000,
			DecayInterval: 7 * 24 * time.Hour,
			DecayFactor:   0.95,
			StateKey:      "feedback:state",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "pravnik",
			User:            "pravnik",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Password:  "",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "pravnik:",
			OpTimeout: 2 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "pravnik-group",
			Topics: KafkaTopics{
				FeedbackEvents: "feedback-events",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads PV_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PV_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PV_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("PV_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("PV_CACHE_DURABLE"); v != "" {
		cfg.Cache.Durable = v
	}
	if v := os.Getenv("PV_CACHE_DATA_DIR"); v != "" {
		cfg.Cache.DataDir = v
	}
	if v := os.Getenv("PV_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PV_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PV_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PV_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PV_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PV_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("PV_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PV_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PV_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("PV_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PV_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
