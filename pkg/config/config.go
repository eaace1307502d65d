// Package config loads and validates gateway configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, DocStore, Source, Redis, Postgres, Kafka, Auth, etc.).
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
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	DocStore    DocStoreConfig `yaml:"docstore"`
	Source      SourceConfig   `yaml:"source"`
	Redis       RedisConfig    `yaml:"redis"`
	Postgres    PostgresConfig `yaml:"postgres"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	Search      SearchConfig   `yaml:"search"`
	Auth        AuthConfig     `yaml:"auth"`
	Logging     LoggingConfig  `yaml:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DocStoreConfig selects and configures the search engine holding the
// mirrored catalog.
type DocStoreConfig struct {
	// Backend is "elasticsearch" or "bleve".
	Backend   string `yaml:"backend"`
	URL       string `yaml:"url"`
	IndexName string `yaml:"indexName"`
	// BlevePath is the on-disk index directory; empty keeps the index in memory.
	BlevePath       string        `yaml:"blevePath"`
	StartupAttempts int           `yaml:"startupAttempts"`
	StartupBackoff  time.Duration `yaml:"startupBackoff"`
}

// SourceConfig points at the external paginated catalog API.
type SourceConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis connection parameters and the TTLs of the two
// keyspaces kept there.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	PoolSize       int           `yaml:"poolSize"`
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	IdempotencyTTL time.Duration `yaml:"idempotencyTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters for the ingestion
// run audit log.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IngestComplete  string `yaml:"ingestComplete"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// SearchConfig bounds the read endpoint's pagination. MaxResultWindow caps
// page*size and must not exceed the document store's own window.
type SearchConfig struct {
	DefaultSize     int `yaml:"defaultSize"`
	MaxSize         int `yaml:"maxSize"`
	MaxResultWindow int `yaml:"maxResultWindow"`
}

// AuthConfig controls bearer-token issuance and verification.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
	// TokenEndpoint exposes POST /token. It defaults to on only in the
	// "local" environment.
	TokenEndpoint *bool             `yaml:"tokenEndpoint"`
	Users         map[string]string `yaml:"users"`
}

// TokenEndpointEnabled reports whether the credential exchange endpoint is
// served for the given environment.
func (a AuthConfig) TokenEndpointEnabled(environment string) bool {
	if a.TokenEndpoint != nil {
		return *a.TokenEndpoint
	}
	return environment == "local"
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	switch c.DocStore.Backend {
	case "elasticsearch", "bleve":
	default:
		return fmt.Errorf("invalid docstore backend %q", c.DocStore.Backend)
	}
	if c.DocStore.IndexName == "" {
		return fmt.Errorf("docstore index name is required")
	}
	if c.Search.DefaultSize < 1 || c.Search.MaxSize < c.Search.DefaultSize {
		return fmt.Errorf("invalid search sizes: default=%d max=%d", c.Search.DefaultSize, c.Search.MaxSize)
	}
	if c.Search.MaxResultWindow < c.Search.MaxSize {
		return fmt.Errorf("search result window %d is smaller than max size %d", c.Search.MaxResultWindow, c.Search.MaxSize)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Environment: "local",
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		DocStore: DocStoreConfig{
			Backend:         "elasticsearch",
			URL:             "http://localhost:9200",
			IndexName:       "default_index",
			StartupAttempts: 10,
			StartupBackoff:  5 * time.Second,
		},
		Source: SourceConfig{
			BaseURL: "https://jsonmock.hackerrank.com/api/moviesdata/search/",
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       10,
			CacheTTL:       300 * time.Second,
			IdempotencyTTL: 600 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "moviegateway",
			User:            "moviegateway",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "movie-gateway",
			Topics: KafkaTopics{
				IngestComplete:  "movies.ingest-complete",
				CacheInvalidate: "movies.cache-invalidate",
				AnalyticsEvents: "movies.analytics",
			},
		},
		Search: SearchConfig{
			DefaultSize:     10,
			MaxSize:         100,
			MaxResultWindow: 10000,
		},
		Auth: AuthConfig{
			Secret:   "supersecretjwtkey",
			TokenTTL: time.Hour,
			Users:    map[string]string{"user": "password"},
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

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_DOCSTORE_BACKEND"); v != "" {
		cfg.DocStore.Backend = v
	}
	if v := os.Getenv("SP_ELASTICSEARCH_URL"); v != "" {
		cfg.DocStore.URL = v
	}
	if v := os.Getenv("SP_INDEX_NAME"); v != "" {
		cfg.DocStore.IndexName = v
	}
	if v := os.Getenv("SP_BLEVE_PATH"); v != "" {
		cfg.DocStore.BlevePath = v
	}
	if v := os.Getenv("SP_SOURCE_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = v == "true"
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true"
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
