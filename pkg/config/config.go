// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Database, Search, Stopwords, Redis, Kafka, Postgres, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RQE_"

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Stopwords StopwordsConfig `yaml:"stopwords"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the sustained search requests per second; zero disables
	// limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// DatabaseConfig locates the database the service and CLIs open.
type DatabaseConfig struct {
	// Path is a database file or a directory of database files.
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"`
}

// SearchConfig controls query parsing, weighting and execution limits.
type SearchConfig struct {
	DefaultLimit         int           `yaml:"defaultLimit"`
	MaxResults           int           `yaml:"maxResults"`
	Timeout              time.Duration `yaml:"timeout"`
	Weighting            string        `yaml:"weighting"`
	BM25K1               float64       `yaml:"bm25K1"`
	BM25B                float64       `yaml:"bm25B"`
	OrCombiner           string        `yaml:"orCombiner"`
	AndCombiner          string        `yaml:"andCombiner"`
	DefaultOperator      string        `yaml:"defaultOperator"`
	DefaultFlags         []string      `yaml:"defaultFlags"`
	MaxWildcardExpansion int           `yaml:"maxWildcardExpansion"`
	StopwordPolicy       string        `yaml:"stopwordPolicy"`
	BoostTransform       string        `yaml:"boostTransform"`
}

// StopwordsConfig lists stopwords inline and optionally names a Postgres
// table (one term per row, column "term") to load more from.
type StopwordsConfig struct {
	Words         []string `yaml:"words"`
	PostgresTable string   `yaml:"postgresTable"`
}

// CacheConfig controls the Redis result page cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Prefix  string        `yaml:"prefix"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
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
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// AnalyticsConfig controls search event collection and the periodic stats
// snapshots written to PostgreSQL.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
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
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
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
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       200,
			RateBurst:       400,
		},
		Database: DatabaseConfig{
			Path:        "./data",
			Compression: "zstd",
		},
		Search: SearchConfig{
			DefaultLimit:    10,
			MaxResults:      1000,
			Timeout:         5 * time.Second,
			Weighting:       "bm25",
			BM25K1:          1.2,
			BM25B:           0.75,
			OrCombiner:      "sum",
			AndCombiner:     "sum",
			DefaultOperator: "or",
			DefaultFlags:    []string{"default"},
			StopwordPolicy:  "keep",
			BoostTransform:  "identity",
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     60 * time.Second,
			Prefix:  "rqe:mset:",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "rqe-searcher",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "rqe",
			User:            "rqe",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
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

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rateLimit must be >= 0"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Search.DefaultLimit <= 0 {
		errs = append(errs, errors.New("search.defaultLimit must be > 0"))
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, errors.New("search.maxResults must be >= search.defaultLimit"))
	}
	if c.Search.MaxWildcardExpansion < 0 {
		errs = append(errs, errors.New("search.maxWildcardExpansion must be >= 0"))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search.timeout must be > 0"))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be > 0 when the cache is enabled"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Postgres.Enabled && c.Analytics.SnapshotInterval <= 0 {
		errs = append(errs, errors.New("analytics.snapshotInterval must be > 0 when postgres is enabled"))
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
		errs = append(errs, errors.New("metrics.port must differ from server.port"))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads RQE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setFloat(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	setString(&cfg.Database.Compression, "DATABASE_COMPRESSION")
	setInt(&cfg.Search.DefaultLimit, "SEARCH_DEFAULT_LIMIT")
	setInt(&cfg.Search.MaxWildcardExpansion, "SEARCH_MAX_WILDCARD_EXPANSION")
	setString(&cfg.Search.Weighting, "SEARCH_WEIGHTING")
	setString(&cfg.Search.StopwordPolicy, "SEARCH_STOPWORD_POLICY")
	setDuration(&cfg.Search.Timeout, "SEARCH_TIMEOUT")
	if v := os.Getenv(EnvPrefix + "STOPWORDS"); v != "" {
		cfg.Stopwords.Words = strings.Split(v, ",")
	}
	setBool(&cfg.Cache.Enabled, "CACHE_ENABLED")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setBool(&cfg.Kafka.Enabled, "KAFKA_ENABLED")
	if v := os.Getenv(EnvPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool(&cfg.Postgres.Enabled, "POSTGRES_ENABLED")
	setString(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setString(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setString(&cfg.Postgres.User, "POSTGRES_USER")
	setString(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setString(&cfg.Postgres.SSLMode, "POSTGRES_SSLMODE")
	setDuration(&cfg.Analytics.SnapshotInterval, "ANALYTICS_SNAPSHOT_INTERVAL")
	setString(&cfg.Logging.Level, "LOGGING_LEVEL")
	setString(&cfg.Logging.Format, "LOGGING_FORMAT")
	setInt(&cfg.Metrics.Port, "METRICS_PORT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
