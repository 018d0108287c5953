// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Storage, Redis, Kafka, Cache, Search, Artifacts, etc.).
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

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Admin     AdminConfig     `yaml:"admin"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects the relational store holding requests, cached
// requests and feedback records.
type StorageConfig struct {
	Driver     string         `yaml:"driver"`
	SQLitePath string         `yaml:"sqlitePath"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// KafkaConfig holds Kafka broker and topic settings. The event stream is
// optional and disabled by default.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	EventsTopic   string   `yaml:"eventsTopic"`
	BufferSize    int      `yaml:"bufferSize"`
	ConsumerGroup string   `yaml:"consumerGroup"`
}

// CacheConfig controls where cached results live and how long they stay fresh.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	FreshnessWindow time.Duration `yaml:"freshnessWindow"`
}

const (
	CacheBackendSQL   = "sql"
	CacheBackendRedis = "redis"
)

// SearchConfig controls the job-search provider calls made on a cache miss.
type SearchConfig struct {
	BaseURL      string        `yaml:"baseUrl"`
	APIKey       string        `yaml:"apiKey"`
	Engine       string        `yaml:"engine"`
	GoogleDomain string        `yaml:"googleDomain"`
	Location     string        `yaml:"location"`
	Country      string        `yaml:"country"`
	Language     string        `yaml:"language"`
	Chips        string        `yaml:"chips"`
	PageOffsets  []int         `yaml:"pageOffsets"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retryMax"`
	BreakerLimit int           `yaml:"breakerLimit"`
}

// ArtifactsConfig controls where rendered charts are written and how their
// public links are built.
type ArtifactsConfig struct {
	Backend       string   `yaml:"backend"`
	StaticDir     string   `yaml:"staticDir"`
	PublicBaseURL string   `yaml:"publicBaseUrl"`
	S3            S3Config `yaml:"s3"`
}

const (
	ArtifactBackendLocal = "local"
	ArtifactBackendS3    = "s3"
)

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	EndpointURL     string `yaml:"endpointUrl"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	Prefix          string `yaml:"prefix"`
}

// RateLimitConfig caps requests per client over a sliding window.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// AdminConfig holds the bearer token guarding administrative endpoints.
type AdminConfig struct {
	AuthToken string `yaml:"authToken"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
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

// AdminEnabled reports whether administrative endpoints can be used at all.
func (c *Config) AdminEnabled() bool {
	return c.Admin.AuthToken != ""
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
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

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			RequestTimeout:  75 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "job-keywords.db",
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				Database:        "jobkeywords",
				User:            "jobkeywords",
				Password:        "localdev",
				SSLMode:         "disable",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "jk:cache:",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			EventsTopic:   "skill-search-events",
			BufferSize:    10000,
			ConsumerGroup: "jkctl-events",
		},
		Cache: CacheConfig{
			Backend:         CacheBackendSQL,
			FreshnessWindow: 12 * time.Hour,
		},
		Search: SearchConfig{
			BaseURL:      "https://serpapi.com",
			Engine:       "google_jobs",
			GoogleDomain: "google.com",
			Location:     "New York, New York, United States",
			Country:      "us",
			Language:     "en",
			Chips:        "date_posted;week",
			PageOffsets:  []int{0, 10, 20, 30},
			Timeout:      60 * time.Second,
			RetryMax:     3,
			BreakerLimit: 5,
		},
		Artifacts: ArtifactsConfig{
			Backend:       ArtifactBackendLocal,
			StaticDir:     "static",
			PublicBaseURL: "http://localhost:8000",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		RateLimit: RateLimitConfig{
			Requests: 5,
			Window:   time.Second,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"https://job-keywords.khremin.com", "http://localhost:63342"},
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

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlitePath is required for the sqlite driver"))
		}
	case DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	switch c.Cache.Backend {
	case CacheBackendSQL, CacheBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend))
	}
	if c.Cache.FreshnessWindow <= 0 {
		errs = append(errs, errors.New("cache.freshnessWindow must be positive"))
	}
	switch c.Artifacts.Backend {
	case ArtifactBackendLocal:
		if c.Artifacts.StaticDir == "" {
			errs = append(errs, errors.New("artifacts.staticDir is required for the local backend"))
		}
	case ArtifactBackendS3:
		if c.Artifacts.S3.Bucket == "" {
			errs = append(errs, errors.New("artifacts.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifacts.backend %q is not supported", c.Artifacts.Backend))
	}
	if c.Artifacts.PublicBaseURL == "" {
		errs = append(errs, errors.New("artifacts.publicBaseUrl is required"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rateLimit.requests and rateLimit.window must be positive"))
	}
	if len(c.Search.PageOffsets) == 0 {
		errs = append(errs, errors.New("search.pageOffsets must not be empty"))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search.timeout must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// applyEnvOverrides reads JK_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JK_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("JK_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("JK_POSTGRES_HOST"); v != "" {
		cfg.Storage.Postgres.Host = v
	}
	if v := os.Getenv("JK_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Postgres.Port = port
		}
	}
	if v := os.Getenv("JK_POSTGRES_DATABASE"); v != "" {
		cfg.Storage.Postgres.Database = v
	}
	if v := os.Getenv("JK_POSTGRES_USER"); v != "" {
		cfg.Storage.Postgres.User = v
	}
	if v := os.Getenv("JK_POSTGRES_PASSWORD"); v != "" {
		cfg.Storage.Postgres.Password = v
	}
	if v := os.Getenv("JK_POSTGRES_SSLMODE"); v != "" {
		cfg.Storage.Postgres.SSLMode = v
	}
	if v := os.Getenv("JK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("JK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JK_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("JK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JK_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("JK_CACHE_FRESHNESS"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.FreshnessWindow = d
		}
	}
	if v := os.Getenv("JK_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("JK_SEARCH_BASE_URL"); v != "" {
		cfg.Search.BaseURL = v
	}
	if v := os.Getenv("JK_SEARCH_LOCATION"); v != "" {
		cfg.Search.Location = v
	}
	if v := os.Getenv("JK_ARTIFACTS_BACKEND"); v != "" {
		cfg.Artifacts.Backend = v
	}
	if v := os.Getenv("JK_STATIC_DIR"); v != "" {
		cfg.Artifacts.StaticDir = v
	}
	if v := os.Getenv("JK_DOMAIN"); v != "" {
		cfg.Artifacts.PublicBaseURL = v
	}
	if v := os.Getenv("JK_S3_BUCKET"); v != "" {
		cfg.Artifacts.S3.Bucket = v
	}
	if v := os.Getenv("JK_S3_REGION"); v != "" {
		cfg.Artifacts.S3.Region = v
	}
	if v := os.Getenv("JK_S3_ENDPOINT_URL"); v != "" {
		cfg.Artifacts.S3.EndpointURL = v
	}
	if v := os.Getenv("JK_S3_ACCESS_KEY_ID"); v != "" {
		cfg.Artifacts.S3.AccessKeyID = v
	}
	if v := os.Getenv("JK_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Artifacts.S3.SecretAccessKey = v
	}
	if v := os.Getenv("JK_RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Requests = n
		}
	}
	if v := os.Getenv("JK_RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = d
		}
	}
	if v := os.Getenv("JK_AUTH_TOKEN"); v != "" {
		cfg.Admin.AuthToken = v
	}
	if v := os.Getenv("JK_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("JK_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JK_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("JK_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if v := os.Getenv("JK_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
