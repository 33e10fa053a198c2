// Package config defines the configuration structures for the reconciliation
// pipeline and its supporting services. No I/O lives here, only data types and
// validation.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MirrorConfig controls snapshotting of fetched sources into object storage.
type MirrorConfig struct {
	Mode   string `mapstructure:"mode"` // "off" | "write" | "read"
	Prefix string `mapstructure:"prefix"`
}

// SourcesConfig locates the raw Rhea and ExPASy releases.
type SourcesConfig struct {
	RheaBaseURL     string        `mapstructure:"rhea_base_url"`
	ExpasyBaseURL   string        `mapstructure:"expasy_base_url"`
	ECRheaPath      string        `mapstructure:"ec_rhea_path"`
	ChEBINamesPath  string        `mapstructure:"chebi_names_path"`
	RheaArchivePath string        `mapstructure:"rhea_archive_path"`
	EnzymePath      string        `mapstructure:"enzyme_path"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	Mirror          MirrorConfig  `mapstructure:"mirror"`
}

// AnnotatorConfig holds the BioPortal annotator endpoint. APIKey has no
// default and must come from the file or RXN_ANNOTATOR_API_KEY.
type AnnotatorConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Ontologies string        `mapstructure:"ontologies"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// Substitution rewrites one compound spelling before annotation. It is a list
// entry rather than a map key because viper lower-cases map keys.
type Substitution struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// ResolverConfig tunes compound resolution.
type ResolverConfig struct {
	CacheEnabled  bool           `mapstructure:"cache_enabled"`
	CacheTTL      time.Duration  `mapstructure:"cache_ttl"`
	NullCacheTTL  time.Duration  `mapstructure:"null_cache_ttl"`
	Substitutions []Substitution `mapstructure:"substitutions"`
}

// PipelineConfig holds batch-run knobs.
type PipelineConfig struct {
	// MaxRecords stops a pass after n records; 0 means no limit.
	MaxRecords int  `mapstructure:"max_records"`
	DryRun     bool `mapstructure:"dry_run"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the document store.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MigrationPath    string        `mapstructure:"migration_path"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds the resolution-cache connection.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

// MinIOConfig holds the source-mirror bucket.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig holds the document-event producer.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	ClientID     string        `mapstructure:"client_id"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// Neo4jConfig holds the reaction-graph connection.
type Neo4jConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// OpenSearchConfig holds the full-text index of reconciled documents.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	IndexPrefix        string   `mapstructure:"index_prefix"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	Path      string `mapstructure:"path"`
}

// ServerConfig holds HTTP server tunables for the read API.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimitRPS bounds requests per client IP; zero disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// WorkerConfig holds the scheduled-reconciliation daemon settings.
type WorkerConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	HealthPort int           `mapstructure:"health_port"`
	Passes     []string      `mapstructure:"passes"` // subset of "rhea", "expasy"
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Annotator  AnnotatorConfig  `mapstructure:"annotator"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
	Worker     WorkerConfig     `mapstructure:"worker"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks the fully-defaulted Config and returns the first problem.
// The annotator key is not checked here; see RequireAnnotator.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if err := validateBaseURL("sources.rhea_base_url", c.Sources.RheaBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("sources.expasy_base_url", c.Sources.ExpasyBaseURL); err != nil {
		return err
	}
	switch c.Sources.Mirror.Mode {
	case MirrorOff:
	case MirrorWrite, MirrorRead:
		if !c.MinIO.Enabled {
			return fmt.Errorf("config: sources.mirror.mode %q requires minio.enabled", c.Sources.Mirror.Mode)
		}
	default:
		return fmt.Errorf("config: sources.mirror.mode %q is invalid; expected off|write|read", c.Sources.Mirror.Mode)
	}

	if err := validateBaseURL("annotator.base_url", c.Annotator.BaseURL); err != nil {
		return err
	}
	if c.Annotator.Timeout <= 0 {
		return fmt.Errorf("config: annotator.timeout must be > 0")
	}
	if c.Annotator.MaxRetries < 0 {
		return fmt.Errorf("config: annotator.max_retries must be ≥ 0, got %d", c.Annotator.MaxRetries)
	}
	for i, sub := range c.Resolver.Substitutions {
		if sub.From == "" || sub.To == "" {
			return fmt.Errorf("config: resolver.substitutions[%d] needs both from and to", i)
		}
	}
	if c.Pipeline.MaxRecords < 0 {
		return fmt.Errorf("config: pipeline.max_records must be ≥ 0, got %d", c.Pipeline.MaxRecords)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Resolver.CacheEnabled && !c.Redis.Enabled {
		return fmt.Errorf("config: resolver.cache_enabled requires redis.enabled")
	}
	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required when minio is enabled")
		}
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}
	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		return fmt.Errorf("config: neo4j.uri is required when neo4j is enabled")
	}
	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses is required when opensearch is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rate_limit_rps must not be negative")
	}

	if c.Worker.Interval < time.Minute {
		return fmt.Errorf("config: worker.interval must be at least 1m, got %s", c.Worker.Interval)
	}
	for _, p := range c.Worker.Passes {
		if p != PassRhea && p != PassExpasy {
			return fmt.Errorf("config: worker.passes entry %q is invalid; expected rhea|expasy", p)
		}
	}
	return nil
}

// RequireAnnotator reports an error when compound resolution cannot run
// because no API key was supplied.
func (c *Config) RequireAnnotator() error {
	if c.Annotator.APIKey == "" {
		return fmt.Errorf("config: annotator.api_key is required (set RXN_ANNOTATOR_API_KEY)")
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("config: %s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: %s %q is not a valid URL: %w", key, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
		return nil
	default:
		return fmt.Errorf("config: %s scheme %q is unsupported; expected http|https|file", key, u.Scheme)
	}
}
