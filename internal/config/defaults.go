package config

import "time"

// Mirror modes.
const (
	MirrorOff   = "off"
	MirrorWrite = "write"
	MirrorRead  = "read"
)

// Pass names.
const (
	PassRhea   = "rhea"
	PassExpasy = "expasy"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRheaBaseURL     = "https://ftp.ebi.ac.uk/pub/databases/rhea/"
	DefaultExpasyBaseURL   = "https://ftp.expasy.org/databases/enzyme/"
	DefaultECRheaPath      = "tsv/ec-rhea-dir.tsv"
	DefaultChEBINamesPath  = "tsv/chebiId_name.tsv"
	DefaultRheaArchivePath = "ctfiles/rhea-rd.tar.gz"
	DefaultEnzymePath      = "enzyme.dat"
	DefaultFetchTimeout    = 10 * time.Minute
	DefaultUserAgent       = "rxn-reconciler/1.0"
	DefaultMirrorPrefix    = "sources"

	DefaultAnnotatorBaseURL    = "https://data.bioontology.org/annotator"
	DefaultAnnotatorOntologies = "CHEBI"
	DefaultAnnotatorTimeout    = 30 * time.Second

	DefaultResolverCacheTTL     = 30 * 24 * time.Hour
	DefaultResolverNullCacheTTL = 24 * time.Hour

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBUser         = "reactions"
	DefaultDBName         = "reactions"
	DefaultDBMaxOpenConns = 10
	DefaultDBMaxIdleConns = 2
	DefaultMigrationPath  = "migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisKeyPrefix = "rxn:"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "rxn-sources"

	DefaultKafkaBroker = "localhost:9092"
	DefaultKafkaTopic  = "reaction.document.upserted"
	DefaultKafkaClient = "rxn-reconciler"

	DefaultNeo4jURI      = "bolt://localhost:7687"
	DefaultNeo4jDatabase = "neo4j"

	DefaultOpenSearchAddress = "http://localhost:9200"
	DefaultIndexPrefix       = "reactions"

	DefaultMetricsNamespace = "rxn"
	DefaultMetricsPath      = "/metrics"

	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultWorkerInterval   = 7 * 24 * time.Hour
	DefaultWorkerHealthPort = 8081
)

// ApplyDefaults fills every zero-value field with its default. Explicit
// settings always win. Booleans are left alone since false is meaningful.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Log.ErrorOutputPaths) == 0 {
		cfg.Log.ErrorOutputPaths = []string{"stderr"}
	}

	// ── Sources ───────────────────────────────────────────────────────────────
	s := &cfg.Sources
	setString(&s.RheaBaseURL, DefaultRheaBaseURL)
	setString(&s.ExpasyBaseURL, DefaultExpasyBaseURL)
	setString(&s.ECRheaPath, DefaultECRheaPath)
	setString(&s.ChEBINamesPath, DefaultChEBINamesPath)
	setString(&s.RheaArchivePath, DefaultRheaArchivePath)
	setString(&s.EnzymePath, DefaultEnzymePath)
	setString(&s.UserAgent, DefaultUserAgent)
	setString(&s.Mirror.Mode, MirrorOff)
	setString(&s.Mirror.Prefix, DefaultMirrorPrefix)
	if s.FetchTimeout == 0 {
		s.FetchTimeout = DefaultFetchTimeout
	}

	// ── Annotator ─────────────────────────────────────────────────────────────
	setString(&cfg.Annotator.BaseURL, DefaultAnnotatorBaseURL)
	setString(&cfg.Annotator.Ontologies, DefaultAnnotatorOntologies)
	if cfg.Annotator.Timeout == 0 {
		cfg.Annotator.Timeout = DefaultAnnotatorTimeout
	}

	// ── Resolver ──────────────────────────────────────────────────────────────
	if cfg.Resolver.CacheTTL == 0 {
		cfg.Resolver.CacheTTL = DefaultResolverCacheTTL
	}
	if cfg.Resolver.NullCacheTTL == 0 {
		cfg.Resolver.NullCacheTTL = DefaultResolverNullCacheTTL
	}

	// ── Database ──────────────────────────────────────────────────────────────
	setString(&cfg.Database.Host, DefaultDBHost)
	setString(&cfg.Database.User, DefaultDBUser)
	setString(&cfg.Database.DBName, DefaultDBName)
	setString(&cfg.Database.SSLMode, "disable")
	setString(&cfg.Database.MigrationPath, DefaultMigrationPath)
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.StatementTimeout == 0 {
		cfg.Database.StatementTimeout = 30 * time.Second
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	setString(&cfg.Redis.Addr, DefaultRedisAddr)
	setString(&cfg.Redis.KeyPrefix, DefaultRedisKeyPrefix)
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	setString(&cfg.MinIO.Endpoint, DefaultMinIOEndpoint)
	setString(&cfg.MinIO.Bucket, DefaultMinIOBucket)

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	setString(&cfg.Kafka.Topic, DefaultKafkaTopic)
	setString(&cfg.Kafka.ClientID, DefaultKafkaClient)
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.Kafka.RequiredAcks == 0 {
		cfg.Kafka.RequiredAcks = -1
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	setString(&cfg.Neo4j.URI, DefaultNeo4jURI)
	setString(&cfg.Neo4j.Database, DefaultNeo4jDatabase)
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = 20
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 10 * time.Second
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddress}
	}
	setString(&cfg.OpenSearch.IndexPrefix, DefaultIndexPrefix)

	// ── Metrics ───────────────────────────────────────────────────────────────
	setString(&cfg.Metrics.Namespace, DefaultMetricsNamespace)
	setString(&cfg.Metrics.Path, DefaultMetricsPath)

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	setString(&cfg.Server.Mode, DefaultServerMode)
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(2 * cfg.Server.RateLimitRPS)
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Interval == 0 {
		cfg.Worker.Interval = DefaultWorkerInterval
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}
	if len(cfg.Worker.Passes) == 0 {
		cfg.Worker.Passes = []string{PassRhea, PassExpasy}
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
