// Package bootstrap opens the clients named by the configuration and wires
// them into the reconcile pipeline and the read API. The three binaries share
// it so they agree on what "enabled" means for every backend.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/application/reconcile"
	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/neo4j"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/postgres"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/redis"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/search/opensearch"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/source"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/storage/minio"
	chemresolver "github.com/turtacn/rxn-reconciler/internal/intelligence/chem_resolver"
	httpserver "github.com/turtacn/rxn-reconciler/internal/interfaces/http"
	"github.com/turtacn/rxn-reconciler/internal/interfaces/http/handlers"
	"github.com/turtacn/rxn-reconciler/internal/interfaces/http/middleware"
	"github.com/turtacn/rxn-reconciler/pkg/client"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// Options selects which parts of the stack a process needs.
type Options struct {
	// SkipStore leaves PostgreSQL closed, for commands that never persist.
	SkipStore bool
	// SkipSinks leaves Kafka, Neo4j and OpenSearch closed even when enabled.
	SkipSinks bool
}

// Infrastructure owns every opened client. Fields for disabled backends
// stay nil.
type Infrastructure struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.PipelineMetrics

	collector prometheus.MetricsCollector

	Postgres   *postgres.Connection
	Redis      *redis.Client
	MinIO      *minio.Client
	Kafka      *kafka.Producer
	Neo4j      *neo4j.Driver
	OpenSearch *opensearch.Client

	Documents *repositories.DocumentRepository
	Runs      *repositories.RunRepository
	Graph     *neo4j.GraphProjector
	Indexer   *opensearch.DocumentIndexer

	resolver      chemresolver.Resolver
	batchResolver chemresolver.Resolver
}

// NewLogger builds the process logger from the log section and installs it
// as the logging default.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	log, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Level,
		Format:           cfg.Format,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(log)
	return log, nil
}

// Open dials the enabled backends in dependency order. On failure everything
// opened so far is closed again.
func Open(ctx context.Context, cfg *config.Config, log logging.Logger, opts Options) (*Infrastructure, error) {
	if log == nil {
		log = logging.Default()
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            cfg.Metrics.Subsystem,
		EnableProcessMetrics: cfg.Metrics.Enabled,
		EnableGoMetrics:      cfg.Metrics.Enabled,
	}, log)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfig, "metrics collector")
	}
	infra := &Infrastructure{
		Config:    cfg,
		Logger:    log,
		collector: collector,
		Metrics:   prometheus.NewPipelineMetrics(collector),
	}
	if err := infra.open(ctx, opts); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infrastructure) open(ctx context.Context, opts Options) error {
	cfg, log := i.Config, i.Logger
	var err error

	if !opts.SkipStore {
		if i.Postgres, err = postgres.NewConnection(cfg.Database, log); err != nil {
			return err
		}
		if cfg.Database.AutoMigrate {
			if err := migrate(i.Postgres, cfg.Database, log); err != nil {
				return err
			}
		}
		i.Documents = repositories.NewDocumentRepository(i.Postgres.DB(), log, i.Metrics)
		i.Runs = repositories.NewRunRepository(i.Postgres.DB())
	}

	if cfg.Redis.Enabled {
		if i.Redis, err = redis.NewClient(cfg.Redis, log); err != nil {
			return err
		}
	}

	if cfg.MinIO.Enabled {
		if i.MinIO, err = minio.NewClient(cfg.MinIO, log); err != nil {
			return err
		}
		if err := i.MinIO.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	if opts.SkipSinks {
		return nil
	}
	if cfg.Kafka.Enabled {
		if i.Kafka, err = kafka.NewProducer(cfg.Kafka, log); err != nil {
			return err
		}
	}
	if cfg.Neo4j.Enabled {
		if i.Neo4j, err = neo4j.NewDriver(cfg.Neo4j, log); err != nil {
			return err
		}
		i.Graph = neo4j.NewGraphProjector(i.Neo4j, log)
	}
	if cfg.OpenSearch.Enabled {
		if i.OpenSearch, err = opensearch.NewClient(cfg.OpenSearch, log); err != nil {
			return err
		}
		i.Indexer = opensearch.NewDocumentIndexer(i.OpenSearch, false, log)
		if err := i.Indexer.EnsureIndices(ctx); err != nil {
			return err
		}
	}
	return nil
}

func migrate(conn *postgres.Connection, cfg config.DatabaseConfig, log logging.Logger) error {
	mg, err := postgres.NewMigrator(conn.DB(), cfg.MigrationPath, log)
	if err != nil {
		return err
	}
	return mg.Up()
}

// MetricsHandler serves the collector's registry, or nil when metrics are
// disabled.
func (i *Infrastructure) MetricsHandler() http.Handler {
	if !i.Config.Metrics.Enabled {
		return nil
	}
	return i.collector.Handler()
}

// Fetchers builds the Rhea and ExPASy fetchers: upstream, then the MinIO
// mirror when configured, then timing instrumentation.
func (i *Infrastructure) Fetchers() (rhea, expasy source.Fetcher, err error) {
	build := func(baseURL, namespace string) (source.Fetcher, error) {
		up, err := source.New(baseURL, source.Options{
			Timeout:   i.Config.Sources.FetchTimeout,
			UserAgent: i.Config.Sources.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		var snapshots minio.Snapshots
		if i.MinIO != nil {
			snapshots = i.MinIO
		}
		mirror := i.Config.Sources.Mirror
		f := minio.NewSourceMirror(up, snapshots, mirror.Mode, mirror.Prefix, namespace, i.Logger)
		return source.Instrument(f, i.Metrics), nil
	}
	if rhea, err = build(i.Config.Sources.RheaBaseURL, "rhea"); err != nil {
		return nil, nil, err
	}
	if expasy, err = build(i.Config.Sources.ExpasyBaseURL, "expasy"); err != nil {
		return nil, nil, err
	}
	return rhea, expasy, nil
}

// Resolver returns the annotator-backed resolver for on-demand lookups,
// wrapped in the Redis cache when resolver.cache_enabled and Redis are both
// on. Every call that misses the cache reaches the annotator. It fails
// without an API key.
func (i *Infrastructure) Resolver() (chemresolver.Resolver, error) {
	if i.resolver == nil {
		r, err := i.newResolver()
		if err != nil {
			return nil, err
		}
		i.resolver = r
	}
	return i.resolver, nil
}

// passResolver is the resolver handed to the pipeline. It remembers failed
// names for the rest of a pass; the pipeline clears that memory when a pass
// starts.
func (i *Infrastructure) passResolver() (chemresolver.Resolver, error) {
	if i.batchResolver == nil {
		r, err := i.newResolver(chemresolver.WithFailureMemory())
		if err != nil {
			return nil, err
		}
		i.batchResolver = r
	}
	return i.batchResolver, nil
}

func (i *Infrastructure) newResolver(opts ...chemresolver.CachedOption) (*chemresolver.CachedResolver, error) {
	cfg := i.Config
	if err := cfg.RequireAnnotator(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfig, "annotator")
	}
	annotator, err := client.NewClient(cfg.Annotator.BaseURL, cfg.Annotator.APIKey,
		client.WithTimeout(cfg.Annotator.Timeout),
		client.WithRetryMax(cfg.Annotator.MaxRetries),
		client.WithUserAgent(cfg.Sources.UserAgent),
		client.WithLogger(printfLogger{i.Logger.Named("annotator")}),
	)
	if err != nil {
		return nil, err
	}

	extra := make(map[string]string, len(cfg.Resolver.Substitutions))
	for _, s := range cfg.Resolver.Substitutions {
		extra[s.From] = s.To
	}
	params := client.DefaultAnnotateParams()
	params.Ontologies = cfg.Annotator.Ontologies

	base := chemresolver.NewAnnotatorResolver(annotator, i.Logger,
		chemresolver.WithNormalizer(chemresolver.NewNormalizer(extra)),
		chemresolver.WithAnnotateParams(params),
		chemresolver.WithMetrics(i.Metrics),
	)

	var cache chemresolver.Cache = chemresolver.NewMemoryCache(cfg.Resolver.NullCacheTTL)
	if cfg.Resolver.CacheEnabled && i.Redis != nil {
		cache = redis.NewResolutionCache(i.Redis, i.Logger,
			redis.WithTTL(cfg.Resolver.CacheTTL),
			redis.WithNullCacheTTL(cfg.Resolver.NullCacheTTL),
		)
	}
	return chemresolver.NewCachedResolver(base, cache, i.Metrics, i.Logger, opts...), nil
}

// Sinks lists the secondary writers that were opened.
func (i *Infrastructure) Sinks() []reaction.Sink {
	var sinks []reaction.Sink
	if i.Kafka != nil {
		sinks = append(sinks, i.Kafka)
	}
	if i.Graph != nil {
		sinks = append(sinks, i.Graph)
	}
	if i.Indexer != nil {
		sinks = append(sinks, i.Indexer)
	}
	return sinks
}

// Pipeline wires a reconcile pipeline. withResolver=false builds a pipeline
// that can only run the Rhea pass, for runs without an annotator key.
func (i *Infrastructure) Pipeline(pcfg config.PipelineConfig, withResolver bool) (*reconcile.Pipeline, error) {
	rheaF, expasyF, err := i.Fetchers()
	if err != nil {
		return nil, err
	}
	deps := reconcile.Deps{
		RheaFetcher:   rheaF,
		ExpasyFetcher: expasyF,
		Sinks:         i.Sinks(),
		Metrics:       i.Metrics,
		Logger:        i.Logger,
	}
	if i.Documents != nil {
		deps.Store = i.Documents
		deps.RunLog = i.Runs
	}
	if withResolver {
		if deps.Resolver, err = i.passResolver(); err != nil {
			return nil, err
		}
	}
	return reconcile.NewPipeline(deps, reconcile.PathsFromConfig(i.Config.Sources), pcfg)
}

// HealthCheckers reports one checker per opened backend.
func (i *Infrastructure) HealthCheckers() []handlers.HealthChecker {
	var out []handlers.HealthChecker
	if i.Postgres != nil {
		out = append(out, handlers.CheckFunc{Component: "postgres", Fn: i.Postgres.HealthCheck})
	}
	if i.Redis != nil {
		out = append(out, handlers.CheckFunc{Component: "redis", Fn: i.Redis.Ping})
	}
	if i.MinIO != nil {
		out = append(out, handlers.CheckFunc{Component: "minio", Fn: i.MinIO.EnsureBucket})
	}
	if i.Neo4j != nil {
		out = append(out, handlers.CheckFunc{Component: "neo4j", Fn: i.Neo4j.HealthCheck})
	}
	if i.OpenSearch != nil {
		out = append(out, handlers.CheckFunc{Component: "opensearch", Fn: i.OpenSearch.Ping})
	}
	return out
}

// RouterConfig wires the read API onto whatever was opened. Routes whose
// backend is missing are left out; the resolve routes need an annotator key.
func (i *Infrastructure) RouterConfig(version string) httpserver.RouterConfig {
	rc := httpserver.RouterConfig{
		Mode:           i.Config.Server.Mode,
		HealthHandler:  handlers.NewHealthHandler(version, i.HealthCheckers()...),
		Logger:         i.Logger,
		HTTPMetrics:    i.Metrics,
		MetricsHandler: i.MetricsHandler(),
		MetricsPath:    i.Config.Metrics.Path,
	}
	if i.Documents != nil {
		rc.DocumentHandler = handlers.NewDocumentHandler(i.Documents)
		rc.RunHandler = handlers.NewRunHandler(i.Runs)
	}
	if r, err := i.Resolver(); err == nil {
		rc.ResolveHandler = handlers.NewResolveHandler(r)
	} else {
		i.Logger.Warn("resolve routes disabled", logging.Err(err))
	}

	var (
		searcher handlers.Searcher
		graph    handlers.CompoundGraph
	)
	if i.OpenSearch != nil {
		searcher = opensearch.NewSearcher(i.OpenSearch)
	}
	if i.Graph != nil {
		graph = i.Graph
	}
	rc.SearchHandler = handlers.NewSearchHandler(searcher, graph)

	if rps := i.Config.Server.RateLimitRPS; rps > 0 {
		rc.RateLimiter = middleware.NewTokenBucketLimiter(rps, i.Config.Server.RateLimitBurst, time.Minute)
	}
	return rc
}

// Close releases clients in reverse order of Open and returns the first
// error.
func (i *Infrastructure) Close() error {
	var errs []error
	closeIf := func(name string, ok bool, fn func() error) {
		if !ok {
			return
		}
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	closeIf("opensearch", i.OpenSearch != nil, func() error { return i.OpenSearch.Close() })
	closeIf("neo4j", i.Neo4j != nil, func() error { return i.Neo4j.Close() })
	closeIf("kafka", i.Kafka != nil, func() error { return i.Kafka.Close() })
	closeIf("minio", i.MinIO != nil, func() error { return i.MinIO.Close() })
	closeIf("redis", i.Redis != nil, func() error { return i.Redis.Close() })
	closeIf("postgres", i.Postgres != nil, func() error { return i.Postgres.Close() })
	if len(errs) > 0 {
		i.Logger.Warn("infrastructure close", logging.Err(errors.Join(errs...)))
		return errs[0]
	}
	return nil
}

// printfLogger adapts logging.Logger to the annotator client's printf
// interface.
type printfLogger struct{ l logging.Logger }

func (p printfLogger) Debugf(format string, args ...interface{}) { p.l.Debug(fmt.Sprintf(format, args...)) }
func (p printfLogger) Infof(format string, args ...interface{})  { p.l.Info(fmt.Sprintf(format, args...)) }
func (p printfLogger) Errorf(format string, args ...interface{}) { p.l.Error(fmt.Sprintf(format, args...)) }
