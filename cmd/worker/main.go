// Command worker runs the reconciliation passes on a schedule and serves
// health probes and metrics on worker.health_port.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/rxn-reconciler/internal/application/reconcile"
	"github.com/turtacn/rxn-reconciler/internal/bootstrap"
	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/redis"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/rxn-reconciler/internal/interfaces/http"
	"github.com/turtacn/rxn-reconciler/internal/interfaces/http/handlers"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	lockName                = "reconcile"
	lockTTL                 = 10 * time.Minute
	shutdownTimeout         = 30 * time.Second
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file (empty for environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	once := flag.Bool("once", false, "run the configured passes once and exit")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, configFile(*configPath), logger, *once); err != nil {
		logger.Error("worker exited", logging.Err(err))
		logger.Sync()
		os.Exit(1)
	}
}

// loadConfig falls back to environment-only configuration when the default
// path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultWorkerConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.LoadFromEnv()
		}
	}
	return config.Load(path)
}

// configFile returns the path to watch for reloads, or "" when the
// configuration came from the environment only.
func configFile(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func run(cfg *config.Config, watchPath string, logger logging.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("infrastructure: %w", err)
	}
	defer infra.Close()

	withResolver := false
	for _, p := range cfg.Worker.Passes {
		withResolver = withResolver || p == config.PassExpasy
	}
	if len(cfg.Worker.Passes) == 0 {
		withResolver = true
	}
	pipeline, err := infra.Pipeline(cfg.Pipeline, withResolver)
	if err != nil {
		return err
	}

	var lock reconcile.Locker
	if infra.Redis != nil {
		lock = redis.NewRunLock(infra.Redis, lockName, lockTTL, logger)
	}
	scheduler := reconcile.NewScheduler(pipeline, cfg.Worker, lock, logger)

	if once {
		_, err := scheduler.Tick(ctx)
		return err
	}

	if watchPath != "" {
		err := config.Watch(watchPath,
			func(next *config.Config) { scheduler.Reconfigure(next.Worker) },
			func(err error) { logger.Warn("config reload rejected", logging.Err(err)) })
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	health := startHealthServer(cfg, infra, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := health.Shutdown(shutdownCtx); err != nil {
			logger.Error("health server shutdown error", logging.Err(err))
		}
	}()

	logger.Info("worker started",
		logging.String("version", version),
		logging.Any("passes", scheduler.Passes()),
		logging.Duration("interval", cfg.Worker.Interval))
	return scheduler.Run(ctx)
}

// startHealthServer serves /healthz, /readyz and the metrics endpoint.
func startHealthServer(cfg *config.Config, infra *bootstrap.Infrastructure, logger logging.Logger) *httpserver.Server {
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Mode:           gin.ReleaseMode,
		HealthHandler:  handlers.NewHealthHandler(version, infra.HealthCheckers()...),
		Logger:         logger,
		HTTPMetrics:    infra.Metrics,
		MetricsHandler: infra.MetricsHandler(),
		MetricsPath:    cfg.Metrics.Path,
	})
	srv := httpserver.NewServer(config.ServerConfig{
		Port:            cfg.Worker.HealthPort,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, router, logger.Named("health"))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}
