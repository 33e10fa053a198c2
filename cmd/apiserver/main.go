// Command apiserver serves the reconciled documents over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/bootstrap"
	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/rxn-reconciler/internal/interfaces/http"
)

const (
	defaultConfigPath = "configs/config.yaml"
	openTimeout       = 30 * time.Second
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file (empty for environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
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
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := serve(cfg, logger); err != nil {
		logger.Error("api server exited", logging.Err(err))
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.LoadFromEnv()
		}
	}
	return config.Load(path)
}

func serve(cfg *config.Config, logger logging.Logger) error {
	openCtx, cancel := context.WithTimeout(context.Background(), openTimeout)
	infra, err := bootstrap.Open(openCtx, cfg, logger, bootstrap.Options{})
	cancel()
	if err != nil {
		return fmt.Errorf("infrastructure: %w", err)
	}
	defer infra.Close()

	router := httpserver.NewRouter(infra.RouterConfig(version))
	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", logging.String("addr", srv.Addr()), logging.String("version", version))
		errCh <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down api server")
	}
	return srv.Shutdown(context.Background())
}
