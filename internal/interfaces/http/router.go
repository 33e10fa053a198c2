// Package http assembles the read API: gin routes, middleware and the server.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/interfaces/http/handlers"
	"github.com/turtacn/rxn-reconciler/internal/interfaces/http/middleware"
)

// RouterConfig carries everything NewRouter wires. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Mode string

	DocumentHandler *handlers.DocumentHandler
	ResolveHandler  *handlers.ResolveHandler
	RunHandler      *handlers.RunHandler
	SearchHandler   *handlers.SearchHandler
	HealthHandler   *handlers.HealthHandler

	Logger      logging.Logger
	HTTPMetrics middleware.HTTPMetrics
	// MetricsHandler is mounted at MetricsPath when non-nil.
	MetricsHandler http.Handler
	MetricsPath    string
	RateLimiter    middleware.RateLimiter
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.SkipPaths = append(logCfg.SkipPaths, metricsPath)
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogging(log, cfg.HTTPMetrics, logCfg),
		middleware.Recovery(log),
	)
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, "/healthz", "/readyz", metricsPath))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorEnvelope{Error: handlers.APIError{Code: "COMMON_003", Message: "route not found"}})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ErrorEnvelope{Error: handlers.APIError{Code: "COMMON_002", Message: "method not allowed"}})
	})

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(cfg.MetricsHandler))
	}

	v1 := r.Group("/v1")
	if h := cfg.DocumentHandler; h != nil {
		v1.GET("/rhea/:id", h.GetRhea)
		v1.GET("/enzymes/:ec", h.GetEnzyme)
		v1.GET("/enzymes/:ec/rhea", h.ListRheaByEC)
		v1.GET("/stats", h.Stats)
	}
	if h := cfg.ResolveHandler; h != nil {
		v1.GET("/resolve", h.Resolve)
		v1.GET("/split", h.Split)
	}
	if h := cfg.RunHandler; h != nil {
		v1.GET("/runs", h.List)
	}
	if h := cfg.SearchHandler; h != nil {
		v1.GET("/search", h.Search)
		v1.GET("/compounds/:chebi/reactions", h.CompoundReactions)
	}
	return r
}
