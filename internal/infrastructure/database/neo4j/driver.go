// Package neo4j projects reconciled documents into a reaction graph:
// (:Enzyme)-[:CATALYZES]->(:Reaction)-[:INVOLVES]->(:Compound).
package neo4j

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// Result abstracts neo4j.ResultWithContext.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
	Consume(ctx context.Context) (neo4j.ResultSummary, error)
}

// Transaction abstracts neo4j.ManagedTransaction.
type Transaction interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// TransactionWork is a unit of work retried by the driver on transient errors.
type TransactionWork func(tx Transaction) (any, error)

type internalSession interface {
	ExecuteRead(ctx context.Context, work TransactionWork) (any, error)
	ExecuteWrite(ctx context.Context, work TransactionWork) (any, error)
	Close(ctx context.Context) error
}

type internalDriver interface {
	VerifyConnectivity(ctx context.Context) error
	NewSession(ctx context.Context, config neo4j.SessionConfig) internalSession
	Close(ctx context.Context) error
}

type stdResult struct {
	res neo4j.ResultWithContext
}

func (r *stdResult) Next(ctx context.Context) bool { return r.res.Next(ctx) }
func (r *stdResult) Record() *neo4j.Record         { return r.res.Record() }
func (r *stdResult) Err() error                    { return r.res.Err() }
func (r *stdResult) Consume(ctx context.Context) (neo4j.ResultSummary, error) {
	return r.res.Consume(ctx)
}

type stdTransaction struct {
	tx neo4j.ManagedTransaction
}

func (t *stdTransaction) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	res, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return &stdResult{res: res}, nil
}

type stdSession struct {
	s neo4j.SessionWithContext
}

func (s *stdSession) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	return s.s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&stdTransaction{tx: tx})
	})
}

func (s *stdSession) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	return s.s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&stdTransaction{tx: tx})
	})
}

func (s *stdSession) Close(ctx context.Context) error { return s.s.Close(ctx) }

type stdDriver struct {
	d neo4j.DriverWithContext
}

func (d *stdDriver) VerifyConnectivity(ctx context.Context) error { return d.d.VerifyConnectivity(ctx) }

func (d *stdDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) internalSession {
	return &stdSession{s: d.d.NewSession(ctx, config)}
}

func (d *stdDriver) Close(ctx context.Context) error { return d.d.Close(ctx) }

// Driver wraps the bolt driver with managed read/write transactions.
type Driver struct {
	driver   internalDriver
	database string
	logger   logging.Logger
	once     sync.Once
}

func NewDriver(cfg config.Neo4jConfig, log logging.Logger) (*Driver, error) {
	auth := neo4j.NoAuth()
	if cfg.User != "" {
		auth = neo4j.BasicAuth(cfg.User, cfg.Password, "")
	}
	drv, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionTimeout > 0 {
			c.SocketConnectTimeout = cfg.ConnectionTimeout
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
		}
		c.MaxConnectionLifetime = time.Hour
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraph, "failed to create neo4j driver")
	}

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(context.Background())
		return nil, errors.Wrap(err, errors.ErrCodeGraph, "failed to connect to neo4j")
	}

	log.Info("connected to neo4j", logging.String("uri", cfg.URI), logging.String("database", cfg.Database))
	return newDriver(&stdDriver{d: drv}, cfg.Database, log), nil
}

func newDriver(d internalDriver, database string, log logging.Logger) *Driver {
	if database == "" {
		database = "neo4j"
	}
	return &Driver{driver: d, database: database, logger: log}
}

func (d *Driver) session(ctx context.Context, mode neo4j.AccessMode) internalSession {
	return d.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database, AccessMode: mode})
}

func (d *Driver) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	s := d.session(ctx, neo4j.AccessModeRead)
	defer s.Close(ctx)

	result, err := s.ExecuteRead(ctx, work)
	if err != nil {
		d.logger.Error("neo4j read transaction failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeGraph, "neo4j read failed")
	}
	return result, nil
}

func (d *Driver) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	s := d.session(ctx, neo4j.AccessModeWrite)
	defer s.Close(ctx)

	result, err := s.ExecuteWrite(ctx, work)
	if err != nil {
		d.logger.Error("neo4j write transaction failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeGraph, "neo4j write failed")
	}
	return result, nil
}

func (d *Driver) HealthCheck(ctx context.Context) error {
	if err := d.driver.VerifyConnectivity(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeGraph, "neo4j connectivity check failed")
	}
	return nil
}

func (d *Driver) Close() error {
	var err error
	d.once.Do(func() {
		if err = d.driver.Close(context.Background()); err != nil {
			d.logger.Error("failed to close neo4j driver", logging.Err(err))
			return
		}
		d.logger.Info("neo4j driver closed")
	})
	return err
}

// CollectRecords maps every remaining record of result.
func CollectRecords[T any](ctx context.Context, result Result, mapper func(*neo4j.Record) (T, error)) ([]T, error) {
	var items []T
	for result.Next(ctx) {
		item, err := mapper(result.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
