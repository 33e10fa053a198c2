// Package opensearch keeps a full-text index of reconciled documents and
// serves the read API's search endpoint from it.
package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

var (
	ErrInvalidConfig    = errors.New(errors.ErrCodeValidation, "opensearch: at least one address required")
	ErrConnectionFailed = errors.New(errors.ErrCodeSearchIndex, "opensearch connection failed")
)

// Client wraps the typed API client with the index naming scheme.
type Client struct {
	api     *opensearchapi.Client
	prefix  string
	logger  logging.Logger
	healthy atomic.Bool
}

// NewClient connects and pings once.
func NewClient(cfg config.OpenSearchConfig, logger logging.Logger) (*Client, error) {
	c, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}
	logger.Info("connected to opensearch", logging.Any("addresses", cfg.Addresses))
	return c, nil
}

func newClient(cfg config.OpenSearchConfig, logger logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrInvalidConfig
	}
	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	api, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:     cfg.Addresses,
			Username:      cfg.User,
			Password:      cfg.Password,
			Transport:     transport,
			MaxRetries:    3,
			RetryOnStatus: []int{502, 503, 504, 429},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchIndex, "failed to create opensearch client")
	}
	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = config.DefaultIndexPrefix
	}
	return &Client{api: api, prefix: prefix, logger: logger}, nil
}

// IndexName is "<prefix>-rhea" or "<prefix>-expasy".
func (c *Client) IndexName(kind reaction.DocumentKind) string {
	return c.prefix + "-" + string(kind)
}

func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.api.Ping(ctx, nil)
	if err == nil && resp != nil && resp.IsError() {
		err = errors.Newf(errors.ErrCodeSearchIndex, "ping returned status %d", resp.StatusCode)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("opensearch ping failed", logging.Err(err))
		return err
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy reports the result of the last Ping.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *Client) Close() error {
	c.logger.Info("opensearch client closed")
	return nil
}
