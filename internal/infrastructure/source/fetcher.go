// Package source opens the raw Rhea and ExPASy release files over HTTP(S) or
// from a local directory.
package source

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// Fetcher opens one release file by its path relative to the release root.
// Implementations return ErrCodeSourceNotFound for a missing file and
// ErrCodeSourceUnavailable for every other failure.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
	// Origin labels where the bytes come from ("http", "file", "mirror").
	Origin() string
}

// Options configure the fetcher returned by New.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// New picks an implementation from the scheme of baseURL.
func New(baseURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeConfig, "invalid source url %q", baseURL)
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPFetcher(baseURL, opts.Timeout, opts.UserAgent), nil
	case "file":
		return NewFileFetcher(u.Path), nil
	default:
		return nil, errors.Newf(errors.ErrCodeConfig, "unsupported source scheme %q", u.Scheme)
	}
}

// Metrics receives fetch timings and byte counts.
type Metrics interface {
	ObserveFetch(source, origin string, d time.Duration)
	SourceRead(source string, n int64)
}

type instrumented struct {
	next    Fetcher
	metrics Metrics
}

// Instrument reports the time to open each file and the bytes read from it.
func Instrument(f Fetcher, m Metrics) Fetcher {
	if m == nil {
		return f
	}
	return &instrumented{next: f, metrics: m}
}

func (i *instrumented) Origin() string { return i.next.Origin() }

func (i *instrumented) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := i.next.Fetch(ctx, path)
	i.metrics.ObserveFetch(path, i.next.Origin(), time.Since(start))
	if err != nil {
		return nil, err
	}
	return &countingReader{ReadCloser: rc, onClose: func(n int64) { i.metrics.SourceRead(path, n) }}, nil
}

type countingReader struct {
	io.ReadCloser
	n       int64
	onClose func(int64)
	closed  bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Close() error {
	if !c.closed {
		c.closed = true
		c.onClose(c.n)
	}
	return c.ReadCloser.Close()
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
