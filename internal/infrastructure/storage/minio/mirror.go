package minio

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/source"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// Snapshots is the object store a SourceMirror writes to and reads from.
type Snapshots interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, meta map[string]string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SourceMirror wraps a Fetcher. In write mode every fetched file is copied
// into the bucket before it is handed to the caller. In read mode files are
// served from the bucket and only fetched upstream when no snapshot exists.
type SourceMirror struct {
	upstream  source.Fetcher
	snapshots Snapshots
	mode      string
	prefix    string
	logger    logging.Logger
	now       func() time.Time
}

// NewSourceMirror returns upstream unchanged when mode is off. namespace
// separates the Rhea and ExPASy trees inside the bucket.
func NewSourceMirror(upstream source.Fetcher, snapshots Snapshots, mode, prefix, namespace string, log logging.Logger) source.Fetcher {
	if mode == config.MirrorOff || snapshots == nil {
		return upstream
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SourceMirror{
		upstream:  upstream,
		snapshots: snapshots,
		mode:      mode,
		prefix:    path.Join(prefix, namespace),
		logger:    log.Named("mirror"),
		now:       time.Now,
	}
}

func (m *SourceMirror) Origin() string {
	if m.mode == config.MirrorRead {
		return "mirror"
	}
	return m.upstream.Origin()
}

func (m *SourceMirror) key(p string) string {
	return path.Join(m.prefix, p)
}

func (m *SourceMirror) Fetch(ctx context.Context, p string) (io.ReadCloser, error) {
	if m.mode == config.MirrorRead {
		rc, err := m.snapshots.Open(ctx, m.key(p))
		if err == nil {
			m.logger.Debug("serving source from snapshot", logging.Source(p), logging.String("key", m.key(p)))
			return rc, nil
		}
		if !errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "read source snapshot").WithDetail(p)
		}
		m.logger.Warn("no snapshot for source, fetching upstream", logging.Source(p))
	}
	return m.fetchAndStore(ctx, p)
}

// fetchAndStore spools the upstream file to disk so it can be uploaded with
// a known size, then returns the spooled copy. The temp file is removed on
// Close.
func (m *SourceMirror) fetchAndStore(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := m.upstream.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	sf, ok := rc.(*source.SpoolFile)
	if !ok {
		defer rc.Close()
		if sf, err = source.Spool(rc); err != nil {
			return nil, errors.Wrap(err, errors.GetCode(err), "read upstream source").WithDetail(p)
		}
	}

	meta := map[string]string{
		"source":     p,
		"origin":     m.upstream.Origin(),
		"fetched-at": m.now().UTC().Format(time.RFC3339),
	}
	if err := m.snapshots.Put(ctx, m.key(p), sf, sf.Size(), meta); err != nil {
		m.logger.Warn("source snapshot upload failed", logging.Source(p), logging.Err(err))
	} else {
		m.logger.Info("source snapshot stored", logging.Source(p), logging.String("key", m.key(p)), logging.Int64("bytes", sf.Size()))
	}
	if err := sf.Rewind(); err != nil {
		sf.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "rewind spool file").WithDetail(p)
	}
	return sf, nil
}
