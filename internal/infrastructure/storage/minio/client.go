// Package minio keeps snapshots of raw source releases in an S3-compatible
// bucket so a run can be replayed against exactly the bytes it first saw.
package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

var (
	ErrObjectNotFound    = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrMinIOClientClosed = errors.New(errors.ErrCodeStorage, "minio client is closed")
)

// ObjectAPI is the subset of the MinIO SDK the mirror needs. GetObject
// returns a plain ReadCloser so tests can fake it.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// sdkAPI adapts *minio.Client to ObjectAPI.
type sdkAPI struct {
	*minio.Client
}

// GetObject stats the object first so a missing key surfaces here rather
// than on the first Read.
func (a sdkAPI) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := a.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

type Client struct {
	api    ObjectAPI
	bucket string
	region string
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient connects, verifies credentials and creates the bucket if needed.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfig, "failed to create minio client")
	}

	c := NewClientWithAPI(sdkAPI{sdk}, cfg.Bucket, cfg.Region, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func NewClientWithAPI(api ObjectAPI, bucket, region string, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if region == "" {
		region = "us-east-1"
	}
	return &Client{api: api, bucket: bucket, region: region, logger: log}
}

func (c *Client) Bucket() string { return c.bucket }

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to check bucket existence").WithDetail(c.bucket)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to create bucket").WithDetail(c.bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.bucket))
	return nil
}

// Put stores size bytes from r under key.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, meta map[string]string) error {
	if c.isClosed() {
		return ErrMinIOClientClosed
	}
	opts := minio.PutObjectOptions{
		ContentType:  "application/octet-stream",
		UserMetadata: meta,
	}
	if _, err := c.api.PutObject(ctx, c.bucket, key, r, size, opts); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "upload failed").WithDetail(key)
	}
	return nil
}

// Open returns ErrObjectNotFound for a missing key.
func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if c.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	rc, err := c.api.GetObject(ctx, c.bucket, key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail(key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "download failed").WithDetail(key)
	}
	return rc, nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorage, "stat failed").WithDetail(key)
	}
	return true, nil
}

// ObjectSummary describes one stored snapshot.
type ObjectSummary struct {
	Key          string
	Size         int64
	LastModified time.Time
}

func (c *Client) List(ctx context.Context, prefix string) ([]ObjectSummary, error) {
	var out []ObjectSummary
	for obj := range c.api.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorage, "list failed").WithDetail(prefix)
		}
		out = append(out, ObjectSummary{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
