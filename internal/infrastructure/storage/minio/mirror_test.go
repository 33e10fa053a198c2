package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/source"
	pkgerrors "github.com/turtacn/rxn-reconciler/pkg/errors"
)

type memorySnapshots struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
	openErr error
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (m *memorySnapshots) Put(_ context.Context, key string, r io.Reader, size int64, meta map[string]string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.meta[key] = meta
	return nil
}

func (m *memorySnapshots) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound.WithDetail(key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type stubFetcher struct {
	files map[string]string
	calls int
}

func (f *stubFetcher) Origin() string { return "http" }

func (f *stubFetcher) Fetch(_ context.Context, p string) (io.ReadCloser, error) {
	f.calls++
	body, ok := f.files[p]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.ErrCodeSourceNotFound, "source file not found").WithDetail(p)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestNewSourceMirror_OffReturnsUpstream(t *testing.T) {
	up := &stubFetcher{}
	f := NewSourceMirror(up, newMemorySnapshots(), config.MirrorOff, "sources", "rhea", nil)
	assert.Same(t, up, f)
}

func TestSourceMirror_WriteMode(t *testing.T) {
	up := &stubFetcher{files: map[string]string{"enzyme.dat": "ID   1.1.1.1\n//\n"}}
	snaps := newMemorySnapshots()
	f := NewSourceMirror(up, snaps, config.MirrorWrite, "sources", "expasy", nil)
	f.(*SourceMirror).now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }

	assert.Equal(t, "http", f.Origin())
	rc, err := f.Fetch(context.Background(), "enzyme.dat")
	require.NoError(t, err)
	assert.Equal(t, "ID   1.1.1.1\n//\n", readAll(t, rc))

	assert.Equal(t, "ID   1.1.1.1\n//\n", string(snaps.objects["sources/expasy/enzyme.dat"]))
	assert.Equal(t, "2026-10-16T08:00:00Z", snaps.meta["sources/expasy/enzyme.dat"]["fetched-at"])
	assert.Equal(t, "http", snaps.meta["sources/expasy/enzyme.dat"]["origin"])
}

type spoolingFetcher struct{ body string }

func (f spoolingFetcher) Origin() string { return "http" }

func (f spoolingFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	return source.Spool(strings.NewReader(f.body))
}

func TestSourceMirror_WriteModeReusesUpstreamSpool(t *testing.T) {
	snaps := newMemorySnapshots()
	f := NewSourceMirror(spoolingFetcher{body: "10000\t3.5.1.50\n"}, snaps, config.MirrorWrite, "sources", "rhea", nil)

	rc, err := f.Fetch(context.Background(), "tsv/ec-rhea-dir.tsv")
	require.NoError(t, err)
	_, ok := rc.(*source.SpoolFile)
	assert.True(t, ok)
	assert.Equal(t, "10000\t3.5.1.50\n", readAll(t, rc))
	assert.Equal(t, "10000\t3.5.1.50\n", string(snaps.objects["sources/rhea/tsv/ec-rhea-dir.tsv"]))
}

func TestSourceMirror_WriteModeUploadFailureStillServes(t *testing.T) {
	up := &stubFetcher{files: map[string]string{"enzyme.dat": "payload"}}
	snaps := newMemorySnapshots()
	snaps.putErr = errors.New("bucket full")
	f := NewSourceMirror(up, snaps, config.MirrorWrite, "sources", "expasy", nil)

	rc, err := f.Fetch(context.Background(), "enzyme.dat")
	require.NoError(t, err)
	assert.Equal(t, "payload", readAll(t, rc))
}

func TestSourceMirror_ReadModeServesSnapshot(t *testing.T) {
	up := &stubFetcher{files: map[string]string{"tsv/ec-rhea-dir.tsv": "upstream"}}
	snaps := newMemorySnapshots()
	snaps.objects["sources/rhea/tsv/ec-rhea-dir.tsv"] = []byte("snapshot")
	f := NewSourceMirror(up, snaps, config.MirrorRead, "sources", "rhea", nil)

	assert.Equal(t, "mirror", f.Origin())
	rc, err := f.Fetch(context.Background(), "tsv/ec-rhea-dir.tsv")
	require.NoError(t, err)
	assert.Equal(t, "snapshot", readAll(t, rc))
	assert.Zero(t, up.calls)
}

func TestSourceMirror_ReadModeFallsBackAndStores(t *testing.T) {
	up := &stubFetcher{files: map[string]string{"tsv/ec-rhea-dir.tsv": "upstream"}}
	snaps := newMemorySnapshots()
	f := NewSourceMirror(up, snaps, config.MirrorRead, "sources", "rhea", nil)

	rc, err := f.Fetch(context.Background(), "tsv/ec-rhea-dir.tsv")
	require.NoError(t, err)
	assert.Equal(t, "upstream", readAll(t, rc))
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, "upstream", string(snaps.objects["sources/rhea/tsv/ec-rhea-dir.tsv"]))
}

func TestSourceMirror_ReadModeStorageError(t *testing.T) {
	snaps := newMemorySnapshots()
	snaps.openErr = pkgerrors.New(pkgerrors.ErrCodeStorage, "download failed")
	f := NewSourceMirror(&stubFetcher{}, snaps, config.MirrorRead, "sources", "rhea", nil)

	_, err := f.Fetch(context.Background(), "tsv/ec-rhea-dir.tsv")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSourceUnavailable))
}

func TestSourceMirror_UpstreamMissing(t *testing.T) {
	f := NewSourceMirror(&stubFetcher{}, newMemorySnapshots(), config.MirrorWrite, "sources", "rhea", nil)
	_, err := f.Fetch(context.Background(), "ctfiles/rhea-rd.tar.gz")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSourceNotFound))
}
