package reconcile

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/memory"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

var fixedTime = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

var testPaths = Paths{
	ECRhea:      "rhea/tsv/ec-rhea-dir.tsv",
	ChEBINames:  "rhea/tsv/chebiId_name.tsv",
	RheaArchive: "rhea/ctfiles/rhea-rd.tar.gz",
	Enzyme:      "enzyme/enzyme.dat",
}

const (
	testECRhea = "EC\tRHEA\n1.1.1.1\t10036\n3.5.1.50\t10000\n"
	testChEBI  = "15377\twater\n16526\tcarbon dioxide\n15379\tdioxygen\n"
)

// writeRelease lays out a release directory for a FileFetcher. Files with a
// nil body are not written.
func writeRelease(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		if body == nil {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, body, 0o644))
	}
	return root
}

// rdArchive builds a gzip-compressed tar of rd/<id>.rd files.
func rdArchive(t *testing.T, entries map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, id := range order {
		body := entries[id]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: "rd/" + id + ".rd", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// mapResolver resolves names from a fixed table and records every call.
type mapResolver struct {
	mu    sync.Mutex
	ids   map[string]string
	calls []string
}

func newMapResolver(ids map[string]string) *mapResolver {
	return &mapResolver{ids: ids}
}

func (r *mapResolver) Resolve(_ context.Context, name string) reaction.Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if id, ok := r.ids[name]; ok {
		return reaction.Found(id)
	}
	return reaction.NotFound()
}

// MockSink is a testify mock of reaction.Sink.
type MockSink struct {
	mock.Mock
	name string
}

func newMockSink(name string) *MockSink {
	return &MockSink{name: name}
}

func (m *MockSink) Name() string { return m.name }

func (m *MockSink) RheaUpserted(ctx context.Context, rec *reaction.RheaReactionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockSink) EnzymeUpserted(ctx context.Context, rec *reaction.ExpasyEnzymeRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// flakyStore fails UpsertRhea and UpsertEnzyme for the listed keys.
type flakyStore struct {
	*memory.Store
	failKeys map[string]bool
}

func newFlakyStore(keys ...string) *flakyStore {
	s := &flakyStore{Store: memory.NewStore(), failKeys: map[string]bool{}}
	for _, k := range keys {
		s.failKeys[k] = true
	}
	return s
}

func (s *flakyStore) UpsertRhea(ctx context.Context, rec *reaction.RheaReactionRecord) error {
	if s.failKeys[rec.Key()] {
		return errors.New(errors.ErrCodeDatabaseError, "connection reset")
	}
	return s.Store.UpsertRhea(ctx, rec)
}

func (s *flakyStore) UpsertEnzyme(ctx context.Context, rec *reaction.ExpasyEnzymeRecord) error {
	if s.failKeys[rec.Key()] {
		return errors.New(errors.ErrCodeDatabaseError, "connection reset")
	}
	return s.Store.UpsertEnzyme(ctx, rec)
}

// recordingMetrics counts what the services report.
type recordingMetrics struct {
	mu         sync.Mutex
	outcomes   map[string]int
	malformed  int
	resolved   int
	unresolved int
	sinkErrors map[string]int
	passes     []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}, sinkErrors: map[string]int{}}
}

func (m *recordingMetrics) RecordOutcome(pass, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[pass+"/"+outcome]++
}

func (m *recordingMetrics) MalformedEquation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.malformed++
}

func (m *recordingMetrics) Constituents(resolved, unresolved int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved += resolved
	m.unresolved += unresolved
}

func (m *recordingMetrics) SinkError(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinkErrors[sink]++
}

func (m *recordingMetrics) PassFinished(pass string, _ time.Duration, _ int, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes = append(m.passes, pass)
}
