package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/config"
	httpserver "github.com/turtacn/rxn-reconciler/internal/interfaces/http"
	"github.com/turtacn/rxn-reconciler/internal/testutil"
	"github.com/turtacn/rxn-reconciler/pkg/client"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const enzymeDat = `ID   1.1.1.1
DE   Alcohol dehydrogenase.
CA   water + unobtainium = water.
//
`

// annotatorServer answers "water" with CHEBI:15377 and everything else with
// no annotations.
func annotatorServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var out []client.Annotation
		if r.URL.Query().Get("text") == "water" {
			out = append(out, client.Annotation{
				AnnotatedClass: client.AnnotatedClass{ID: "http://purl.obolibrary.org/obo/CHEBI_15377", PrefLabel: "water"},
				Annotations:    []client.TextMatch{{From: 1, To: 5, MatchType: "PREF", Text: "WATER"}},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, release string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Sources.RheaBaseURL = "file://" + release
	cfg.Sources.ExpasyBaseURL = "file://" + release
	config.ApplyDefaults(cfg)
	return cfg
}

func openBare(t *testing.T, cfg *config.Config) *Infrastructure {
	t.Helper()
	infra, err := Open(context.Background(), cfg, testutil.NewMockLogger(), Options{SkipStore: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close() })
	return infra
}

func TestOpen_NothingEnabled(t *testing.T) {
	infra := openBare(t, testConfig(t, t.TempDir()))

	assert.Nil(t, infra.Postgres)
	assert.Nil(t, infra.Documents)
	assert.Empty(t, infra.Sinks())
	assert.Empty(t, infra.HealthCheckers())
	assert.Nil(t, infra.MetricsHandler())
	assert.NoError(t, infra.Close())
}

func TestInfrastructure_MetricsHandler(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Metrics.Enabled = true
	infra := openBare(t, cfg)

	h := infra.MetricsHandler()
	require.NotNil(t, h)
	infra.Metrics.RecordOutcome(config.PassRhea, "persisted")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rxn_")
}

func TestInfrastructure_Fetchers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enzyme.dat"), []byte(enzymeDat), 0o644))
	infra := openBare(t, testConfig(t, dir))

	_, expasy, err := infra.Fetchers()
	require.NoError(t, err)
	rc, err := expasy.Fetch(context.Background(), "enzyme.dat")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, enzymeDat, string(body))

	cfg := testConfig(t, dir)
	cfg.Sources.RheaBaseURL = "ftp://ftp.ebi.ac.uk/pub/databases/rhea/"
	_, _, err = openBare(t, cfg).Fetchers()
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
}

func TestInfrastructure_Resolver(t *testing.T) {
	var hits atomic.Int32
	srv := annotatorServer(t, &hits)

	cfg := testConfig(t, t.TempDir())
	_, err := openBare(t, cfg).Resolver()
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig), "api key is required")

	cfg.Annotator.BaseURL = srv.URL
	cfg.Annotator.APIKey = "secret"
	infra := openBare(t, cfg)
	r, err := infra.Resolver()
	require.NoError(t, err)

	ctx := context.Background()
	res := r.Resolve(ctx, "water")
	id, ok := res.Get()
	require.True(t, ok)
	assert.Equal(t, "15377", id)
	assert.False(t, r.Resolve(ctx, "unobtainium").IsFound())

	r.Resolve(ctx, "water")
	assert.Equal(t, int32(2), hits.Load(), "repeat lookups are served from cache")

	again, err := infra.Resolver()
	require.NoError(t, err)
	assert.Same(t, r, again)
}

func TestInfrastructure_PipelineDryRun(t *testing.T) {
	var hits atomic.Int32
	srv := annotatorServer(t, &hits)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enzyme.dat"), []byte(enzymeDat), 0o644))

	cfg := testConfig(t, dir)
	cfg.Annotator.BaseURL = srv.URL
	cfg.Annotator.APIKey = "secret"
	infra := openBare(t, cfg)

	_, err := infra.Pipeline(config.PipelineConfig{}, true)
	assert.Error(t, err, "a persisting pipeline needs the store")

	p, err := infra.Pipeline(config.PipelineConfig{DryRun: true}, true)
	require.NoError(t, err)
	report, err := p.Run(context.Background(), config.PassExpasy)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Persisted)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, 1, report.Unresolved)

	p, err = infra.Pipeline(config.PipelineConfig{DryRun: true}, false)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), config.PassExpasy)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
}

func TestNewLogger(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	log, err := NewLogger(cfg.Log)
	require.NoError(t, err)
	assert.NotNil(t, log)

	cfg.Log.Level = "loud"
	_, err = NewLogger(cfg.Log)
	assert.Error(t, err)
}

func TestInfrastructure_RouterConfig(t *testing.T) {
	infra := openBare(t, testConfig(t, t.TempDir()))
	rc := infra.RouterConfig("v0.1.0")

	assert.Nil(t, rc.DocumentHandler, "no store was opened")
	assert.Nil(t, rc.RunHandler)
	assert.Nil(t, rc.ResolveHandler, "no annotator key")
	assert.Nil(t, rc.RateLimiter)
	require.NotNil(t, rc.SearchHandler)
	require.NotNil(t, rc.HealthHandler)

	var hits atomic.Int32
	cfg := testConfig(t, t.TempDir())
	cfg.Annotator.BaseURL = annotatorServer(t, &hits).URL
	cfg.Annotator.APIKey = "secret"
	cfg.Server.RateLimitRPS = 5
	config.ApplyDefaults(cfg)
	rc = openBare(t, cfg).RouterConfig("v0.1.0")
	assert.NotNil(t, rc.ResolveHandler)
	require.NotNil(t, rc.RateLimiter)

	rc.Mode = "test"
	r := httpserver.NewRouter(rc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/search?q=water", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "search without opensearch is unavailable, not a panic")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/resolve?name=water", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "15377")
}
