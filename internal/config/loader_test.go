package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfigYAML = `
log:
  level: debug
  format: console
sources:
  rhea_base_url: "file:///data/rhea/"
  fetch_timeout: 2m
annotator:
  timeout: 5s
resolver:
  cache_enabled: true
  null_cache_ttl: 6h
  substitutions:
    - from: "NAD(+)"
      to: "NAD"
database:
  host: pg.internal
  port: 6432
redis:
  enabled: true
  addr: redis.internal:6379
kafka:
  enabled: true
  brokers: ["k1:9092"]
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeTempFile(t, "config.yaml", sampleConfigYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "file:///data/rhea/", cfg.Sources.RheaBaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Sources.FetchTimeout)
	assert.Equal(t, 5*time.Second, cfg.Annotator.Timeout)
	assert.Equal(t, 6*time.Hour, cfg.Resolver.NullCacheTTL)
	require.Len(t, cfg.Resolver.Substitutions, 1)
	assert.Equal(t, Substitution{From: "NAD(+)", To: "NAD"}, cfg.Resolver.Substitutions[0])
	assert.Equal(t, "pg.internal", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.Equal(t, []string{"k1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.Equal(t, DefaultExpasyBaseURL, cfg.Sources.ExpasyBaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempFile(t, "config.yaml", sampleConfigYAML)
	t.Setenv("RXN_DATABASE_HOST", "pg.override")
	t.Setenv("RXN_ANNOTATOR_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pg.override", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.Annotator.APIKey)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("RXN_ANNOTATOR_API_KEY", "env-key")
	t.Setenv("RXN_ANNOTATOR_TIMEOUT", "12s")
	t.Setenv("RXN_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Annotator.APIKey)
	assert.Equal(t, 12*time.Second, cfg.Annotator.Timeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_EmptyPathUsesEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "log:\n  level: loud\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadDotEnv(t *testing.T) {
	path := writeTempFile(t, ".env", "RXN_TEST_DOTENV_VALUE=from-file\n")
	t.Setenv("RXN_TEST_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("RXN_TEST_DOTENV_VALUE"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("RXN_TEST_DOTENV_VALUE"))
}

func TestLoadDotEnv_MissingFilesIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeTempFile(t, "config.yaml", sampleConfigYAML)

	changed := make(chan *Config, 1)
	require.NoError(t, Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil))

	updated := sampleConfigYAML + "\npipeline:\n  max_records: 42\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, 42, cfg.Pipeline.MaxRecords)
	case <-time.After(5 * time.Second):
		t.Skip("filesystem notifications unavailable in this environment")
	}
}
