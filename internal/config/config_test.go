package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
		{"rhea url scheme", func(c *Config) { c.Sources.RheaBaseURL = "ftp://ftp.ebi.ac.uk/pub/databases/rhea/" }, "sources.rhea_base_url"},
		{"empty expasy url", func(c *Config) { c.Sources.ExpasyBaseURL = "" }, "sources.expasy_base_url"},
		{"mirror without minio", func(c *Config) { c.Sources.Mirror.Mode = MirrorRead }, "requires minio.enabled"},
		{"unknown mirror mode", func(c *Config) { c.Sources.Mirror.Mode = "sync" }, "sources.mirror.mode"},
		{"annotator timeout", func(c *Config) { c.Annotator.Timeout = -time.Second }, "annotator.timeout"},
		{"negative retries", func(c *Config) { c.Annotator.MaxRetries = -1 }, "annotator.max_retries"},
		{"empty substitution", func(c *Config) { c.Resolver.Substitutions = []Substitution{{From: "X"}} }, "resolver.substitutions[0]"},
		{"negative max records", func(c *Config) { c.Pipeline.MaxRecords = -5 }, "pipeline.max_records"},
		{"db port", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"cache without redis", func(c *Config) { c.Resolver.CacheEnabled = true }, "requires redis.enabled"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka.topic"},
		{"neo4j without uri", func(c *Config) { c.Neo4j.Enabled = true; c.Neo4j.URI = "" }, "neo4j.uri"},
		{"opensearch without address", func(c *Config) { c.OpenSearch.Enabled = true; c.OpenSearch.Addresses = nil }, "opensearch.addresses"},
		{"server mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"worker interval", func(c *Config) { c.Worker.Interval = time.Second }, "worker.interval"},
		{"worker pass", func(c *Config) { c.Worker.Passes = []string{"chebi"} }, "worker.passes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_MirrorWithMinIO(t *testing.T) {
	cfg := validConfig()
	cfg.MinIO.Enabled = true
	cfg.Sources.Mirror.Mode = MirrorWrite
	assert.NoError(t, cfg.Validate())
}

func TestValidate_FileSources(t *testing.T) {
	cfg := validConfig()
	cfg.Sources.RheaBaseURL = "file:///data/rhea/"
	cfg.Sources.ExpasyBaseURL = "file:///data/expasy/"
	assert.NoError(t, cfg.Validate())
}

func TestRequireAnnotator(t *testing.T) {
	cfg := validConfig()
	err := cfg.RequireAnnotator()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RXN_ANNOTATOR_API_KEY")

	cfg.Annotator.APIKey = "secret"
	assert.NoError(t, cfg.RequireAnnotator())
}
