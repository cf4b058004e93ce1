package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Ingest.MaxAgencies != 10 || cfg.Ingest.Concurrency != 5 {
		t.Fatalf("expected ingest defaults 10/5, got %d/%d", cfg.Ingest.MaxAgencies, cfg.Ingest.Concurrency)
	}
	if cfg.ECFR.BaseURL != "https://www.ecfr.gov/api" {
		t.Fatalf("expected default base URL, got %q", cfg.ECFR.BaseURL)
	}
	if cfg.DB.Table != "agency_snapshots" {
		t.Fatalf("expected default table, got %q", cfg.DB.Table)
	}
	if cfg.Archive.Provider != "noop" || cfg.Notify.Provider != "noop" {
		t.Fatalf("expected noop providers by default")
	}
	spacing, err := cfg.RequestSpacing()
	if err != nil {
		t.Fatalf("RequestSpacing() error = %v", err)
	}
	if spacing != 2*time.Second {
		t.Fatalf("expected default spacing 2s, got %v", spacing)
	}
	if got := cfg.HTTPTimeout(); got != 300*time.Second {
		t.Fatalf("expected timeout 300s, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
ingest:
  max_agencies: 25
  concurrency: 8
  as_of_date: "2026-01-15"
ecfr:
  base_url: https://example.test/api
  timeout_seconds: 60
  request_spacing: 500ms
  max_retries: 5
db:
  dsn: postgres://localhost/ecfr
  table: snapshots_v2
archive:
  provider: gcs
  gcs_bucket: ecfr-raw
  prefix: archive
notify:
  provider: pubsub
  project_id: demo-project
  topic: ingest-runs
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Ingest.MaxAgencies != 25 || cfg.Ingest.Concurrency != 8 {
		t.Fatalf("expected ingest overrides to apply: %+v", cfg.Ingest)
	}
	if cfg.Ingest.AsOfDate != "2026-01-15" {
		t.Fatalf("expected as_of_date override, got %q", cfg.Ingest.AsOfDate)
	}
	if cfg.ECFR.BaseURL != "https://example.test/api" || cfg.ECFR.MaxRetries != 5 {
		t.Fatalf("expected ecfr overrides to apply: %+v", cfg.ECFR)
	}
	spacing, err := cfg.RequestSpacing()
	if err != nil {
		t.Fatalf("RequestSpacing() error = %v", err)
	}
	if spacing != 500*time.Millisecond {
		t.Fatalf("expected spacing 500ms, got %v", spacing)
	}
	if cfg.DB.Table != "snapshots_v2" {
		t.Fatalf("expected table override, got %q", cfg.DB.Table)
	}
	if cfg.Archive.GCSBucket != "ecfr-raw" || cfg.Notify.Topic != "ingest-runs" {
		t.Fatalf("expected archive/notify overrides: %+v %+v", cfg.Archive, cfg.Notify)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging disabled")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Ingest: IngestConfig{MaxAgencies: 10, Concurrency: 5},
		ECFR:   ECFRConfig{TimeoutSeconds: 300, RequestSpacing: "2s"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Ingest.Concurrency = 0
				return c
			}(),
			want: "ingest.concurrency",
		},
		{
			name: "invalid max agencies",
			cfg: func() Config {
				c := base
				c.Ingest.MaxAgencies = -1
				return c
			}(),
			want: "ingest.max_agencies",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.ECFR.TimeoutSeconds = 0
				return c
			}(),
			want: "ecfr.timeout_seconds",
		},
		{
			name: "unparseable spacing",
			cfg: func() Config {
				c := base
				c.ECFR.RequestSpacing = "soon"
				return c
			}(),
			want: "ecfr.request_spacing",
		},
		{
			name: "negative spacing",
			cfg: func() Config {
				c := base
				c.ECFR.RequestSpacing = "-1s"
				return c
			}(),
			want: "ecfr.request_spacing",
		},
		{
			name: "gcs archive missing bucket",
			cfg: func() Config {
				c := base
				c.Archive.Provider = "gcs"
				return c
			}(),
			want: "archive.gcs_bucket",
		},
		{
			name: "pubsub missing project",
			cfg: func() Config {
				c := base
				c.Notify.Provider = "pubsub"
				c.Notify.Topic = "ingest-runs"
				return c
			}(),
			want: "notify.project_id",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
