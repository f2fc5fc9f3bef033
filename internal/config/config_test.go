package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangang/deployguide/pkg/logger"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output.Dir != "output" {
		t.Errorf("Output.Dir = %q, expected %q", cfg.Output.Dir, "output")
	}
	if cfg.Upstream.Model != "gpt-4o" {
		t.Errorf("Upstream.Model = %q, expected %q", cfg.Upstream.Model, "gpt-4o")
	}
	if cfg.Upstream.AuthMode != AuthModeBasic {
		t.Errorf("Upstream.AuthMode = %q, expected %q", cfg.Upstream.AuthMode, AuthModeBasic)
	}
}

func TestLoad_FileKeepsDefaultsForUnsetKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9090\"\nupstream:\n  model: gpt-4o-mini\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, expected %q", cfg.Server.Port, "9090")
	}
	if cfg.Upstream.Model != "gpt-4o-mini" {
		t.Errorf("Upstream.Model = %q, expected %q", cfg.Upstream.Model, "gpt-4o-mini")
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, expected default %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Prompt.Path != "prompt.txt" {
		t.Errorf("Prompt.Path = %q, expected default %q", cfg.Prompt.Path, "prompt.txt")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GPT_USERNAME", "alice")
	t.Setenv("GPT_PASSWORD", "s3cret")
	t.Setenv("OUTPUT_DIR", "/tmp/guides")
	t.Setenv("UPSTREAM_PROVIDER", "azure")
	t.Setenv("RETENTION_DAYS", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.Username != "alice" || cfg.Upstream.Password != "s3cret" {
		t.Errorf("credentials not taken from env: %q/%q", cfg.Upstream.Username, cfg.Upstream.Password)
	}
	if cfg.Output.Dir != "/tmp/guides" {
		t.Errorf("Output.Dir = %q, expected %q", cfg.Output.Dir, "/tmp/guides")
	}
	if cfg.Upstream.Provider != ProviderAzure {
		t.Errorf("Upstream.Provider = %q, expected %q", cfg.Upstream.Provider, ProviderAzure)
	}
	if cfg.Retention.Days != 7 {
		t.Errorf("Retention.Days = %d, expected 7", cfg.Retention.Days)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "empty output dir", mutate: func(c *Config) { c.Output.Dir = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Upstream.Provider = "cohere" }, wantErr: true},
		{name: "unknown auth mode", mutate: func(c *Config) { c.Upstream.AuthMode = "digest" }, wantErr: true},
		{name: "bearer mode", mutate: func(c *Config) { c.Upstream.AuthMode = AuthModeBearer }, wantErr: false},
		{name: "zero burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidRetentionDaysWarns(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter("info", &buf)
	t.Cleanup(func() { logger.Init("info") })
	t.Setenv("RETENTION_DAYS", "thirty")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retention.Days != 0 {
		t.Errorf("Retention.Days = %d, expected default 0", cfg.Retention.Days)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "Ignoring invalid RETENTION_DAYS") {
		t.Errorf("expected a warning for RETENTION_DAYS, got %q", out)
	}
	if !strings.Contains(out, "thirty") {
		t.Errorf("warning should include the rejected value, got %q", out)
	}
}
