package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "versiond.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("default backend = %q, want memory", cfg.Store.Backend)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
default_version: "2.0.0"
supported_versions: ["1.0.0", "2.0.0"]
strict_mode: true
store:
  backend: sqlite
  path: /tmp/versiond.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DefaultVersion != "2.0.0" || !cfg.StrictMode {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/versiond.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	// Untouched fields keep their defaults.
	if cfg.VersionHeader != "Accept-Version" {
		t.Errorf("VersionHeader = %q, want default", cfg.VersionHeader)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad default version", func(c *Config) { c.DefaultVersion = "v1" }},
		{"bad supported version", func(c *Config) { c.SupportedVersions = []string{"1.0"} }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"file backend without path", func(c *Config) { c.Store.Backend = "file" }},
		{"sqlite backend without path", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"redis backend without address", func(c *Config) { c.Store.Backend = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSupportedParsed(t *testing.T) {
	cfg := Default()
	cfg.SupportedVersions = []string{"1.0.0", "2.1.3"}

	got := cfg.SupportedParsed()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].String() != "2.1.3" {
		t.Errorf("got[1] = %s", got[1])
	}
}
