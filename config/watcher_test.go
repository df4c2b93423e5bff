package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "versiond.yaml")
	if err := os.WriteFile(path, []byte("default_version: \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	changes := make(chan Config, 1)
	w := NewWatcher(path, func(c Config) { changes <- c }, WithDebounce(20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Atomic-save style update: write a temp file and rename over.
	tmp := filepath.Join(dir, ".versiond.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("default_version: \"2.0.0\"\nsupported_versions: [\"2.0.0\"]\n"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.DefaultVersion != "2.0.0" {
			t.Errorf("DefaultVersion = %q, want 2.0.0", cfg.DefaultVersion)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "versiond.yaml")
	if err := os.WriteFile(path, []byte("default_version: \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	changes := make(chan Config, 1)
	w := NewWatcher(path, func(c Config) { changes <- c }, WithDebounce(20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// An update that fails validation must not reach the callback.
	if err := os.WriteFile(path, []byte("default_version: \"not-a-version\"\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changes:
		t.Fatalf("unexpected change event: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "versiond.yaml")
	if err := os.WriteFile(path, []byte("default_version: \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w := NewWatcher(path, func(Config) {})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
