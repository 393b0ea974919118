package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
identity:
  name: Basecamp
radio:
  kind: zmq
  event_endpoint: ipc:///tmp/custom_event
mesh:
  advert_interval_ms: 60000
  channels:
    - name: ops
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.Name != "Basecamp" {
		t.Fatalf("got name %q, want Basecamp", cfg.Identity.Name)
	}
	if cfg.Radio.Kind != "zmq" || cfg.Radio.EventEndpoint != "ipc:///tmp/custom_event" {
		t.Fatalf("radio section not overlaid: %+v", cfg.Radio)
	}
	if cfg.Mesh.AdvertIntervalMs != 60000 {
		t.Fatalf("got advert interval %d, want 60000", cfg.Mesh.AdvertIntervalMs)
	}
	if len(cfg.Mesh.Channels) != 1 || cfg.Mesh.Channels[0].Name != "ops" {
		t.Fatalf("got channels %+v", cfg.Mesh.Channels)
	}
	// Untouched sections keep their defaults.
	if cfg.Worker.DataDir != Default().Worker.DataDir {
		t.Fatalf("worker defaults not preserved: %+v", cfg.Worker)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
