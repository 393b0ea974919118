package node

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meshcore/meshcore-go/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Identity.KVPath = filepath.Join(dir, "node.db")
	cfg.Identity.Name = "TestNode"
	cfg.Worker.DataDir = filepath.Join(dir, "data")
	cfg.Worker.SDDir = filepath.Join(dir, "sd")
	cfg.TickInterval = time.Millisecond
	if err := os.MkdirAll(cfg.Worker.DataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	return cfg
}

func TestNewGeneratesAndPersistsIdentity(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	firstID := n.engine.ShortID()
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	n2, err := New(cfg)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer n2.Close()

	if n2.engine.ShortID() != firstID {
		t.Fatalf("identity not persisted across restarts: got %x want %x", n2.engine.ShortID(), firstID)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop within timeout after context cancellation")
	}
}

func TestJoinChannelWithExplicitKeyHex(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mesh.Channels = []config.ChannelConfig{
		{Name: "ops", KeyHex: "000102030405060708090a0b0c0d0e0f"},
	}

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	if n.api.GetShortID() != n.engine.ShortID() {
		t.Fatal("script API short id should match engine short id")
	}

	found := false
	for _, ch := range n.engine.Channels() {
		if ch.Name != "ops" {
			continue
		}
		found = true
		for i, b := range ch.Key {
			if b != byte(i) {
				t.Fatalf("got key %x, want the configured key_hex bytes", ch.Key)
			}
		}
		if !ch.Explicit {
			t.Fatal("expected channel joined via key_hex to report Explicit=true")
		}
	}
	if !found {
		t.Fatal("expected the configured channel to be joined")
	}
}

func TestJoinChannelWithInvalidKeyHexFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mesh.Channels = []config.ChannelConfig{
		{Name: "ops", KeyHex: "not-hex"},
	}

	if _, err := New(cfg); err == nil {
		t.Fatal("expected New to fail on invalid key_hex")
	}
}

func TestDefaultNodeNameDerivedFromPublicKeyOnFirstBoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Identity.Name = ""

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	if !strings.HasPrefix(n.id.Name(), "Node-") {
		t.Fatalf("got name %q, want a \"Node-\"-prefixed default", n.id.Name())
	}
}

func TestNodeNameSetViaScriptAPIPersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.api.SetNodeName("Renamed")
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	n2, err := New(cfg)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer n2.Close()

	if n2.id.Name() != "Renamed" {
		t.Fatalf("got name %q, want persisted name %q", n2.id.Name(), "Renamed")
	}
}

func TestExplicitChannelPersistsWithoutConfigEntry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mesh.Channels = []config.ChannelConfig{
		{Name: "ops", KeyHex: "000102030405060708090a0b0c0d0e0f"},
	}

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen with no channels in config; the previously joined "ops"
	// channel should still come back from the channels namespace.
	cfg.Mesh.Channels = nil
	n2, err := New(cfg)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer n2.Close()

	found := false
	for _, ch := range n2.engine.Channels() {
		if ch.Name == "ops" {
			found = true
			if !ch.Explicit {
				t.Fatal("expected restored channel to keep its explicit-key flag")
			}
		}
	}
	if !found {
		t.Fatal("expected channel joined in a prior run to persist across restart")
	}
}
