// Package config loads the node's YAML configuration file, mirroring the
// nested-struct + yaml.v3 pattern the reference controller firmware uses.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity configures name override and key-value store location.
type Identity struct {
	Name    string `yaml:"name"`
	KVPath  string `yaml:"kv_path"`
}

// Radio selects and configures the transport facade.
type Radio struct {
	Kind            string `yaml:"kind"` // "zmq" or "loopback"
	EventEndpoint   string `yaml:"event_endpoint"`
	CommandEndpoint string `yaml:"command_endpoint"`
	FrequencyHz     uint32 `yaml:"frequency_hz"` // metadata only; no modem driver here
}

// ChannelConfig is one channel to join at boot, beyond the always-present
// "#Public". KeyHex is optional: when absent, the channel key is derived
// from Name (channel.DeriveKey); when present, it overrides the derived
// key with an out-of-band pre-shared one.
type ChannelConfig struct {
	Name   string `yaml:"name"`
	KeyHex string `yaml:"key_hex,omitempty"`
}

// Mesh configures the advertise timer, path-check policy, and node table.
type Mesh struct {
	AdvertIntervalMs  int64            `yaml:"advert_interval_ms"`
	PathCheckEnabled  bool             `yaml:"path_check_enabled"`
	NodeTableCapacity int              `yaml:"node_table_capacity"`
	Channels          []ChannelConfig  `yaml:"channels"`
}

// Worker configures the async worker's storage roots. The queue depth is
// not configurable; it is fixed at worker.QueueDepth.
type Worker struct {
	DataDir string `yaml:"data_dir"`
	SDDir   string `yaml:"sd_dir"`
}

// Remote configures the optional host control dev listener.
type Remote struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Logging is informational only: the logger is the stdlib log package,
// not a leveled one, so this field documents intent rather than wiring a
// different implementation in.
type Logging struct {
	Level string `yaml:"level"`
}

// Config is the full node.yaml shape.
type Config struct {
	Identity Identity `yaml:"identity"`
	Radio    Radio    `yaml:"radio"`
	Mesh     Mesh     `yaml:"mesh"`
	Worker   Worker   `yaml:"worker"`
	Remote   Remote   `yaml:"remote"`
	Logging  Logging  `yaml:"logging"`

	TickInterval time.Duration `yaml:"-"` // derived, not loaded from YAML
}

// Default returns sane defaults for every section, overridden by whatever
// the YAML file specifies.
func Default() Config {
	return Config{
		Identity: Identity{KVPath: "/var/lib/meshcore/node.db"},
		Radio:    Radio{Kind: "loopback"},
		Mesh: Mesh{
			AdvertIntervalMs:  0,
			PathCheckEnabled:  true,
			NodeTableCapacity: 128,
		},
		Worker: Worker{DataDir: "/var/lib/meshcore/data", SDDir: "/mnt/sd"},
		Remote: Remote{Enabled: false, ListenAddr: "127.0.0.1:7777"},
		Logging: Logging{Level: "info"},

		TickInterval: 10 * time.Millisecond, // ~100 Hz, spec §4.6
	}
}

// Load reads and parses path, overlaying it on Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
