// Package config loads the YAML configuration describing a swarm instance.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProtocolConfig is the shared shape of every per-protocol configuration
// block: a request timeout, defaulted to 20s per the handle layer's default.
type ProtocolConfig struct {
	TimeoutMS int `yaml:"timeout_ms"`
}

func (c *ProtocolConfig) applyDefaults() {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 20_000
	}
}

// Timeout returns the configured timeout as a time.Duration.
func (c ProtocolConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// AdvertiseConfig extends ProtocolConfig with the shorter query timeout
// used by QueryAdvertisedPeer.
type AdvertiseConfig struct {
	ProtocolConfig  `yaml:",inline"`
	QueryTimeoutMS  int `yaml:"query_timeout_ms"`
}

func (c *AdvertiseConfig) applyDefaults() {
	c.ProtocolConfig.applyDefaults()
	if c.QueryTimeoutMS <= 0 {
		c.QueryTimeoutMS = 10_000
	}
}

// QueryTimeout returns the configured advertise-query timeout.
func (c AdvertiseConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

// BlobConfig extends ProtocolConfig with the chunk size used when streaming
// file contents. Exposing this does not change wire compatibility: it only
// governs how the local sender slices bytes_total into Chunk packets.
type BlobConfig struct {
	ProtocolConfig  `yaml:",inline"`
	ChunkSizeBytes  int `yaml:"chunk_size_bytes"`
}

func (c *BlobConfig) applyDefaults() {
	c.ProtocolConfig.applyDefaults()
	if c.ChunkSizeBytes <= 0 {
		c.ChunkSizeBytes = 16 * 1024
	}
}

// SwarmConfig is the top-level configuration for a node: identity location,
// listen addresses, tuning of the swarm event loop, and per-protocol
// settings.
type SwarmConfig struct {
	IdentityPath          string   `yaml:"identity_path"`
	ListenAddresses       []string `yaml:"listen_addresses"`
	SwarmEventBufferSize  int      `yaml:"swarm_event_buffer_size"`
	SwarmEventTimeoutMS   int      `yaml:"swarm_event_timeout_ms"`
	CommandBufferSize     int      `yaml:"command_buffer_size"`

	Messaging ProtocolConfig  `yaml:"messaging"`
	Advertise AdvertiseConfig `yaml:"advertise"`
	Blob      BlobConfig      `yaml:"blob"`
}

// SwarmEventTimeout returns the periodic wakeup interval for the swarm task.
func (c SwarmConfig) SwarmEventTimeout() time.Duration {
	return time.Duration(c.SwarmEventTimeoutMS) * time.Millisecond
}

// applyDefaults fills in the defaults named in the data model: an event
// buffer of 16 (rounded to a multiple of 4), a 200ms timer, and an 16-deep
// command queue.
func (c *SwarmConfig) applyDefaults() {
	if c.SwarmEventBufferSize <= 0 {
		c.SwarmEventBufferSize = 16
	}
	c.SwarmEventBufferSize = roundDownToMultipleOf4(c.SwarmEventBufferSize)
	if c.SwarmEventTimeoutMS <= 0 {
		c.SwarmEventTimeoutMS = 200
	}
	if c.CommandBufferSize <= 0 {
		c.CommandBufferSize = 16
	}
	c.Messaging.applyDefaults()
	c.Advertise.applyDefaults()
	c.Blob.applyDefaults()
}

// roundDownToMultipleOf4 implements the high-watermark arithmetic
// requirement: the buffer size must be a multiple of 4 so that
// (buffer_size >> 2) << 2 == buffer_size. Zero rounds up to 4, never to 0.
func roundDownToMultipleOf4(n int) int {
	rounded := (n >> 2) << 2
	if rounded == 0 {
		return 4
	}
	return rounded
}

// Load reads and parses a YAML config file, applying defaults to any field
// left unset.
func Load(path string) (*SwarmConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var cfg SwarmConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a SwarmConfig with every field at its documented default.
func Default() *SwarmConfig {
	cfg := &SwarmConfig{}
	cfg.applyDefaults()
	return cfg
}
