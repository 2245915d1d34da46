// Package config loads and validates the node's operational settings
// (spec §6 "Configuration"). It plays the same role the teacher's
// config.Config plays for a single-chain validator node, generalized to the
// network/peering/backpressure knobs this node needs instead.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nanospec/nanocore/chainparams"
)

// BlockProcessorConfig bounds the block processor's per-source queues
// (spec §4.5).
type BlockProcessorConfig struct {
	MaxQueuedPerSource int `json:"max_queued_per_source"`
}

// VoteProcessorConfig bounds vote admission (spec §4.6, §6).
type VoteProcessorConfig struct {
	MaxQueue     int `json:"max_queue"`
	MaxTriggered int `json:"max_triggered"`
}

// ActiveElectionsConfig bounds the election engine (spec §4.7).
type ActiveElectionsConfig struct {
	Size int `json:"size"`
}

// ConfirmingSetConfig tunes the cementation walk (spec §4.8).
type ConfirmingSetConfig struct {
	BatchMaxTimeMillis int `json:"batch_max_time_ms"`
}

// BandwidthConfig tunes the outbound token bucket (spec §4.9).
type BandwidthConfig struct {
	Limit      int     `json:"limit"`
	BurstRatio float64 `json:"burst_ratio"`
}

// SeedPeer identifies a remote node to connect to on startup.
type SeedPeer struct {
	NodeID string `json:"node_id"`
	Addr   string `json:"addr"`
}

// Config holds every operational setting of spec §6's representative
// subset, plus the data directory and seed peers needed to actually start
// a process.
type Config struct {
	Network           string `json:"network"` // one of live, beta, dev, test
	DataDir           string `json:"data_dir"`
	PeeringPort       int    `json:"peering_port"`
	MaxPeersPerIP     int    `json:"max_peers_per_ip"`
	MaxPeersPerSubnet int    `json:"max_peers_per_subnet"`

	BlockProcessor  BlockProcessorConfig  `json:"block_processor"`
	VoteProcessor   VoteProcessorConfig   `json:"vote_processor"`
	ActiveElections ActiveElectionsConfig `json:"active_elections"`
	ConfirmingSet   ConfirmingSetConfig   `json:"confirming_set"`
	Bandwidth       BandwidthConfig       `json:"bandwidth"`

	SeedPeers []SeedPeer `json:"seed_peers,omitempty"`
}

// DefaultConfig returns a single-node development configuration targeting
// the dev network.
func DefaultConfig() *Config {
	return &Config{
		Network:           "dev",
		DataDir:           "./data",
		PeeringPort:       44000,
		MaxPeersPerIP:      4,
		MaxPeersPerSubnet:  32,
		BlockProcessor:     BlockProcessorConfig{MaxQueuedPerSource: 16384},
		VoteProcessor:      VoteProcessorConfig{MaxQueue: 4096, MaxTriggered: 16384},
		ActiveElections:    ActiveElectionsConfig{Size: 5000},
		ConfirmingSet:      ConfirmingSetConfig{BatchMaxTimeMillis: 250},
		Bandwidth:          BandwidthConfig{Limit: 10 * 1024 * 1024, BurstRatio: 1.5},
	}
}

// Load reads a JSON config file from path, overlays it onto DefaultConfig,
// and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// ResolveNetwork resolves the configured network name to a
// chainparams.Network.
func (c *Config) ResolveNetwork() (chainparams.Network, error) {
	switch c.Network {
	case "live":
		return chainparams.Live, nil
	case "beta":
		return chainparams.Beta, nil
	case "dev":
		return chainparams.Dev, nil
	case "test":
		return chainparams.Test, nil
	default:
		return 0, fmt.Errorf("config: unknown network %q", c.Network)
	}
}

// Validate checks that all required fields are present and well-formed
// (spec §7 "Invariant violation... better to stop than to persist
// contradictions" extends to malformed startup config).
func (c *Config) Validate() error {
	if _, err := c.ResolveNetwork(); err != nil {
		return err
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.PeeringPort <= 0 || c.PeeringPort > 65535 {
		return fmt.Errorf("peering_port must be 1-65535, got %d", c.PeeringPort)
	}
	if c.MaxPeersPerIP <= 0 {
		return fmt.Errorf("max_peers_per_ip must be positive")
	}
	if c.MaxPeersPerSubnet <= 0 {
		return fmt.Errorf("max_peers_per_subnet must be positive")
	}
	if c.BlockProcessor.MaxQueuedPerSource <= 0 {
		return fmt.Errorf("block_processor.max_queued_per_source must be positive")
	}
	if c.VoteProcessor.MaxQueue <= 0 || c.VoteProcessor.MaxTriggered <= 0 {
		return fmt.Errorf("vote_processor.max_queue and max_triggered must be positive")
	}
	if c.ActiveElections.Size <= 0 {
		return fmt.Errorf("active_elections.size must be positive")
	}
	if c.Bandwidth.Limit <= 0 || c.Bandwidth.BurstRatio <= 0 {
		return fmt.Errorf("bandwidth.limit and burst_ratio must be positive")
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
