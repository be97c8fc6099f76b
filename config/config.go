// Package config loads and validates the topdown daemon's
// configuration: where its persistent cache store lives, how to reach
// the parent chain's RPC endpoint, and the finality-subsystem tuning
// parameters from spec section 6.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/consensus-shipyard/mono-ipc/topdown"
)

// ValidatorEntry seeds the initial vote-tally power table.
type ValidatorEntry struct {
	PubKey string `json:"pub_key"` // hex-encoded ed25519 public key
	Power  uint64 `json:"power"`
}

// Config holds all topdown daemon configuration.
type Config struct {
	NodeID   string `json:"node_id"`
	DataDir  string `json:"data_dir"`
	ChainID  string `json:"chain_id"`

	ParentRPCEndpoint  string `json:"parent_rpc_endpoint"`
	ParentRPCAuthToken string `json:"parent_rpc_auth_token,omitempty"`

	Validators []ValidatorEntry `json:"validators"`

	ChainHeadDelay        uint64        `json:"chain_head_delay"`
	PollingInterval       time.Duration `json:"polling_interval"`
	ExponentialBackOff    time.Duration `json:"exponential_back_off"`
	ExponentialRetryLimit uint64        `json:"exponential_retry_limit"`
	MaxProposalRange      *uint64       `json:"max_proposal_range,omitempty"`
	MaxCacheBlocks        *uint64       `json:"max_cache_blocks,omitempty"`
	ProposalDelay         *uint64       `json:"proposal_delay,omitempty"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	maxProposalRange := uint64(100)
	maxCacheBlocks := uint64(1000)
	proposalDelay := uint64(2)
	return &Config{
		NodeID:                "node0",
		DataDir:               "./data",
		ChainID:               "topdown-dev",
		ParentRPCEndpoint:     "http://127.0.0.1:8645",
		ChainHeadDelay:        2,
		PollingInterval:       2 * time.Second,
		ExponentialBackOff:    time.Second,
		ExponentialRetryLimit: 5,
		MaxProposalRange:      &maxProposalRange,
		MaxCacheBlocks:        &maxCacheBlocks,
		ProposalDelay:         &proposalDelay,
	}
}

// Load reads a JSON config file from path and validates it.
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

// Validate checks required fields and delegates range checks to the
// topdown config projected by Topdown.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.ChainID == "" {
		return fmt.Errorf("chain_id must not be empty")
	}
	if c.ParentRPCEndpoint == "" {
		return fmt.Errorf("parent_rpc_endpoint must not be empty")
	}
	if len(c.Validators) == 0 {
		return fmt.Errorf("validators list must not be empty")
	}
	for i, v := range c.Validators {
		b, err := hex.DecodeString(v.PubKey)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("validators[%d]: pub_key must be 64-char hex (32 bytes ed25519), got %q", i, v.PubKey)
		}
	}
	return c.Topdown().Validate()
}

// Topdown projects the recognized topdown.Config keys out of Config.
func (c *Config) Topdown() *topdown.Config {
	return &topdown.Config{
		ChainHeadDelay:        c.ChainHeadDelay,
		PollingInterval:       c.PollingInterval,
		ExponentialBackOff:    c.ExponentialBackOff,
		ExponentialRetryLimit: c.ExponentialRetryLimit,
		MaxProposalRange:      c.MaxProposalRange,
		MaxCacheBlocks:        c.MaxCacheBlocks,
		ProposalDelay:         c.ProposalDelay,
	}
}

// PowerTable converts Validators into the vote tally's power-table
// representation.
func (c *Config) PowerTable() (map[topdown.ValidatorKey]uint64, error) {
	table := make(map[topdown.ValidatorKey]uint64, len(c.Validators))
	for _, v := range c.Validators {
		b, err := hex.DecodeString(v.PubKey)
		if err != nil || len(b) != 32 {
			return nil, fmt.Errorf("validator pub_key %q: must be 64-char hex", v.PubKey)
		}
		var key topdown.ValidatorKey
		copy(key[:], b)
		table[key] = v.Power
	}
	return table, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
