package topdown

import (
	"fmt"
	"time"
)

// Config holds the recognized tuning parameters for the finality
// provider and the parent syncer.
type Config struct {
	ChainHeadDelay        uint64        `json:"chain_head_delay"`
	PollingInterval       time.Duration `json:"polling_interval"`
	ExponentialBackOff    time.Duration `json:"exponential_back_off"`
	ExponentialRetryLimit uint64        `json:"exponential_retry_limit"`
	MaxProposalRange      *uint64       `json:"max_proposal_range,omitempty"`
	MaxCacheBlocks        *uint64       `json:"max_cache_blocks,omitempty"`
	ProposalDelay         *uint64       `json:"proposal_delay,omitempty"`
}

// DefaultConfig returns conservative single-subnet defaults.
func DefaultConfig() *Config {
	maxProposalRange := uint64(100)
	maxCacheBlocks := uint64(1000)
	proposalDelay := uint64(2)
	return &Config{
		ChainHeadDelay:        2,
		PollingInterval:       2 * time.Second,
		ExponentialBackOff:    time.Second,
		ExponentialRetryLimit: 5,
		MaxProposalRange:      &maxProposalRange,
		MaxCacheBlocks:        &maxCacheBlocks,
		ProposalDelay:         &proposalDelay,
	}
}

// Validate checks internal consistency. proposal_delay must stay
// strictly below max_proposal_range, or the proposal algorithm could
// underflow past the committed height without ever returning a result
// (Open Question iii).
func (c *Config) Validate() error {
	if c.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval must be positive")
	}
	if c.ExponentialBackOff <= 0 {
		return fmt.Errorf("exponential_back_off must be positive")
	}
	if c.MaxProposalRange != nil && c.ProposalDelay != nil {
		if *c.ProposalDelay >= *c.MaxProposalRange {
			return fmt.Errorf("proposal_delay (%d) must be less than max_proposal_range (%d)", *c.ProposalDelay, *c.MaxProposalRange)
		}
	}
	return nil
}

// EffectiveMaxProposalRange returns MaxProposalRange, or the maximum
// possible range if unset.
func (c *Config) EffectiveMaxProposalRange() uint64 {
	if c.MaxProposalRange == nil {
		return ^uint64(0)
	}
	return *c.MaxProposalRange
}

// EffectiveProposalDelay returns ProposalDelay, or zero if unset.
func (c *Config) EffectiveProposalDelay() uint64 {
	if c.ProposalDelay == nil {
		return 0
	}
	return *c.ProposalDelay
}

// EffectiveMaxCacheBlocks returns MaxCacheBlocks, or the maximum
// possible bound if unset.
func (c *Config) EffectiveMaxCacheBlocks() uint64 {
	if c.MaxCacheBlocks == nil {
		return ^uint64(0)
	}
	return *c.MaxCacheBlocks
}
