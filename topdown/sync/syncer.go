// Package sync implements the parent syncer: a single-task polling loop
// that fetches parent blocks forward from the last-known height and
// feeds them into the finality provider and the vote tally.
package sync

import (
	"context"
	"log"
	"time"

	"github.com/consensus-shipyard/mono-ipc/executor"
	"github.com/consensus-shipyard/mono-ipc/topdown"
)

// Syncer polls a ParentQueryProxy and writes observations into a
// FinalityProvider and a VoteTally.
type Syncer struct {
	cfg      *topdown.Config
	proxy    executor.ParentQueryProxy
	provider *topdown.FinalityProvider
	tally    *topdown.VoteTally
	caughtUp executor.CaughtUpChecker

	retries uint64
}

// New constructs a Syncer. cfg supplies chain_head_delay,
// polling_interval, exponential_back_off, exponential_retry_limit and
// max_cache_blocks.
func New(cfg *topdown.Config, proxy executor.ParentQueryProxy, provider *topdown.FinalityProvider, tally *topdown.VoteTally, caughtUp executor.CaughtUpChecker) *Syncer {
	return &Syncer{cfg: cfg, proxy: proxy, provider: provider, tally: tally, caughtUp: caughtUp}
}

// Run starts the polling loop. It blocks until ctx is cancelled, or
// until failing ticks exceed ExponentialRetryLimit, in which case it
// returns the last tick's error. A
// missed tick (the previous tick still running when the next fires) is
// impossible here since each tick runs synchronously to completion
// before the next can fire; a tick that finds nothing new to do
// (not caught up, or nothing past the parent's delay window) simply
// returns, matching the spec's "skip" policy.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				if exceeded := s.backoff(ctx); exceeded {
					return err
				}
			} else {
				s.retries = 0
			}
		}
	}
}

// backoff sleeps for an exponentially increasing interval and reports
// whether the retry ceiling has been exceeded.
func (s *Syncer) backoff(ctx context.Context) bool {
	s.retries++
	if s.retries > s.cfg.ExponentialRetryLimit {
		return true
	}
	wait := s.cfg.ExponentialBackOff * time.Duration(1<<(s.retries-1))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
	return false
}

func (s *Syncer) tick(ctx context.Context) error {
	caughtUp, err := s.caughtUp.IsCaughtUp(ctx)
	if err != nil {
		return err
	}
	if !caughtUp {
		return nil
	}

	next, err := s.nextHeight(ctx)
	if err != nil {
		return err
	}

	head, err := s.proxy.GetChainHeadHeight(ctx)
	if err != nil {
		return err
	}
	if head < s.cfg.ChainHeadDelay {
		return nil
	}
	safeHead := head - s.cfg.ChainHeadDelay

	maxCache := s.cfg.EffectiveMaxCacheBlocks()
	last := s.provider.LastCommitted()
	limit := safeHead
	if maxCache != ^uint64(0) && last.Height+maxCache < limit {
		limit = last.Height + maxCache
	}

	for h := next; h <= limit; h++ {
		if err := s.fetchAndApply(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) nextHeight(ctx context.Context) (topdown.BlockHeight, error) {
	upper, _ := s.provider.CacheUpperBound()
	if upper != nil {
		return *upper + 1, nil
	}
	return s.provider.LastCommitted().Height + 1, nil
}

func (s *Syncer) fetchAndApply(ctx context.Context, height topdown.BlockHeight) error {
	hash, err := s.proxy.GetBlockHash(ctx, height)
	if err != nil {
		return err
	}
	if hash == nil {
		if err := s.provider.NewParentView(height, nil); err != nil {
			return err
		}
		if err := s.tally.AddBlock(height, nil); err != nil {
			log.Printf("[sync] tally add null block %d: %v", height, err)
		}
		return nil
	}

	changes, err := s.proxy.GetValidatorChanges(ctx, height)
	if err != nil {
		return err
	}
	msgs, err := s.proxy.GetTopDownMsgs(ctx, height)
	if err != nil {
		return err
	}
	view := &topdown.ParentView{BlockHash: hash, ValidatorChanges: changes, CrossMessages: msgs}
	if err := s.provider.NewParentView(height, view); err != nil {
		return err
	}
	if err := s.tally.AddBlock(height, hash); err != nil {
		log.Printf("[sync] tally add block %d: %v", height, err)
	}
	return nil
}
