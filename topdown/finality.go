package topdown

import (
	"bytes"
	"fmt"
	"log"
	"sync"

	"github.com/consensus-shipyard/mono-ipc/events"
	"github.com/consensus-shipyard/mono-ipc/topdown/cache"
)

// FinalityProvider tracks the recent window of parent-chain views
// (possibly null) and the last-committed finality, and computes
// proposals under the configured delay policy. Every public method is a
// single critical section guarded by mu, the coarse-lock rendering of
// the spec's software-transactional discipline (see the design notes in
// the repository's DESIGN.md).
type FinalityProvider struct {
	mu sync.Mutex

	cfg *Config

	mem   *cache.Sequential[*ParentView]
	store cache.Store[*ParentView]

	lastCommitted *IPCParentFinality
	emitter       *events.Emitter
}

// NewFinalityProvider constructs a provider seeded with the genesis (or
// last-committed) finality. The in-memory cache always starts empty, so
// store must start empty too; NewFinalityProvider does not itself
// reconcile a non-empty store — callers should Reset on detected
// inconsistency at startup.
func NewFinalityProvider(cfg *Config, store cache.Store[*ParentView], emitter *events.Emitter, genesis IPCParentFinality) *FinalityProvider {
	return &FinalityProvider{
		cfg:           cfg,
		mem:           cache.NewSequential[*ParentView](),
		store:         store,
		lastCommitted: &genesis,
		emitter:       emitter,
	}
}

// LastCommitted returns the most recently committed finality.
func (p *FinalityProvider) LastCommitted() IPCParentFinality {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.lastCommitted
}

// CachedView returns the parent view cached at height h, distinguishing
// "null round" (nil, true) from "not cached" (nil, false).
func (p *FinalityProvider) CachedView(h BlockHeight) (*ParentView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkedGetValue(h)
}

// CacheUpperBound returns the highest cached parent height, if any. Used
// by the syncer to determine where to resume fetching.
func (p *FinalityProvider) CacheUpperBound() (*BlockHeight, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	upper, ok := p.checkedUpperBound()
	if !ok {
		return nil, false
	}
	return &upper, true
}

// NewParentView appends a parent-chain observation at height. payload
// nil represents a null round. If payload is Filled, its validator
// change list must already be strictly sequential by configuration
// number and its cross-message list strictly sequential by nonce;
// NewParentView validates this before mutating either cache.
func (p *FinalityProvider) NewParentView(height BlockHeight, payload *ParentView) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if payload != nil {
		if err := validateSequential(payload); err != nil {
			return err
		}
	}

	// Append to the persistent mirror first: on failure mem is never
	// touched, so the two caches cannot diverge.
	if err := p.store.Append(height, payload); err != nil {
		return fmt.Errorf("cache store append: %w", err)
	}
	if err := p.mem.Append(height, payload); err != nil {
		return err
	}

	p.emitter.Emit(events.Event{
		Type:        events.EventNewParentView,
		BlockHeight: height,
	})
	return nil
}

func validateSequential(payload *ParentView) error {
	for i := 1; i < len(payload.ValidatorChanges); i++ {
		if payload.ValidatorChanges[i].ConfigurationNumber <= payload.ValidatorChanges[i-1].ConfigurationNumber {
			return fmt.Errorf("validator changes not strictly sequential at index %d", i)
		}
	}
	for i := 1; i < len(payload.CrossMessages); i++ {
		if payload.CrossMessages[i].Nonce <= payload.CrossMessages[i-1].Nonce {
			return fmt.Errorf("cross messages not strictly sequential at index %d", i)
		}
	}
	return nil
}

// NextProposal computes a candidate finality to propose, or false if
// there is not yet enough information.
func (p *FinalityProvider) NextProposal() (IPCParentFinality, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	upper, ok := p.checkedUpperBound()
	if !ok {
		return IPCParentFinality{}, false
	}
	committed := *p.lastCommitted

	candidate := committed.Height + p.cfg.EffectiveMaxProposalRange()
	if upper < candidate {
		candidate = upper
	}

	h1, ok := p.firstNonNullBlock(candidate)
	if !ok {
		return IPCParentFinality{}, false
	}

	delay := p.cfg.EffectiveProposalDelay()
	if h1 < delay {
		return IPCParentFinality{}, false
	}
	h2, ok := p.firstNonNullBlock(h1 - delay)
	if !ok {
		return IPCParentFinality{}, false
	}

	if h2 == committed.Height {
		return IPCParentFinality{}, false
	}

	view, present := p.checkedGetValue(h2)
	if !present || view == nil {
		return IPCParentFinality{}, false
	}
	return IPCParentFinality{Height: h2, BlockHash: view.BlockHash}, true
}

// firstNonNullBlock scans from h down to the cache's lower bound,
// returning the first filled height at or below h.
func (p *FinalityProvider) firstNonNullBlock(h BlockHeight) (BlockHeight, bool) {
	lower, ok := p.checkedLowerBound()
	if !ok || h < lower {
		return 0, false
	}
	for height := h; ; height-- {
		if view, present := p.checkedGetValue(height); present && view != nil {
			return height, true
		}
		if height == lower {
			return 0, false
		}
	}
}

// CheckProposal reports whether p is a valid proposal under the current
// state: strictly above the committed height, within the cached window,
// and matching the cached hash at that height.
func (p *FinalityProvider) CheckProposal(proposal IPCParentFinality) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if proposal.Height <= p.lastCommitted.Height {
		return false
	}
	upper, ok := p.checkedUpperBound()
	if !ok || proposal.Height > upper {
		return false
	}
	view, present := p.checkedGetValue(proposal.Height)
	if !present || view == nil {
		return false
	}
	return view.BlockHash.Equal(proposal.BlockHash)
}

// SetNewFinality atomically commits new as the last-committed finality,
// asserting previous matches the currently committed value, and evicts
// all cached entries below new.Height (new.Height itself is retained, as
// execution may still reference it).
func (p *FinalityProvider) SetNewFinality(new IPCParentFinality, previous IPCParentFinality) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastCommitted.Equal(previous) {
		return fmt.Errorf("set new finality: previous mismatch: have %+v, expected %+v", *p.lastCommitted, previous)
	}

	p.mem.RemoveKeyBelow(new.Height)
	if err := p.store.RemoveKeyBelow(new.Height); err != nil {
		return fmt.Errorf("cache store eviction: %w", err)
	}

	p.lastCommitted = &new
	p.emitter.Emit(events.Event{
		Type:        events.EventParentFinalityCommitted,
		BlockHeight: new.Height,
		Data:        map[string]any{"hash": new.BlockHash.String()},
	})
	return nil
}

// Reset clears both caches entirely and adopts finality as committed.
// Used on catastrophic cache divergence.
func (p *FinalityProvider) Reset(finality IPCParentFinality) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mem.DeleteAll()
	if err := p.store.DeleteAll(); err != nil {
		return fmt.Errorf("cache store reset: %w", err)
	}
	p.lastCommitted = &finality
	return nil
}

// checkedGetValue reads from both caches and fatally reports any
// divergence — the cross-store equivalence invariant (spec property 2).
func (p *FinalityProvider) checkedGetValue(h BlockHeight) (*ParentView, bool) {
	memVal, memOK := p.mem.GetValue(h)
	storeVal, storeOK, err := p.store.GetValue(h)
	if err != nil {
		log.Fatalf("[topdown] cache store read failed at height %d: %v", h, err)
	}
	if memOK != storeOK || !parentViewEqual(memVal, storeVal) {
		p.reportDivergence("GetValue", memVal, storeVal)
	}
	return memVal, memOK
}

func (p *FinalityProvider) checkedLowerBound() (BlockHeight, bool) {
	memVal, memOK := p.mem.LowerBound()
	storeVal, storeOK, err := p.store.LowerBound()
	if err != nil {
		log.Fatalf("[topdown] cache store read failed: %v", err)
	}
	if memOK != storeOK || memVal != storeVal {
		p.reportDivergence("LowerBound", memVal, storeVal)
	}
	return memVal, memOK
}

func (p *FinalityProvider) checkedUpperBound() (BlockHeight, bool) {
	memVal, memOK := p.mem.UpperBound()
	storeVal, storeOK, err := p.store.UpperBound()
	if err != nil {
		log.Fatalf("[topdown] cache store read failed: %v", err)
	}
	if memOK != storeOK || memVal != storeVal {
		p.reportDivergence("UpperBound", memVal, storeVal)
	}
	return memVal, memOK
}

// reportDivergence handles a detected cross-store mismatch. It is fatal
// (log.Fatalf) unless divergenceHook is set, in which case the hook
// receives the error and the read continues with the in-memory value.
// No package test sets the hook.
func (p *FinalityProvider) reportDivergence(op string, mem, store any) {
	err := &CacheDivergenceError{Op: op, Memory: mem, Store: store}
	if divergenceHook != nil {
		divergenceHook(err)
		return
	}
	log.Fatalf("[topdown] %v", err)
}

// divergenceHook lets tests observe a CacheDivergenceError without
// killing the test binary via log.Fatalf. nil in production.
var divergenceHook func(*CacheDivergenceError)

func parentViewEqual(a, b *ParentView) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !a.BlockHash.Equal(b.BlockHash) {
		return false
	}
	if len(a.ValidatorChanges) != len(b.ValidatorChanges) || len(a.CrossMessages) != len(b.CrossMessages) {
		return false
	}
	for i := range a.ValidatorChanges {
		if a.ValidatorChanges[i] != b.ValidatorChanges[i] {
			return false
		}
	}
	for i := range a.CrossMessages {
		x, y := a.CrossMessages[i], b.CrossMessages[i]
		if x.Nonce != y.Nonce || x.From != y.From || x.To != y.To || !bytes.Equal(x.Payload, y.Payload) {
			return false
		}
	}
	return true
}
