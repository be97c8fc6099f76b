// Package testutil provides in-memory fakes of the topdown subsystem's
// external capabilities, for use in tests across the module. Never
// import this in production code.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/consensus-shipyard/mono-ipc/executor"
	"github.com/consensus-shipyard/mono-ipc/topdown"
)

// FakeParentQueryProxy serves a fixed, in-memory parent chain view for
// tests of the syncer and interpreter, grounded on a plain map rather
// than any real RPC transport.
type FakeParentQueryProxy struct {
	mu            sync.Mutex
	genesis       topdown.BlockHeight
	head          topdown.BlockHeight
	hashes        map[topdown.BlockHeight]topdown.BlockHash // absent key == null round
	changes       map[topdown.BlockHeight][]topdown.StakingChangeRequest
	crossMessages map[topdown.BlockHeight][]topdown.CrossMessage
}

// NewFakeParentQueryProxy creates a proxy seeded with a genesis epoch.
func NewFakeParentQueryProxy(genesis topdown.BlockHeight) *FakeParentQueryProxy {
	return &FakeParentQueryProxy{
		genesis:       genesis,
		head:          genesis,
		hashes:        make(map[topdown.BlockHeight]topdown.BlockHash),
		changes:       make(map[topdown.BlockHeight][]topdown.StakingChangeRequest),
		crossMessages: make(map[topdown.BlockHeight][]topdown.CrossMessage),
	}
}

// SetBlock records a filled block at height, advancing head if needed.
func (f *FakeParentQueryProxy) SetBlock(height topdown.BlockHeight, hash topdown.BlockHash, changes []topdown.StakingChangeRequest, msgs []topdown.CrossMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[height] = hash
	f.changes[height] = changes
	f.crossMessages[height] = msgs
	if height > f.head {
		f.head = height
	}
}

// SetNullRound marks height as a null round (no entry in f.hashes), advancing head.
func (f *FakeParentQueryProxy) SetNullRound(height topdown.BlockHeight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, height)
	if height > f.head {
		f.head = height
	}
}

func (f *FakeParentQueryProxy) GetGenesisEpoch(ctx context.Context) (topdown.BlockHeight, error) {
	return f.genesis, nil
}

func (f *FakeParentQueryProxy) GetBlockHash(ctx context.Context, height topdown.BlockHeight) (topdown.BlockHash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.hashes[height]
	if !ok {
		return nil, nil // null round
	}
	return hash, nil
}

func (f *FakeParentQueryProxy) GetValidatorChanges(ctx context.Context, height topdown.BlockHeight) ([]topdown.StakingChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changes[height], nil
}

func (f *FakeParentQueryProxy) GetTopDownMsgs(ctx context.Context, height topdown.BlockHeight) ([]topdown.CrossMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.crossMessages[height], nil
}

func (f *FakeParentQueryProxy) GetChainHeadHeight(ctx context.Context) (topdown.BlockHeight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

// AlwaysCaughtUp is a executor.CaughtUpChecker that always reports true.
type AlwaysCaughtUp struct{}

func (AlwaysCaughtUp) IsCaughtUp(ctx context.Context) (bool, error) { return true, nil }

// FakeChildExecutor is an in-memory executor.ChildExecutor for tests: it
// records delivered payloads and never fails.
type FakeChildExecutor struct {
	mu        sync.Mutex
	Delivered [][]byte
	Power     *executor.PowerUpdates
}

func (f *FakeChildExecutor) Begin(ctx context.Context) error { return nil }

func (f *FakeChildExecutor) Deliver(ctx context.Context, msg []byte) (executor.DeliverResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Delivered = append(f.Delivered, msg)
	return executor.DeliverResult{Receipt: []byte(fmt.Sprintf("ok:%d", len(f.Delivered)))}, nil
}

func (f *FakeChildExecutor) End(ctx context.Context) (*executor.PowerUpdates, error) {
	return f.Power, nil
}
