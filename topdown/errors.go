package topdown

import "fmt"

// CacheDivergenceError reports that the in-memory cache and its
// persistent mirror disagree on an observable read. This is a fatal
// invariant violation: the caller must abort (production) or fail the
// test (tests), never silently proceed.
type CacheDivergenceError struct {
	Op     string
	Memory any
	Store  any
}

func (e *CacheDivergenceError) Error() string {
	return fmt.Sprintf("cache divergence on %s: memory=%v store=%v", e.Op, e.Memory, e.Store)
}

// UnexpectedBlockError is returned by VoteTally.AddBlock when height does
// not extend the tracked chain by exactly one.
type UnexpectedBlockError struct {
	Expected uint64
	Got      uint64
}

func (e *UnexpectedBlockError) Error() string {
	return fmt.Sprintf("unexpected block: expected height %d, got %d", e.Expected, e.Got)
}

// ErrUnknownValidator is returned by VoteTally.AddVote for a key absent
// from the power table.
type ErrUnknownValidator struct {
	Key ValidatorKey
}

func (e *ErrUnknownValidator) Error() string {
	return fmt.Sprintf("unknown validator: %s", e.Key)
}

// EquivocationError is returned by VoteTally.AddVote when a validator
// signs two distinct hashes at the same height.
type EquivocationError struct {
	Key      ValidatorKey
	Height   BlockHeight
	Hash     BlockHash
	PrevHash BlockHash
}

func (e *EquivocationError) Error() string {
	return fmt.Sprintf("equivocation by %s at height %d: %s != %s", e.Key, e.Height, e.Hash, e.PrevHash)
}

// ErrNotEnabled is returned by every method of a Disabled Toggle.
var ErrNotEnabled = fmt.Errorf("topdown: not enabled")

// ErrNotReady reports that a value is not available yet (e.g. before
// the child chain has committed a genesis finality). executor.LedgerQuery
// implementations signal that case with a nil result and nil error.
var ErrNotReady = fmt.Errorf("topdown: not ready")
