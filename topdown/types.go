// Package topdown implements the parent-chain finality subsystem: a
// null-aware finality provider and a validator vote tally, together
// tracking which parent-chain heights the child subnet treats as final.
package topdown

import "fmt"

// BlockHeight is a parent (or child) chain height.
type BlockHeight = uint64

// BlockHash is an opaque content hash, compared by value.
type BlockHash []byte

func (h BlockHash) String() string {
	return fmt.Sprintf("%x", []byte(h))
}

// Equal reports whether h and other hold the same bytes.
func (h BlockHash) Equal(other BlockHash) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// StakingChangeRequest is a validator power change observed on the
// parent chain, ordered by its own configuration number.
type StakingChangeRequest struct {
	ConfigurationNumber uint64
	Validator           ValidatorKey
	NewPower            uint64
}

// CrossMessage is a top-down message observed on the parent chain,
// ordered by its own nonce.
type CrossMessage struct {
	Nonce   uint64
	From    string
	To      string
	Payload []byte
}

// ParentView is the per-height payload tracked by the finality provider.
// A nil *ParentView stored at a height represents a null round.
type ParentView struct {
	BlockHash        BlockHash
	ValidatorChanges []StakingChangeRequest
	CrossMessages    []CrossMessage
}

// IPCParentFinality is the committed statement "parent height Height
// with hash BlockHash is final, as of now".
type IPCParentFinality struct {
	Height    BlockHeight
	BlockHash BlockHash
}

// Equal reports whether two finality statements refer to the same
// height and hash.
func (f IPCParentFinality) Equal(other IPCParentFinality) bool {
	return f.Height == other.Height && f.BlockHash.Equal(other.BlockHash)
}

// ValidatorKey identifies a child-chain validator. Backed by a fixed-size
// array so it can key a Go map directly.
type ValidatorKey [32]byte

func (k ValidatorKey) String() string {
	return fmt.Sprintf("%x", k[:])
}

// Validator pairs an identity with its current voting power.
type Validator struct {
	Key   ValidatorKey
	Power uint64
}
