package interpreter

import "github.com/consensus-shipyard/mono-ipc/topdown"

// MessageKind distinguishes the chain-message variants the interpreter
// proposes, validates, and delivers.
type MessageKind int

const (
	KindSigned MessageKind = iota
	KindBottomUpResolve
	KindBottomUpExec
	KindTopDownExec
)

// SignedMessage is an ordinary user transaction, opaque to the
// interpreter beyond its gas limit.
type SignedMessage struct {
	Raw      []byte
	GasLimit uint64
}

// RelayedCheckpoint is a relayer's announcement of a bottom-up
// checkpoint whose content must later be fetched and validated.
type RelayedCheckpoint struct {
	Key     CheckpointKey
	Relayer string
}

// ResolvedCheckpointExec executes a checkpoint already Resolved in the
// pool. Validators-only.
type ResolvedCheckpointExec struct {
	Key CheckpointKey
}

// TopDownProposal commits a parent-chain finality, together with the
// validator changes and cross-messages observed at that height.
// Validators-only.
type TopDownProposal struct {
	Finality         topdown.IPCParentFinality
	ValidatorChanges []topdown.StakingChangeRequest
	CrossMessages    []topdown.CrossMessage
}

// ChainMessage is the tagged union the interpreter proposes, validates
// and delivers. Exactly one of the typed fields is meaningful,
// selected by Kind.
type ChainMessage struct {
	Kind MessageKind

	Signed          *SignedMessage
	BottomUpResolve *RelayedCheckpoint
	BottomUpExec    *ResolvedCheckpointExec
	TopDownExec     *TopDownProposal
}

// IsValidatorOnly reports whether msg may only originate from a
// proposed block, never from a user-submitted mempool entry.
func (m ChainMessage) IsValidatorOnly() bool {
	return m.Kind == KindBottomUpExec || m.Kind == KindTopDownExec
}
