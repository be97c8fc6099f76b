// Package executor defines the capability contracts the chain-message
// interpreter consumes: the parent RPC query surface, the inner child
// executor, and the ledger queries needed to seed the finality
// subsystem at startup. These are the "explicit executor interfaces"
// called for by the design notes, replacing a nested generic
// composition with a flat set of narrow capabilities.
package executor

import (
	"context"

	"github.com/consensus-shipyard/mono-ipc/topdown"
)

// ParentQueryProxy is the parent RPC client capability consumed by the
// syncer and, indirectly, by proposal validation.
type ParentQueryProxy interface {
	GetGenesisEpoch(ctx context.Context) (topdown.BlockHeight, error)
	GetBlockHash(ctx context.Context, height topdown.BlockHeight) (topdown.BlockHash, error)
	GetValidatorChanges(ctx context.Context, height topdown.BlockHeight) ([]topdown.StakingChangeRequest, error)
	GetTopDownMsgs(ctx context.Context, height topdown.BlockHeight) ([]topdown.CrossMessage, error)
	GetChainHeadHeight(ctx context.Context) (topdown.BlockHeight, error)
}

// PowerUpdates is the optional power-table delta an inner executor may
// surface after delivering a message (e.g. a staking message).
type PowerUpdates struct {
	Changes []topdown.Validator
}

// ChildExecutor is the inner message-execution capability: ordinary
// signed user transactions are passed through to it untouched.
type ChildExecutor interface {
	Begin(ctx context.Context) error
	Deliver(ctx context.Context, msg []byte) (DeliverResult, error)
	End(ctx context.Context) (*PowerUpdates, error)
}

// DeliverResult is the outcome of delivering one message.
type DeliverResult struct {
	Receipt []byte
	GasUsed uint64
	Err     error
}

// LedgerQuery exposes the child ledger's own view of finality and
// voting power, consulted at startup. A nil return (with nil error)
// means "not ready yet".
type LedgerQuery interface {
	GetLatestCommittedFinality() (*topdown.IPCParentFinality, error)
	GetPowerTable() ([]topdown.Validator, error)
}

// CaughtUpChecker reports whether the child consensus has caught up
// with its own chain, gating the parent syncer so it never serves
// proposals while the node is still replaying history.
type CaughtUpChecker interface {
	IsCaughtUp(ctx context.Context) (bool, error)
}
