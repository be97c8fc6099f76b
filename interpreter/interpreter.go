// Package interpreter implements the chain-message proposal/processing
// state machine: it asks the finality provider and checkpoint pool what
// is ready, packs a block, validates peers' proposals, and drives
// delivery through an inner child executor.
package interpreter

import (
	"context"
	"fmt"
	"log"

	"github.com/consensus-shipyard/mono-ipc/events"
	"github.com/consensus-shipyard/mono-ipc/executor"
	"github.com/consensus-shipyard/mono-ipc/topdown"
)

// MempoolSource supplies pending signed user transactions to the
// prepare phase and lets the interpreter drop ones it selected.
type MempoolSource interface {
	PendingSigned() []SignedMessage
	Remove(raw []byte)
}

// ChainMessageInterpreter is the block-production state machine tying
// the finality provider, vote tally, and checkpoint pool into the
// consensus hooks a child chain's driver calls.
type ChainMessageInterpreter struct {
	provider *topdown.FinalityProvider
	tally    *topdown.VoteTally
	pool     *CheckpointPool
	selector GasLimitSelector
	inner    executor.ChildExecutor
	emitter  *events.Emitter

	blockGasLimit uint64
}

// New constructs an interpreter wired to the given components.
func New(provider *topdown.FinalityProvider, tally *topdown.VoteTally, pool *CheckpointPool, inner executor.ChildExecutor, emitter *events.Emitter, blockGasLimit uint64) *ChainMessageInterpreter {
	return &ChainMessageInterpreter{
		provider:      provider,
		tally:         tally,
		pool:          pool,
		selector:      CumulativeGasSelector{},
		inner:         inner,
		emitter:       emitter,
		blockGasLimit: blockGasLimit,
	}
}

// Prepare is called by the leader to build a candidate block. It
// selects mempool messages under the gas selector, then appends
// resolved bottom-up checkpoints and a single top-down proposal last
// (so they are the first to be dropped, and re-proposable next round,
// if the block overflows).
func (i *ChainMessageInterpreter) Prepare(mempool MempoolSource) []ChainMessage {
	candidates := mempool.PendingSigned()
	selected := i.selector.Select(candidates, i.blockGasLimit)

	msgs := make([]ChainMessage, 0, len(selected)+1)
	for _, s := range selected {
		s := s
		msgs = append(msgs, ChainMessage{Kind: KindSigned, Signed: &s})
	}

	for _, key := range i.pool.CollectResolved() {
		msgs = append(msgs, ChainMessage{
			Kind:         KindBottomUpExec,
			BottomUpExec: &ResolvedCheckpointExec{Key: key},
		})
	}

	if proposal, ok := i.provider.NextProposal(); ok {
		td := &TopDownProposal{Finality: proposal}
		if view, cached := i.provider.CachedView(proposal.Height); cached && view != nil {
			td.ValidatorChanges = view.ValidatorChanges
			td.CrossMessages = view.CrossMessages
		}
		msgs = append(msgs, ChainMessage{Kind: KindTopDownExec, TopDownExec: td})
	}

	return msgs
}

// Process validates a proposed block on every validator: bottom-up
// executions must be resolved in this node's pool, top-down proposals
// must pass quorum/provider validation, and the signed messages'
// cumulative gas must fit the block limit.
func (i *ChainMessageInterpreter) Process(msgs []ChainMessage) bool {
	var gasUsed uint64
	for _, m := range msgs {
		switch m.Kind {
		case KindSigned:
			if m.Signed != nil {
				gasUsed += m.Signed.GasLimit
			}
		case KindBottomUpExec:
			if m.BottomUpExec == nil || !i.pool.IsResolved(m.BottomUpExec.Key) {
				i.emitReject("bottom-up checkpoint not resolved")
				return false
			}
		case KindTopDownExec:
			if m.TopDownExec == nil {
				i.emitReject("missing top-down proposal")
				return false
			}
			if !i.provider.CheckProposal(m.TopDownExec.Finality) {
				i.emitReject("top-down proposal failed provider check")
				return false
			}
			quorum, ok := i.tally.FindQuorum()
			if !ok || !quorum.Equal(m.TopDownExec.Finality) {
				i.emitReject("top-down proposal lacks quorum")
				return false
			}
		}
	}
	if gasUsed > i.blockGasLimit {
		i.emitReject("block gas limit exceeded")
		return false
	}
	i.emitter.Emit(events.Event{Type: events.EventProposalAccepted})
	return true
}

func (i *ChainMessageInterpreter) emitReject(reason string) {
	i.emitter.Emit(events.Event{Type: events.EventProposalRejected, Data: map[string]any{"reason": reason}})
}

// Check enforces that validator-only message variants never arrive via
// a user-submitted path (the mempool), independent of Process, which
// validates them inside a proposed block.
func (i *ChainMessageInterpreter) Check(msg ChainMessage, isRecheck bool) error {
	if msg.IsValidatorOnly() {
		return fmt.Errorf("illegal message: %v is validator-only and cannot be submitted directly", msg.Kind)
	}
	return nil
}

// Deliver executes one message against the inner executor, handling
// the topdown-specific variants directly.
func (i *ChainMessageInterpreter) Deliver(ctx context.Context, msg ChainMessage) (executor.DeliverResult, error) {
	switch msg.Kind {
	case KindSigned:
		if msg.Signed == nil {
			return executor.DeliverResult{}, fmt.Errorf("signed message missing payload")
		}
		return i.inner.Deliver(ctx, msg.Signed.Raw)

	case KindBottomUpResolve:
		result, err := i.inner.Deliver(ctx, nil)
		if err != nil {
			return result, err
		}
		i.pool.Add(msg.BottomUpResolve.Key)
		i.emitter.Emit(events.Event{Type: events.EventNewBottomUpCheckpoint})
		return result, nil

	case KindBottomUpExec:
		// Reserved: unimplemented upstream, treated as a deterministic
		// no-op receipt.
		return executor.DeliverResult{Receipt: []byte("noop")}, nil

	case KindTopDownExec:
		return i.deliverTopDown(ctx, msg.TopDownExec)

	default:
		return executor.DeliverResult{}, fmt.Errorf("unknown message kind %v", msg.Kind)
	}
}

func (i *ChainMessageInterpreter) deliverTopDown(ctx context.Context, p *TopDownProposal) (executor.DeliverResult, error) {
	if p == nil {
		return executor.DeliverResult{}, fmt.Errorf("top-down exec missing proposal")
	}

	prev := i.provider.LastCommitted()
	if err := i.provider.SetNewFinality(p.Finality, prev); err != nil {
		return executor.DeliverResult{}, fmt.Errorf("commit parent finality: %w", err)
	}
	i.tally.SetFinalized(p.Finality.Height, p.Finality.BlockHash)
	i.tally.ApplyValidatorChanges(p.ValidatorChanges)

	for _, msg := range p.CrossMessages {
		if _, err := i.inner.Deliver(ctx, msg.Payload); err != nil {
			log.Printf("[interpreter] cross-message nonce %d delivery failed: %v", msg.Nonce, err)
			return executor.DeliverResult{}, fmt.Errorf("deliver cross-message nonce %d: %w", msg.Nonce, err)
		}
	}

	return executor.DeliverResult{Receipt: []byte("topdown-committed")}, nil
}

// End finalizes the block: if the inner executor surfaced a power
// table change, it is applied to the vote tally's power table (a power
// of zero removes the validator; validators not listed keep their power).
func (i *ChainMessageInterpreter) End(ctx context.Context) error {
	updates, err := i.inner.End(ctx)
	if err != nil {
		return fmt.Errorf("executor end: %w", err)
	}
	if updates == nil {
		return nil
	}
	changes := make([]topdown.StakingChangeRequest, 0, len(updates.Changes))
	for _, v := range updates.Changes {
		changes = append(changes, topdown.StakingChangeRequest{Validator: v.Key, NewPower: v.Power})
	}
	i.tally.ApplyValidatorChanges(changes)
	return nil
}
