package topdown

import "sync"

// VoteTally tracks quorum formation across child validators for
// observed parent heights and hashes. Guarded by a single mutex, the
// same coarse-lock rendering used by FinalityProvider.
type VoteTally struct {
	mu sync.Mutex

	powerTable map[ValidatorKey]uint64
	totalPower uint64

	chain *chainLog
	votes map[BlockHeight]map[string]voterSet
}

// voterSet tracks which validators voted for one hash at one height,
// keeping the original hash bytes alongside its string map key so an
// EquivocationError can report the real prior hash rather than the
// bytes of its hex-encoded string form.
type voterSet struct {
	hash   BlockHash
	voters map[ValidatorKey]struct{}
}

// chainLog is the locally-observed, monotone, gap-free finalized parent
// chain: height -> hash, or height -> nil for a null round.
type chainLog struct {
	heights []BlockHeight // ascending, contiguous
	hashes  map[BlockHeight]BlockHash
}

func newChainLog() *chainLog {
	return &chainLog{hashes: make(map[BlockHeight]BlockHash)}
}

func (c *chainLog) maxHeight() (BlockHeight, bool) {
	if len(c.heights) == 0 {
		return 0, false
	}
	return c.heights[len(c.heights)-1], true
}

func (c *chainLog) minHeight() (BlockHeight, bool) {
	if len(c.heights) == 0 {
		return 0, false
	}
	return c.heights[0], true
}

// NewVoteTally creates a tally seeded with the given power table and the
// last finalized parent block.
func NewVoteTally(power map[ValidatorKey]uint64, lastFinalized IPCParentFinality) *VoteTally {
	table := make(map[ValidatorKey]uint64, len(power))
	var total uint64
	for k, w := range power {
		table[k] = w
		total += w
	}
	t := &VoteTally{
		powerTable: table,
		totalPower: total,
		chain:      newChainLog(),
		votes:      make(map[BlockHeight]map[string]voterSet),
	}
	t.chain.heights = append(t.chain.heights, lastFinalized.Height)
	t.chain.hashes[lastFinalized.Height] = lastFinalized.BlockHash
	return t
}

// AddBlock extends the tracked chain with an observation at height
// (nil hash for a null round). height must be exactly one past the
// current maximum.
func (t *VoteTally) AddBlock(height BlockHeight, hash BlockHash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	max, ok := t.chain.maxHeight()
	if ok && height != max+1 {
		return &UnexpectedBlockError{Expected: max + 1, Got: height}
	}
	if !ok && height != 0 {
		// No prior block recorded: accept the first observation as-is,
		// matching NewVoteTally's seeded entry being the only prior state.
	}
	t.chain.heights = append(t.chain.heights, height)
	t.chain.hashes[height] = hash
	return nil
}

// AddVote records that validator observed hash at height. Returns
// (true, nil) if the vote was newly recorded, (false, nil) if it was
// already pruned or a duplicate, and an error for an unknown validator
// or an equivocation.
func (t *VoteTally) AddVote(validator ValidatorKey, height BlockHeight, hash BlockHash) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if min, ok := t.chain.minHeight(); ok && height < min {
		return false, nil
	}
	if _, known := t.powerTable[validator]; !known {
		return false, &ErrUnknownValidator{Key: validator}
	}

	byHash, ok := t.votes[height]
	if !ok {
		byHash = make(map[string]voterSet)
		t.votes[height] = byHash
	}

	hashKey := hash.String()
	for existingHash, set := range byHash {
		if existingHash == hashKey {
			continue
		}
		if _, voted := set.voters[validator]; voted {
			return false, &EquivocationError{
				Key:      validator,
				Height:   height,
				Hash:     hash,
				PrevHash: set.hash,
			}
		}
	}

	set, ok := byHash[hashKey]
	if !ok {
		set = voterSet{hash: hash, voters: make(map[ValidatorKey]struct{})}
		byHash[hashKey] = set
	}
	if _, already := set.voters[validator]; already {
		return false, nil
	}
	set.voters[validator] = struct{}{}
	return true, nil
}

// FindQuorum walks the tracked chain from highest to lowest height,
// returning the highest height whose aggregated voting weight strictly
// exceeds two thirds of total power. Null heights are skipped.
func (t *VoteTally) FindQuorum() (IPCParentFinality, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.chain.heights) - 1; i >= 0; i-- {
		h := t.chain.heights[i]
		hash := t.chain.hashes[h]
		if hash == nil {
			continue
		}
		byHash, ok := t.votes[h]
		if !ok {
			continue
		}
		set, ok := byHash[hash.String()]
		if !ok {
			continue
		}
		var weight uint64
		for validator := range set.voters {
			weight += t.powerTable[validator]
		}
		if weight*3 > t.totalPower*2 {
			return IPCParentFinality{Height: h, BlockHash: hash}, true
		}
	}
	return IPCParentFinality{}, false
}

// SetPowerTable replaces the power table. Existing votes remain
// recorded but are re-weighted on the next FindQuorum.
func (t *VoteTally) SetPowerTable(power map[ValidatorKey]uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	table := make(map[ValidatorKey]uint64, len(power))
	var total uint64
	for k, w := range power {
		table[k] = w
		total += w
	}
	t.powerTable = table
	t.totalPower = total
}

// ApplyValidatorChanges stores validator power changes observed at a
// finalized parent height into the power table (the gateway's view of
// voting power), in order. A NewPower of zero removes the validator.
func (t *VoteTally) ApplyValidatorChanges(changes []StakingChangeRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range changes {
		old, had := t.powerTable[c.Validator]
		if c.NewPower == 0 {
			if had {
				t.totalPower -= old
				delete(t.powerTable, c.Validator)
			}
			continue
		}
		t.totalPower = t.totalPower - old + c.NewPower
		t.powerTable[c.Validator] = c.NewPower
	}
}

// SetFinalized prunes the tracked chain and votes below height.
func (t *VoteTally) SetFinalized(height BlockHeight, hash BlockHash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keepFrom := 0
	for i, h := range t.chain.heights {
		if h >= height {
			keepFrom = i
			break
		}
		keepFrom = i + 1
	}
	prunedHeights := t.chain.heights[:keepFrom]
	t.chain.heights = append([]BlockHeight{}, t.chain.heights[keepFrom:]...)
	for _, h := range prunedHeights {
		delete(t.chain.hashes, h)
		delete(t.votes, h)
	}
	if len(t.chain.heights) == 0 || t.chain.heights[0] != height {
		t.chain.heights = append([]BlockHeight{height}, t.chain.heights...)
	}
	t.chain.hashes[height] = hash
}
