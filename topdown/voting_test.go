package topdown

import "testing"

func key(b byte) ValidatorKey {
	var k ValidatorKey
	k[0] = b
	return k
}

// H5 — equivocation.
func TestAddVoteEquivocation(t *testing.T) {
	v1 := key(1)
	tally := NewVoteTally(map[ValidatorKey]uint64{v1: 1}, IPCParentFinality{})
	if err := tally.AddBlock(1, hashOf(0xa)); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	ok, err := tally.AddVote(v1, 1, hashOf(0xa))
	if err != nil || !ok {
		t.Fatalf("first vote: ok=%v err=%v", ok, err)
	}

	_, err = tally.AddVote(v1, 1, hashOf(0xb))
	var equiv *EquivocationError
	if err == nil {
		t.Fatal("expected equivocation error")
	}
	if e, isEquiv := err.(*EquivocationError); !isEquiv {
		t.Fatalf("expected *EquivocationError, got %T", err)
	} else {
		equiv = e
	}
	if equiv.Key != v1 {
		t.Errorf("equivocation validator: got %v want %v", equiv.Key, v1)
	}
	if !equiv.PrevHash.Equal(hashOf(0xa)) {
		t.Errorf("equivocation PrevHash: got %v want the original prior hash %v", equiv.PrevHash, hashOf(0xa))
	}
}

func TestAddVoteDuplicateIgnored(t *testing.T) {
	v1 := key(1)
	tally := NewVoteTally(map[ValidatorKey]uint64{v1: 1}, IPCParentFinality{})
	tally.AddBlock(1, hashOf(0xa))

	if ok, err := tally.AddVote(v1, 1, hashOf(0xa)); err != nil || !ok {
		t.Fatalf("first vote: ok=%v err=%v", ok, err)
	}
	ok, err := tally.AddVote(v1, 1, hashOf(0xa))
	if err != nil {
		t.Fatalf("duplicate vote returned error: %v", err)
	}
	if ok {
		t.Error("duplicate vote should report false, not true")
	}
}

func TestAddVoteUnknownValidator(t *testing.T) {
	tally := NewVoteTally(map[ValidatorKey]uint64{key(1): 1}, IPCParentFinality{})
	tally.AddBlock(1, hashOf(0xa))
	_, err := tally.AddVote(key(2), 1, hashOf(0xa))
	if _, ok := err.(*ErrUnknownValidator); !ok {
		t.Fatalf("expected ErrUnknownValidator, got %v", err)
	}
}

func TestFindQuorumSafety(t *testing.T) {
	v1, v2, v3 := key(1), key(2), key(3)
	// Weights 1,1,1: total 3. Quorum threshold is weight*3 > total*2, i.e. weight > 2 -> weight==3.
	tally := NewVoteTally(map[ValidatorKey]uint64{v1: 1, v2: 1, v3: 1}, IPCParentFinality{})
	tally.AddBlock(1, hashOf(0xa))

	tally.AddVote(v1, 1, hashOf(0xa))
	tally.AddVote(v2, 1, hashOf(0xa))
	if _, ok := tally.FindQuorum(); ok {
		t.Fatal("2 of 3 equal-weight votes must not reach a strict 2/3 quorum")
	}

	tally.AddVote(v3, 1, hashOf(0xa))
	got, ok := tally.FindQuorum()
	if !ok {
		t.Fatal("3 of 3 votes must reach quorum")
	}
	want := IPCParentFinality{Height: 1, BlockHash: hashOf(0xa)}
	if !got.Equal(want) {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestFindQuorumPrefersHighestHeight(t *testing.T) {
	v1, v2 := key(1), key(2)
	tally := NewVoteTally(map[ValidatorKey]uint64{v1: 2, v2: 1}, IPCParentFinality{})
	tally.AddBlock(1, hashOf(1))
	tally.AddBlock(2, nil) // null round, skipped by FindQuorum
	tally.AddBlock(3, hashOf(3))

	tally.AddVote(v1, 1, hashOf(1))
	tally.AddVote(v2, 1, hashOf(1))
	tally.AddVote(v1, 3, hashOf(3))
	tally.AddVote(v2, 3, hashOf(3))

	got, ok := tally.FindQuorum()
	if !ok {
		t.Fatal("expected a quorum")
	}
	if got.Height != 3 {
		t.Errorf("expected quorum at the highest qualifying height 3, got %d", got.Height)
	}
}

func TestSetFinalizedPrunes(t *testing.T) {
	v1 := key(1)
	tally := NewVoteTally(map[ValidatorKey]uint64{v1: 1}, IPCParentFinality{})
	tally.AddBlock(1, hashOf(1))
	tally.AddBlock(2, hashOf(2))
	tally.AddVote(v1, 1, hashOf(1))

	tally.SetFinalized(2, hashOf(2))

	if _, err := tally.AddVote(v1, 1, hashOf(1)); err != nil {
		t.Fatalf("vote below pruned height should be ignored, not errored: %v", err)
	} else if ok, _ := tally.AddVote(v1, 1, hashOf(1)); ok {
		t.Error("votes below the pruned height must be ignored")
	}
}

func TestSetPowerTableReweights(t *testing.T) {
	v1, v2 := key(1), key(2)
	tally := NewVoteTally(map[ValidatorKey]uint64{v1: 1, v2: 1}, IPCParentFinality{})
	tally.AddBlock(1, hashOf(1))
	tally.AddVote(v1, 1, hashOf(1))
	tally.AddVote(v2, 1, hashOf(1))
	if _, ok := tally.FindQuorum(); !ok {
		t.Fatal("expected quorum before reweighting")
	}

	// Bump total power so the same votes no longer reach 2/3.
	tally.SetPowerTable(map[ValidatorKey]uint64{v1: 1, v2: 1, key(3): 10})
	if _, ok := tally.FindQuorum(); ok {
		t.Error("expected quorum to be lost after reweighting")
	}
}

func TestApplyValidatorChangesAddsAndRemovesPower(t *testing.T) {
	v1, v2 := key(1), key(2)
	tally := NewVoteTally(map[ValidatorKey]uint64{v1: 1}, IPCParentFinality{})
	tally.AddBlock(1, hashOf(1))

	// v2 is unknown until a validator change grants it power.
	if _, err := tally.AddVote(v2, 1, hashOf(1)); err == nil {
		t.Fatal("expected unknown-validator error before the change is applied")
	}

	tally.ApplyValidatorChanges([]StakingChangeRequest{
		{ConfigurationNumber: 1, Validator: v2, NewPower: 1},
	})

	tally.AddVote(v1, 1, hashOf(1))
	if ok, err := tally.AddVote(v2, 1, hashOf(1)); err != nil || !ok {
		t.Fatalf("v2 vote after being granted power: ok=%v err=%v", ok, err)
	}
	if _, ok := tally.FindQuorum(); !ok {
		t.Fatal("expected quorum once v2's power is counted")
	}

	// Revoke v1's power entirely; v1 is then unknown to the tally again.
	tally.ApplyValidatorChanges([]StakingChangeRequest{
		{ConfigurationNumber: 2, Validator: v1, NewPower: 0},
	})
	if _, err := tally.AddVote(v1, 1, hashOf(1)); err == nil {
		t.Error("expected v1 to be unknown again after its power was revoked to zero")
	}
}
