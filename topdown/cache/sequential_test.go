package cache

import "testing"

func TestSequentialAppendContiguity(t *testing.T) {
	c := NewSequential[string]()
	if err := c.Append(10, "a"); err != nil {
		t.Fatalf("append on empty cache: %v", err)
	}
	if err := c.Append(11, "b"); err != nil {
		t.Fatalf("append sequential: %v", err)
	}
	if err := c.Append(13, "c"); err == nil {
		t.Fatal("expected non-sequential insert error")
	}
	lower, ok := c.LowerBound()
	if !ok || lower != 10 {
		t.Errorf("lower bound: got (%d,%v) want (10,true)", lower, ok)
	}
	upper, ok := c.UpperBound()
	if !ok || upper != 11 {
		t.Errorf("upper bound: got (%d,%v) want (11,true)", upper, ok)
	}
	if c.Size() != 2 {
		t.Errorf("size: got %d want 2", c.Size())
	}
}

func TestSequentialRemoveKeyBelow(t *testing.T) {
	c := NewSequential[int]()
	for h := uint64(1); h <= 5; h++ {
		if err := c.Append(h, int(h)); err != nil {
			t.Fatalf("append %d: %v", h, err)
		}
	}
	c.RemoveKeyBelow(3)
	lower, _ := c.LowerBound()
	if lower != 3 {
		t.Errorf("lower bound after eviction: got %d want 3", lower)
	}
	if _, ok := c.GetValue(2); ok {
		t.Error("key 2 should have been evicted")
	}
	if v, ok := c.GetValue(3); !ok || v != 3 {
		t.Error("key 3 should remain")
	}
	if c.Size() != 3 {
		t.Errorf("size: got %d want 3", c.Size())
	}
}

func TestSequentialRemoveKeyBelowPastUpperEmptiesCache(t *testing.T) {
	c := NewSequential[int]()
	c.Append(1, 1)
	c.Append(2, 2)
	c.RemoveKeyBelow(100)
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got size %d", c.Size())
	}
	if err := c.Append(5, 5); err != nil {
		t.Fatalf("append into emptied cache should re-seed: %v", err)
	}
}

func TestSequentialDeleteAll(t *testing.T) {
	c := NewSequential[int]()
	c.Append(1, 1)
	c.Append(2, 2)
	c.DeleteAll()
	if c.Size() != 0 {
		t.Errorf("expected size 0 after DeleteAll, got %d", c.Size())
	}
	if err := c.Append(1, 1); err != nil {
		t.Fatalf("append after DeleteAll should succeed as a fresh cache: %v", err)
	}
}

// TestCrossStoreEquivalence asserts that Sequential and MemStore (the
// in-memory Store used for tests) behave identically on the same
// operation sequence, the cross-store equivalence invariant the finality
// provider depends on.
func TestCrossStoreEquivalence(t *testing.T) {
	mem := NewSequential[string]()
	store := NewMemStore[string]()

	ops := []struct {
		k uint64
		v string
	}{{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}}
	for _, op := range ops {
		err1 := mem.Append(op.k, op.v)
		err2 := store.Append(op.k, op.v)
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("append(%d) divergence: mem=%v store=%v", op.k, err1, err2)
		}
	}

	mem.RemoveKeyBelow(3)
	if err := store.RemoveKeyBelow(3); err != nil {
		t.Fatalf("store RemoveKeyBelow: %v", err)
	}

	memLower, memOK := mem.LowerBound()
	storeLower, storeOK, err := store.LowerBound()
	if err != nil {
		t.Fatalf("store LowerBound: %v", err)
	}
	if memLower != storeLower || memOK != storeOK {
		t.Fatalf("lower bound divergence: mem=(%d,%v) store=(%d,%v)", memLower, memOK, storeLower, storeOK)
	}

	for h := uint64(1); h <= 4; h++ {
		memVal, memOK := mem.GetValue(h)
		storeVal, storeOK, err := store.GetValue(h)
		if err != nil {
			t.Fatalf("store GetValue(%d): %v", h, err)
		}
		if memOK != storeOK || memVal != storeVal {
			t.Fatalf("value divergence at %d: mem=(%q,%v) store=(%q,%v)", h, memVal, memOK, storeVal, storeOK)
		}
	}
}
