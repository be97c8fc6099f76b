package cache

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
)

// TestLevelStoreCrossEquivalence drives a randomized sequence of
// operations through a real LevelDB-backed LevelStore and an in-memory
// Sequential side by side, asserting identical observable state after
// every step. This is the safety-critical invariant the finality
// provider's checkedGetValue/checkedLowerBound/checkedUpperBound rely
// on (bit-identical memory vs. persistent mirror); TestCrossStoreEquivalence
// in sequential_test.go only compares Sequential against MemStore, which
// is itself backed by a Sequential, so it cannot catch a LevelStore-specific
// bug.
func TestLevelStoreCrossEquivalence(t *testing.T) {
	dir := t.TempDir()
	db, err := leveldb.OpenFile(filepath.Join(dir, "cache"), nil)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	store := NewLevelStore[string](db, "test:")
	mem := NewSequential[string]()

	rng := rand.New(rand.NewSource(1))
	var nextAppend uint64

	assertEqual := func(step int) {
		t.Helper()

		memLower, memLowerOK := mem.LowerBound()
		storeLower, storeLowerOK, err := store.LowerBound()
		if err != nil {
			t.Fatalf("step %d: store LowerBound: %v", step, err)
		}
		if memLower != storeLower || memLowerOK != storeLowerOK {
			t.Fatalf("step %d: lower bound divergence: mem=(%d,%v) store=(%d,%v)", step, memLower, memLowerOK, storeLower, storeLowerOK)
		}

		memUpper, memUpperOK := mem.UpperBound()
		storeUpper, storeUpperOK, err := store.UpperBound()
		if err != nil {
			t.Fatalf("step %d: store UpperBound: %v", step, err)
		}
		if memUpper != storeUpper || memUpperOK != storeUpperOK {
			t.Fatalf("step %d: upper bound divergence: mem=(%d,%v) store=(%d,%v)", step, memUpper, memUpperOK, storeUpper, storeUpperOK)
		}

		if memUpperOK {
			for h := memLower; h <= memUpper; h++ {
				memVal, memOK := mem.GetValue(h)
				storeVal, storeOK, err := store.GetValue(h)
				if err != nil {
					t.Fatalf("step %d: store GetValue(%d): %v", step, h, err)
				}
				if memOK != storeOK || memVal != storeVal {
					t.Fatalf("step %d: value divergence at %d: mem=(%q,%v) store=(%q,%v)", step, h, memVal, memOK, storeVal, storeOK)
				}
			}
		}

		memSize := mem.Size()
		storeSize, err := store.Size()
		if err != nil {
			t.Fatalf("step %d: store Size: %v", step, err)
		}
		if memSize != storeSize {
			t.Fatalf("step %d: size divergence: mem=%d store=%d", step, memSize, storeSize)
		}
	}

	for step := 0; step < 200; step++ {
		switch rng.Intn(3) {
		case 0: // append
			v := fmt.Sprintf("v%d", nextAppend)
			memErr := mem.Append(nextAppend, v)
			storeErr := store.Append(nextAppend, v)
			if (memErr == nil) != (storeErr == nil) {
				t.Fatalf("step %d: append(%d) divergence: mem=%v store=%v", step, nextAppend, memErr, storeErr)
			}
			if memErr == nil {
				nextAppend++
			}
		case 1: // remove below a random offset from the current lower bound
			lower, ok := mem.LowerBound()
			if !ok {
				continue
			}
			upto := lower + uint64(rng.Intn(4))
			mem.RemoveKeyBelow(upto)
			if err := store.RemoveKeyBelow(upto); err != nil {
				t.Fatalf("step %d: store RemoveKeyBelow(%d): %v", step, upto, err)
			}
		case 2: // delete all
			mem.DeleteAll()
			if err := store.DeleteAll(); err != nil {
				t.Fatalf("step %d: store DeleteAll: %v", step, err)
			}
		}
		assertEqual(step)
	}
}
