package chainmetadata

import "testing"

// H6 — metadata ring.
func TestMetadataRing(t *testing.T) {
	a := Constructor(3)
	a.PushBlock(BlockID("A"))
	a.PushBlock(BlockID("B"))
	a.PushBlock(BlockID("C"))
	a.PushBlock(BlockID("D"))

	got, err := a.BlockCID(0)
	if err != nil {
		t.Fatalf("BlockCID(0): %v", err)
	}
	if string(got) != "D" {
		t.Errorf("BlockCID(0): got %q want %q", got, "D")
	}

	got, err = a.BlockCID(2)
	if err != nil {
		t.Fatalf("BlockCID(2): %v", err)
	}
	if string(got) != "B" {
		t.Errorf("BlockCID(2): got %q want %q", got, "B")
	}

	if _, err := a.BlockCID(3); err == nil {
		t.Error("expected illegal argument error for BlockCID(3)")
	} else if _, ok := err.(*IllegalArgumentError); !ok {
		t.Errorf("expected *IllegalArgumentError, got %T", err)
	}
}

func TestLookbackLen(t *testing.T) {
	a := Constructor(5)
	if a.LookbackLen() != 5 {
		t.Errorf("got %d want 5", a.LookbackLen())
	}
}
