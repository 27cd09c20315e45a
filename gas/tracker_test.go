package gas

import "testing"

func TestTrackerOutOfGas(t *testing.T) {
	tr := NewLimited(100)
	if err := tr.Consume(60); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := tr.Consume(41); err != ErrOutOfGas {
		t.Fatalf("expected ErrOutOfGas, got %v", err)
	}
	if tr.Consumed() != 60 {
		t.Fatalf("expected charge to be rejected wholesale, consumed=%d", tr.Consumed())
	}
}

func TestTrackerUnlimited(t *testing.T) {
	tr := NewTracker(nil)
	if err := tr.Consume(1 << 40); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if _, ok := tr.Remaining(); ok {
		t.Fatalf("expected unlimited tracker to report no remaining bound")
	}
}

func TestChildSharesCounter(t *testing.T) {
	parent := NewLimited(100)
	child := parent.Child()
	if err := child.Consume(90); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if parent.Consumed() != 90 {
		t.Fatalf("expected parent to observe child's charge, got %d", parent.Consumed())
	}
	if err := parent.Consume(20); err != ErrOutOfGas {
		t.Fatalf("expected parent charge to respect child's prior consumption")
	}
	// gas is not refunded even though the child's frame "failed" logically —
	// the tracker has no notion of revert, only consumption.
	if parent.Consumed() != 90 {
		t.Fatalf("expected no refund, consumed=%d", parent.Consumed())
	}
}

func TestCostTableDefault(t *testing.T) {
	ct := DefaultCostTable()
	if ct.Cost(CostDBRead) == 0 {
		t.Fatalf("expected nonzero db read cost")
	}
	if got := ct.Cost(HostImport(999)); got != DefaultCost {
		t.Fatalf("expected DefaultCost for unknown import, got %d", got)
	}
}
