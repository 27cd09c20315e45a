package store

import "testing"

func collect(it Iterator) []Record {
	var out []Record
	for it.Next() {
		out = append(out, it.Record())
	}
	_ = it.Close()
	return out
}

func TestMemStoreScanOrder(t *testing.T) {
	s := NewMemStore()
	for _, k := range []string{"a", "b", "c"} {
		_ = s.Set([]byte(k), []byte(k+"v"))
	}
	asc := collect(s.Scan(nil, nil, Ascending))
	if len(asc) != 3 || string(asc[0].Key) != "a" || string(asc[2].Key) != "c" {
		t.Fatalf("unexpected ascending scan: %+v", asc)
	}
	desc := collect(s.Scan(nil, nil, Descending))
	if string(desc[0].Key) != "c" || string(desc[2].Key) != "a" {
		t.Fatalf("unexpected descending scan: %+v", desc)
	}
}

func TestBatchedOverlayShadowsParent(t *testing.T) {
	parent := NewMemStore()
	_ = parent.Set([]byte("k"), []byte("parent"))
	b := NewBatched(parent)
	_ = b.Set([]byte("k"), []byte("child"))
	v, ok, _ := b.Get([]byte("k"))
	if !ok || string(v) != "child" {
		t.Fatalf("expected overlay value, got %q ok=%v", v, ok)
	}
	pv, _, _ := parent.Get([]byte("k"))
	if string(pv) != "parent" {
		t.Fatalf("parent must be untouched before flush, got %q", pv)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	pv2, _, _ := parent.Get([]byte("k"))
	if string(pv2) != "child" {
		t.Fatalf("expected flush to promote overlay, got %q", pv2)
	}
}

func TestBatchedDiscard(t *testing.T) {
	parent := NewMemStore()
	_ = parent.Set([]byte("k"), []byte("parent"))
	b := NewBatched(parent)
	_ = b.Set([]byte("k"), []byte("child"))
	_ = b.Delete([]byte("other"))
	b.Discard()
	v, _, _ := b.Get([]byte("k"))
	if string(v) != "parent" {
		t.Fatalf("expected discard to drop overlay, got %q", v)
	}
}

func TestSharedIteratorPagesAcrossBoundary(t *testing.T) {
	backing := NewMemStore()
	shared := NewShared(backing)
	for i := 0; i < pageSize*2+5; i++ {
		key := []byte{byte(i / 256), byte(i % 256)}
		_ = shared.Set(key, []byte{1})
	}
	got := collect(shared.Scan(nil, nil, Ascending))
	if len(got) != pageSize*2+5 {
		t.Fatalf("expected %d records, got %d", pageSize*2+5, len(got))
	}
	for i := 1; i < len(got); i++ {
		if string(got[i-1].Key) >= string(got[i].Key) {
			t.Fatalf("records out of order at %d", i)
		}
	}
}

func TestSharedIteratorDescendingPagesAcrossBoundary(t *testing.T) {
	backing := NewMemStore()
	shared := NewShared(backing)
	for i := 0; i < pageSize*2+5; i++ {
		key := []byte{byte(i / 256), byte(i % 256)}
		_ = shared.Set(key, []byte{1})
	}
	got := collect(shared.Scan(nil, nil, Descending))
	if len(got) != pageSize*2+5 {
		t.Fatalf("expected %d records, got %d", pageSize*2+5, len(got))
	}
	for i := 1; i < len(got); i++ {
		if string(got[i-1].Key) <= string(got[i].Key) {
			t.Fatalf("records out of descending order at %d", i)
		}
	}
}

func TestProviderScopesReadsAndWrites(t *testing.T) {
	backing := NewMemStore()
	shared := NewShared(backing)
	p1 := NewProvider(shared, []byte("A"), true)
	p2 := NewProvider(shared, []byte("B"), true)
	_ = p1.Set([]byte("x"), []byte("1"))
	_ = p2.Set([]byte("x"), []byte("2"))

	v1, _, _ := p1.Get([]byte("x"))
	v2, _, _ := p2.Get([]byte("x"))
	if string(v1) != "1" || string(v2) != "2" {
		t.Fatalf("provider namespaces leaked: v1=%q v2=%q", v1, v2)
	}

	records := collect(p1.Scan(nil, nil, Ascending))
	if len(records) != 1 || string(records[0].Key) != "x" {
		t.Fatalf("expected provider scan to see only its own namespace, got %+v", records)
	}
}

func TestProviderRejectsMutationWhenNotStateMutable(t *testing.T) {
	shared := NewShared(NewMemStore())
	ro := NewProvider(shared, []byte("A"), false)
	if err := ro.Set([]byte("x"), []byte("1")); err != ErrNotMutable {
		t.Fatalf("expected ErrNotMutable, got %v", err)
	}
}

func TestProviderExclusiveBoundAppendsTrailingZero(t *testing.T) {
	shared := NewShared(NewMemStore())
	p := NewProvider(shared, []byte("A"), true)
	_ = p.Set([]byte("k"), []byte("1"))
	_ = p.Set([]byte("k2"), []byte("2"))

	// Exclusive(k) must exclude "k" itself but include "k2".
	records := collect(p.Scan(Exclusive([]byte("k")), nil, Ascending))
	if len(records) != 1 || string(records[0].Key) != "k2" {
		t.Fatalf("expected only k2, got %+v", records)
	}
}
