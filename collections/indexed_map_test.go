package collections

import (
	"testing"
)

type account struct {
	Owner string
	Nick  string
}

func TestIndexedMapUniqueIndex(t *testing.T) {
	p := newProvider()
	uniq := NewUniqueIndex[string, uint64, account]("acct__nick", StringKey{}, Uint64Key{}, func(_ uint64, a account) string {
		return a.Nick
	})
	m := NewIndexedMap[uint64, account]("acct", Uint64Key{}, JSONValueCodec[account]{}, uniq)

	if err := m.Save(p, 1, account{Owner: "alice", Nick: "al"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.Save(p, 2, account{Owner: "bob", Nick: "al"}); err == nil {
		t.Fatalf("expected duplicate unique index to fail")
	}

	pk, ok, err := uniq.Load(p, "al")
	if err != nil || !ok || pk != 1 {
		t.Fatalf("Load = %d, %v, %v", pk, ok, err)
	}
}

func TestIndexedMapUniqueIndexReassignOnUpdate(t *testing.T) {
	p := newProvider()
	uniq := NewUniqueIndex[string, uint64, account]("acct__nick", StringKey{}, Uint64Key{}, func(_ uint64, a account) string {
		return a.Nick
	})
	m := NewIndexedMap[uint64, account]("acct", Uint64Key{}, JSONValueCodec[account]{}, uniq)

	_ = m.Save(p, 1, account{Owner: "alice", Nick: "al"})
	if err := m.Save(p, 1, account{Owner: "alice", Nick: "alice2"}); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	if _, ok, _ := uniq.Load(p, "al"); ok {
		t.Fatalf("expected old index entry removed")
	}
	if pk, ok, _ := uniq.Load(p, "alice2"); !ok || pk != 1 {
		t.Fatalf("expected new index entry present, pk=%d ok=%v", pk, ok)
	}
}

func TestIndexedMapMultiIndex(t *testing.T) {
	p := newProvider()
	multi := NewMultiIndex[string, uint64, account]("acct__owner", StringKey{}, Uint64Key{}, func(_ uint64, a account) string {
		return a.Owner
	})
	m := NewIndexedMap[uint64, account]("acct", Uint64Key{}, JSONValueCodec[account]{}, multi)

	_ = m.Save(p, 1, account{Owner: "alice", Nick: "a1"})
	_ = m.Save(p, 2, account{Owner: "alice", Nick: "a2"})
	_ = m.Save(p, 3, account{Owner: "bob", Nick: "b1"})

	pks, err := multi.PrimaryKeys(p, "alice")
	if err != nil {
		t.Fatalf("PrimaryKeys: %v", err)
	}
	if len(pks) != 2 {
		t.Fatalf("expected 2 primary keys for alice, got %v", pks)
	}

	if err := m.Remove(p, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pks, _ = multi.PrimaryKeys(p, "alice")
	if len(pks) != 1 || pks[0] != 2 {
		t.Fatalf("expected only pk 2 remaining for alice, got %v", pks)
	}
}
