package collections

import (
	"fmt"

	"chainkernel/store"
)

// Index is one secondary index over an IndexedMap: given a primary key and
// its value, Save records the index entry and Remove deletes it. Grounded
// on original_source/crates/storage/src/indexed.rs's Index trait — a
// fixed, per-type set of indexers walked uniformly on every write.
type Index[K any, T any] interface {
	Save(s store.Provider, pk K, value T) error
	Remove(s store.Provider, pk K, value T) error
}

// UniqueIndex maps an index key to exactly one primary key; a second save
// under an already-used index key fails.
type UniqueIndex[IK any, K any, T any] struct {
	ns      []byte
	ikCodec KeyCodec[IK]
	pkCodec KeyCodec[K]
	indexOf func(pk K, value T) IK
}

// NewUniqueIndex builds a unique index under namespace ns, deriving the
// index key from the primary key and value via indexOf.
func NewUniqueIndex[IK any, K any, T any](ns string, ikCodec KeyCodec[IK], pkCodec KeyCodec[K], indexOf func(K, T) IK) *UniqueIndex[IK, K, T] {
	return &UniqueIndex[IK, K, T]{ns: lenPrefix([]byte(ns)), ikCodec: ikCodec, pkCodec: pkCodec, indexOf: indexOf}
}

func (u *UniqueIndex[IK, K, T]) rawKey(ik IK) []byte {
	return append(append([]byte{}, u.ns...), u.ikCodec.Encode(ik)...)
}

func (u *UniqueIndex[IK, K, T]) Save(s store.Provider, pk K, value T) error {
	ik := u.indexOf(pk, value)
	key := u.rawKey(ik)
	if _, ok, _ := s.Get(key); ok {
		return fmt.Errorf("collections: duplicate unique index entry")
	}
	return s.Set(key, u.pkCodec.Encode(pk))
}

func (u *UniqueIndex[IK, K, T]) Remove(s store.Provider, pk K, value T) error {
	ik := u.indexOf(pk, value)
	return s.Delete(u.rawKey(ik))
}

// Load resolves the primary key stored under ik, if any.
func (u *UniqueIndex[IK, K, T]) Load(s store.Provider, ik IK) (K, bool, error) {
	raw, ok, err := s.Get(u.rawKey(ik))
	if err != nil || !ok {
		var zero K
		return zero, false, err
	}
	pk, err := u.pkCodec.Decode(raw)
	return pk, err == nil, err
}

// MultiIndex maps an index key to a set of primary keys: (ik, pk) → ().
type MultiIndex[IK any, K any, T any] struct {
	ns      []byte
	ikCodec KeyCodec[IK]
	pkCodec KeyCodec[K]
	indexOf func(pk K, value T) IK
}

// NewMultiIndex builds a multi index under namespace ns.
func NewMultiIndex[IK any, K any, T any](ns string, ikCodec KeyCodec[IK], pkCodec KeyCodec[K], indexOf func(K, T) IK) *MultiIndex[IK, K, T] {
	return &MultiIndex[IK, K, T]{ns: lenPrefix([]byte(ns)), ikCodec: ikCodec, pkCodec: pkCodec, indexOf: indexOf}
}

func (m *MultiIndex[IK, K, T]) rawKey(ik IK, pk K) []byte {
	out := append(append([]byte{}, m.ns...), lenPrefix(m.ikCodec.Encode(ik))...)
	return append(out, m.pkCodec.Encode(pk)...)
}

func (m *MultiIndex[IK, K, T]) Save(s store.Provider, pk K, value T) error {
	ik := m.indexOf(pk, value)
	return s.Set(m.rawKey(ik, pk), []byte{})
}

func (m *MultiIndex[IK, K, T]) Remove(s store.Provider, pk K, value T) error {
	ik := m.indexOf(pk, value)
	return s.Delete(m.rawKey(ik, pk))
}

// PrimaryKeys returns every primary key recorded under index key ik, in
// ascending order.
func (m *MultiIndex[IK, K, T]) PrimaryKeys(s store.Provider, ik IK) ([]K, error) {
	prefix := append(append([]byte{}, m.ns...), lenPrefix(m.ikCodec.Encode(ik))...)
	min := store.Inclusive(prefix)
	max := store.Exclusive(incrementBytes(prefix))
	it := s.Scan(min, max, store.Ascending)
	defer it.Close()
	var out []K
	for it.Next() {
		raw := it.Record().Key[len(prefix):]
		pk, err := m.pkCodec.Decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, it.Error()
}

func incrementBytes(prefix []byte) []byte {
	out := append([]byte{}, prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// IndexedMap is a Map plus a declarative set of secondary indexes, walked
// uniformly on every Save/Remove: the old value's index entries are
// removed, the new value's are inserted. Generalizes
// original_source/crates/storage/src/indexed.rs's IndexList-of-trait-
// objects into a fixed slice of Index interface values supplied at
// construction.
type IndexedMap[K any, V any] struct {
	primary Map[K, V]
	indexes []Index[K, V]
}

// NewIndexedMap builds an IndexedMap over namespace ns with the given
// secondary indexes.
func NewIndexedMap[K any, V any](ns string, keys KeyCodec[K], vals ValueCodec[V], indexes ...Index[K, V]) IndexedMap[K, V] {
	return IndexedMap[K, V]{primary: NewMap[K, V](ns, keys, vals), indexes: indexes}
}

func (m IndexedMap[K, V]) Has(s store.Provider, key K) bool { return m.primary.Has(s, key) }

func (m IndexedMap[K, V]) May(s store.Provider, key K) (V, bool, error) { return m.primary.May(s, key) }

func (m IndexedMap[K, V]) Load(s store.Provider, key K) (V, error) { return m.primary.Load(s, key) }

func (m IndexedMap[K, V]) Range(s store.Provider, min, max *Bound[K], order store.Order) ([]KV[K, V], error) {
	return m.primary.Range(s, min, max, order)
}

// Save writes value at key, removing the old value's index entries (if any)
// and inserting the new value's, failing the whole write if a unique index
// would collide.
func (m IndexedMap[K, V]) Save(s store.Provider, key K, value V) error {
	old, hadOld, err := m.primary.May(s, key)
	if err != nil {
		return err
	}
	if hadOld {
		for _, idx := range m.indexes {
			if err := idx.Remove(s, key, old); err != nil {
				return err
			}
		}
	}
	for _, idx := range m.indexes {
		if err := idx.Save(s, key, value); err != nil {
			return err
		}
	}
	return m.primary.Save(s, key, value)
}

// Remove deletes key and every index entry it contributed.
func (m IndexedMap[K, V]) Remove(s store.Provider, key K) error {
	old, ok, err := m.primary.May(s, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, idx := range m.indexes {
		if err := idx.Remove(s, key, old); err != nil {
			return err
		}
	}
	return m.primary.Remove(s, key)
}
