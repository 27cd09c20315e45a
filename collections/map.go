package collections

import (
	"fmt"

	"chainkernel/store"
)

// Map is a logical mapping keyed by K, stored under a fixed namespace
// prefix per spec.md §3's path schema: len2(ns) ‖ ns ‖ key. K declares its
// own raw encoding via KeyCodec; composite keys use Pair.
type Map[K any, V any] struct {
	ns    []byte
	keys  KeyCodec[K]
	vals  ValueCodec[V]
}

// NewMap returns a Map over namespace ns using the given key/value codecs.
func NewMap[K any, V any](ns string, keys KeyCodec[K], vals ValueCodec[V]) Map[K, V] {
	return Map[K, V]{ns: lenPrefix([]byte(ns)), keys: keys, vals: vals}
}

// NewJSONMap is NewMap with the standard JSONValueCodec.
func NewJSONMap[K any, V any](ns string, keys KeyCodec[K]) Map[K, V] {
	return NewMap[K, V](ns, keys, JSONValueCodec[V]{})
}

func (m Map[K, V]) rawKey(k K) []byte {
	out := make([]byte, len(m.ns))
	copy(out, m.ns)
	return append(out, m.keys.Encode(k)...)
}

// Has reports whether key is present.
func (m Map[K, V]) Has(s store.Provider, key K) bool {
	_, ok, _ := s.Get(m.rawKey(key))
	return ok
}

// May reads the value at key if present.
func (m Map[K, V]) May(s store.Provider, key K) (V, bool, error) {
	raw, ok, err := s.Get(m.rawKey(key))
	if err != nil || !ok {
		var zero V
		return zero, false, err
	}
	v, err := m.vals.Unmarshal(raw)
	return v, err == nil, err
}

// Load reads the value at key, erroring if it is absent.
func (m Map[K, V]) Load(s store.Provider, key K) (V, error) {
	v, ok, err := m.May(s, key)
	if err != nil {
		return v, err
	}
	if !ok {
		var zero V
		return zero, fmt.Errorf("collections: key not found in map %q", string(m.ns))
	}
	return v, nil
}

// Save writes value at key.
func (m Map[K, V]) Save(s store.Provider, key K, value V) error {
	raw, err := m.vals.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(m.rawKey(key), raw)
}

// Remove deletes key.
func (m Map[K, V]) Remove(s store.Provider, key K) error {
	return s.Delete(m.rawKey(key))
}

// rawScan performs the namespace-scoped, bound-translated scan shared by
// Range/Keys, returning raw (unprefixed-namespace) records.
func (m Map[K, V]) rawScan(s store.Provider, min, max *Bound[K], order store.Order) store.Iterator {
	boundKey := func(b *Bound[K]) []byte {
		return append(append([]byte{}, m.ns...), m.keys.Encode(b.Key)...)
	}
	var rawMin, rawMax *store.Bound
	if min != nil {
		if min.Exclusive {
			rawMin = store.Exclusive(boundKey(min))
		} else {
			rawMin = store.Inclusive(boundKey(min))
		}
	}
	if max != nil {
		if max.Exclusive {
			rawMax = store.Exclusive(boundKey(max))
		} else {
			rawMax = store.Inclusive(boundKey(max))
		}
	}
	if rawMin == nil {
		rawMin = store.Inclusive(append([]byte{}, m.ns...))
	}
	if rawMax == nil {
		if up := prefixUpperBound(m.ns); up != nil {
			rawMax = store.Exclusive(up)
		}
	}
	return &nsStrippedIterator{inner: s.Scan(rawMin, rawMax, order), ns: m.ns}
}

// prefixUpperBound returns the smallest key not prefixed by ns, so an
// unbounded-above scan stays within this Map's namespace.
func prefixUpperBound(ns []byte) []byte {
	out := append([]byte{}, ns...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

type nsStrippedIterator struct {
	inner store.Iterator
	ns    []byte
}

func (it *nsStrippedIterator) Next() bool { return it.inner.Next() }
func (it *nsStrippedIterator) Record() store.Record {
	r := it.inner.Record()
	return store.Record{Key: r.Key[len(it.ns):], Value: r.Value}
}
func (it *nsStrippedIterator) Error() error { return it.inner.Error() }
func (it *nsStrippedIterator) Close() error { return it.inner.Close() }

// KV is the (key, value) yielded by Range, with the key already decoded.
type KV[K any, V any] struct {
	Key   K
	Value V
}

// Range iterates [min, max) within the map in the given order, decoding
// both key and value.
func (m Map[K, V]) Range(s store.Provider, min, max *Bound[K], order store.Order) ([]KV[K, V], error) {
	it := m.rawScan(s, min, max, order)
	defer it.Close()
	var out []KV[K, V]
	for it.Next() {
		r := it.Record()
		k, err := m.keys.Decode(r.Key)
		if err != nil {
			return nil, err
		}
		v, err := m.vals.Unmarshal(r.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, KV[K, V]{Key: k, Value: v})
	}
	return out, it.Error()
}

// Keys iterates [min, max) within the map, decoding only the key.
func (m Map[K, V]) Keys(s store.Provider, min, max *Bound[K], order store.Order) ([]K, error) {
	it := m.rawScan(s, min, max, order)
	defer it.Close()
	var out []K
	for it.Next() {
		k, err := m.keys.Decode(it.Record().Key)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, it.Error()
}
