package collections

import "chainkernel/store"

// Bound denotes one side of a Map range scan, expressed in terms of the
// logical key type K. A nil *Bound means unbounded on that side, matching
// spec.md §3's Bound<K> ∈ {Inclusive(K), Exclusive(K), None}.
type Bound[K any] struct {
	Key       K
	Exclusive bool
}

// Inc constructs an inclusive bound.
func Inc[K any](k K) *Bound[K] { return &Bound[K]{Key: k} }

// Exc constructs an exclusive bound.
func Exc[K any](k K) *Bound[K] { return &Bound[K]{Key: k, Exclusive: true} }

func toRawBound[K any](b *Bound[K], codec KeyCodec[K]) *store.Bound {
	if b == nil {
		return nil
	}
	raw := codec.Encode(b.Key)
	if b.Exclusive {
		return store.Exclusive(raw)
	}
	return store.Inclusive(raw)
}
