package collections

import (
	"fmt"

	"chainkernel/store"
)

// Item is a single keyed slot — a Map with a fixed, namespace-only key.
type Item[T any] struct {
	key   []byte
	codec ValueCodec[T]
}

// NewItem returns an Item stored at the fixed namespace key ns, using codec
// to marshal its value.
func NewItem[T any](ns string, codec ValueCodec[T]) Item[T] {
	return Item[T]{key: []byte(ns), codec: codec}
}

// NewJSONItem is NewItem with the standard JSONValueCodec.
func NewJSONItem[T any](ns string) Item[T] {
	return NewItem[T](ns, JSONValueCodec[T]{})
}

// Load reads the item's value, returning an error if it has never been set.
func (i Item[T]) Load(s store.Provider) (T, error) {
	v, ok, err := i.May(s)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		var zero T
		return zero, fmt.Errorf("collections: item %q not found", string(i.key))
	}
	return v, nil
}

// May reads the item's value if present.
func (i Item[T]) May(s store.Provider) (T, bool, error) {
	raw, ok, err := s.Get(i.key)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	v, err := i.codec.Unmarshal(raw)
	return v, err == nil, err
}

// Save writes v to the item's slot.
func (i Item[T]) Save(s store.Provider, v T) error {
	raw, err := i.codec.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(i.key, raw)
}

// Remove deletes the item's slot.
func (i Item[T]) Remove(s store.Provider) error {
	return s.Delete(i.key)
}
