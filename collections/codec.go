// Package collections implements the typed storage primitives contracts use
// to persist state on top of the raw store.Provider: a single keyed Item, a
// Map with composite-key support, and an IndexedMap layering unique/multi
// secondary indexes over a Map. Map and index keys are encoded with the
// length-prefixed path schema of spec.md §3: encode(ns, key) = len2(ns) ‖ ns
// ‖ key. An Item is stored at its namespace bytes as given, without a length
// prefix.
package collections

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// KeyCodec describes how a primary-key type of a Map encodes to raw bytes
// and back. The interface has no prefix encoding; the pair codec returned by
// PairKey adds an EncodePrefix method that encodes only the leading
// component of a key.
type KeyCodec[K any] interface {
	Encode(key K) []byte
	Decode(raw []byte) (K, error)
}

// BytesKey is the identity codec: the raw key bytes, unprefixed. Only valid
// as the last (or only) component of a Map's key, since it carries no
// length marker of its own.
type BytesKey struct{}

func (BytesKey) Encode(key []byte) []byte { return key }
func (BytesKey) Decode(raw []byte) ([]byte, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// StringKey encodes a string as its raw UTF-8 bytes, unprefixed.
type StringKey struct{}

func (StringKey) Encode(key string) []byte { return []byte(key) }
func (StringKey) Decode(raw []byte) (string, error) { return string(raw), nil }

// Uint64Key encodes a uint64 as 8 big-endian bytes, preserving
// byte-lexicographic order as numeric order.
type Uint64Key struct{}

func (Uint64Key) Encode(key uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	return buf[:]
}

func (Uint64Key) Decode(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, fmt.Errorf("collections: Uint64Key expects 8 bytes, got %d", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Addr20Key encodes a fixed 20-byte address.
type Addr20Key struct{}

func (Addr20Key) Encode(key [20]byte) []byte { return key[:] }

func (Addr20Key) Decode(raw []byte) ([20]byte, error) {
	var out [20]byte
	if len(raw) != 20 {
		return out, fmt.Errorf("collections: Addr20Key expects 20 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// lenPrefix length-prefixes raw with a big-endian u16, matching spec.md
// §3's encode() path-segment schema.
func lenPrefix(raw []byte) []byte {
	out := make([]byte, 2+len(raw))
	binary.BigEndian.PutUint16(out, uint16(len(raw)))
	copy(out[2:], raw)
	return out
}

// Pair is a two-component composite primary key, e.g. (addr, denom) for a
// balances Map. The first component is always length-prefixed so a raw key
// can be split back into its components, and so Prefix scans over just the
// first component are well-defined.
type Pair[K1, K2 any] struct {
	First  K1
	Second K2
}

// PairKey returns a composite KeyCodec for Pair[K1,K2] built from the
// component codecs.
func PairKey[K1, K2 any](c1 KeyCodec[K1], c2 KeyCodec[K2]) KeyCodec[Pair[K1, K2]] {
	return pairCodec[K1, K2]{c1: c1, c2: c2}
}

type pairCodec[K1, K2 any] struct {
	c1 KeyCodec[K1]
	c2 KeyCodec[K2]
}

func (p pairCodec[K1, K2]) Encode(key Pair[K1, K2]) []byte {
	out := lenPrefix(p.c1.Encode(key.First))
	out = append(out, p.c2.Encode(key.Second)...)
	return out
}

func (p pairCodec[K1, K2]) Decode(raw []byte) (Pair[K1, K2], error) {
	var out Pair[K1, K2]
	if len(raw) < 2 {
		return out, fmt.Errorf("collections: composite key too short")
	}
	n := int(binary.BigEndian.Uint16(raw))
	if len(raw) < 2+n {
		return out, fmt.Errorf("collections: composite key truncated")
	}
	first, err := p.c1.Decode(raw[2 : 2+n])
	if err != nil {
		return out, err
	}
	second, err := p.c2.Decode(raw[2+n:])
	if err != nil {
		return out, err
	}
	return Pair[K1, K2]{First: first, Second: second}, nil
}

// EncodePrefix encodes just the first component of a pair key, the raw
// prefix shared by every key with that leading component.
func (p pairCodec[K1, K2]) EncodePrefix(first K1) []byte {
	return lenPrefix(p.c1.Encode(first))
}

// ValueCodec describes how a Map/Item's value type marshals to raw bytes.
type ValueCodec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(raw []byte) (V, error)
}

// JSONValueCodec marshals values with the standard library's encoding/json,
// matching the rest of the kernel's JSON-first wire convention.
type JSONValueCodec[V any] struct{}

func (JSONValueCodec[V]) Marshal(v V) ([]byte, error) { return json.Marshal(v) }

func (JSONValueCodec[V]) Unmarshal(raw []byte) (V, error) {
	var v V
	err := json.Unmarshal(raw, &v)
	return v, err
}
