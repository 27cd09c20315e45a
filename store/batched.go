package store

import (
	"bytes"
	"sort"
)

type opKind int

const (
	opInsert opKind = iota
	opDelete
)

type pendingOp struct {
	kind  opKind
	value []byte
}

// Batched wraps a read-only parent KVStore with an in-memory overlay of
// pending Insert/Delete operations. Reads consult the overlay first and
// fall back to the parent; Flush writes the overlay straight into the
// parent, then clears it.
//
// Each phase of the transaction lifecycle, and each nested contract call,
// runs against its own Batched layered on its caller's view — exactly the
// buffered-write-over-immutable-parent shape the kernel needs for atomic,
// discardable sub-caches.
type Batched struct {
	parent  KVStore
	pending map[string]pendingOp
}

// NewBatched returns a Batched layered on top of parent.
func NewBatched(parent KVStore) *Batched {
	return &Batched{parent: parent, pending: make(map[string]pendingOp)}
}

func (b *Batched) Get(key []byte) ([]byte, bool, error) {
	if op, ok := b.pending[string(key)]; ok {
		if op.kind == opDelete {
			return nil, false, nil
		}
		out := make([]byte, len(op.value))
		copy(out, op.value)
		return out, true, nil
	}
	return b.parent.Get(key)
}

func (b *Batched) Set(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	b.pending[string(key)] = pendingOp{kind: opInsert, value: v}
	return nil
}

func (b *Batched) Delete(key []byte) error {
	b.pending[string(key)] = pendingOp{kind: opDelete}
	return nil
}

// Scan merges the pending overlay with the parent's range, with the
// overlay taking precedence for duplicate keys.
func (b *Batched) Scan(min, max []byte, order Order) Iterator {
	merged := make(map[string]Record)

	parentIt := b.parent.Scan(min, max, Ascending)
	defer parentIt.Close()
	for parentIt.Next() {
		r := parentIt.Record()
		merged[string(r.Key)] = r
	}

	for k, op := range b.pending {
		kb := []byte(k)
		if min != nil && bytes.Compare(kb, min) < 0 {
			continue
		}
		if max != nil && bytes.Compare(kb, max) >= 0 {
			continue
		}
		if op.kind == opDelete {
			delete(merged, k)
			continue
		}
		merged[k] = Record{Key: kb, Value: op.value}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		records = append(records, merged[k])
	}
	if order == Descending {
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	}
	return newSliceIterator(records)
}

// Flush applies every pending operation directly to the parent store and
// clears the overlay. Call this to promote a sub-cache's writes into its
// caller's view once the phase/frame that produced them has succeeded.
func (b *Batched) Flush() error {
	for k, op := range b.pending {
		if op.kind == opDelete {
			if err := b.parent.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := b.parent.Set([]byte(k), op.value); err != nil {
			return err
		}
	}
	b.pending = make(map[string]pendingOp)
	return nil
}

// Discard drops every pending operation without touching the parent —
// the rollback path for a failed phase or reverted submessage.
func (b *Batched) Discard() {
	b.pending = make(map[string]pendingOp)
}

// PendingOp is one buffered write or delete, as reported by Ops.
type PendingOp struct {
	Key      []byte
	Value    []byte
	IsDelete bool
}

// Ops returns the final, de-duplicated set of pending operations. A caller
// that must mirror this Batched's writes into a second structure keyed
// differently from the parent store — the block committer staging a JMT
// batch alongside the raw physical store, for instance — uses this instead
// of re-deriving the diff by comparing snapshots.
func (b *Batched) Ops() []PendingOp {
	out := make([]PendingOp, 0, len(b.pending))
	for k, op := range b.pending {
		out = append(out, PendingOp{Key: []byte(k), Value: op.value, IsDelete: op.kind == opDelete})
	}
	return out
}
