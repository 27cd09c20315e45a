// Package gas implements the kernel's gas metering: a hierarchical
// consumed/remaining counter charged on every host call, generalized from
// the teacher's per-opcode core/gas_table.go pricing model to the spec's
// host-import cost table.
package gas

import (
	"errors"
	"sync/atomic"
)

// ErrOutOfGas is returned by Consume when charging amount would exceed the
// tracker's limit.
var ErrOutOfGas = errors.New("gas: out of gas")

// Tracker is a monotonic consumed/limit counter pair. A nil Limit means
// unlimited. A child tracker derived via Child shares the same underlying
// atomic counter as its parent, so charges made by a nested call are
// visible immediately to every ancestor and are never refunded on revert —
// consistent with spec.md §4.3: "gas is not refunded on reverts".
type Tracker struct {
	consumed *atomic.Uint64
	limit    *uint64
}

// NewTracker returns a fresh root tracker. limit == nil means unlimited.
func NewTracker(limit *uint64) *Tracker {
	return &Tracker{consumed: &atomic.Uint64{}, limit: limit}
}

// NewLimited is NewTracker with an explicit finite limit.
func NewLimited(limit uint64) *Tracker {
	return NewTracker(&limit)
}

// Child derives a nested tracker for a sub-call, sharing this tracker's
// consumed counter and limit. Charges made through the child count
// against the same total as the parent.
func (t *Tracker) Child() *Tracker {
	return &Tracker{consumed: t.consumed, limit: t.limit}
}

// Consume charges amount against the tracker, failing with ErrOutOfGas if
// doing so would exceed the limit. On failure the counter is left
// unchanged — the caller's frame is expected to trap entirely rather than
// proceed with a partial charge.
func (t *Tracker) Consume(amount uint64) error {
	for {
		cur := t.consumed.Load()
		next := cur + amount
		if t.limit != nil && next > *t.limit {
			return ErrOutOfGas
		}
		if t.consumed.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Consumed returns the total gas charged so far against this tracker (and
// every tracker sharing its counter).
func (t *Tracker) Consumed() uint64 { return t.consumed.Load() }

// Limit returns the tracker's limit and whether one is set.
func (t *Tracker) Limit() (uint64, bool) {
	if t.limit == nil {
		return 0, false
	}
	return *t.limit, true
}

// Remaining returns the gas left before OutOfGas, or (0, false) if
// unlimited.
func (t *Tracker) Remaining() (uint64, bool) {
	if t.limit == nil {
		return 0, false
	}
	consumed := t.consumed.Load()
	if consumed >= *t.limit {
		return 0, true
	}
	return *t.limit - consumed, true
}
