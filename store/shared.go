package store

import (
	"sync"
)

// pageSize bounds how many records a Shared iterator pulls from its parent
// per page, matching the reference implementation's SharedIter constant —
// large enough to amortize the lock round-trip, small enough that an
// iterator never holds the store locked for long.
const pageSize = 30

// Shared is a reference-counted, cheaply-clonable handle around a KVStore,
// safe to pass into nested call frames. Its Scan never borrows the
// underlying store across the iterator's lifetime: it collects a bounded
// page under the lock, releases it, and transparently fetches the next
// page once the current one is exhausted, advancing the bound to the last
// key seen.
//
// Execution in this kernel is strictly single-threaded per block, so the
// mutex below is never contended in honest use; it exists to prevent a
// contract re-entering through another contract's call from observing a
// torn write in the middle of an in-progress scan.
type Shared struct {
	mu    *sync.RWMutex
	inner KVStore
}

// NewShared wraps inner in a Shared handle.
func NewShared(inner KVStore) Shared {
	return Shared{mu: &sync.RWMutex{}, inner: inner}
}

// Clone returns a new handle to the same underlying store and lock.
func (s Shared) Clone() Shared {
	return Shared{mu: s.mu, inner: s.inner}
}

func (s Shared) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.Get(key)
}

func (s Shared) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Set(key, value)
}

func (s Shared) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Delete(key)
}

func (s Shared) Scan(min, max []byte, order Order) Iterator {
	return &sharedIterator{shared: s, min: min, max: max, order: order}
}

// sharedIterator collects pageSize records at a time from the shared
// store, refreshing its bound to continue from the last key seen once a
// page is exhausted. Writes made to the store between pages are visible to
// later pages only — it never observes a write retroactively within an
// already-collected page, matching the "iterators collect a bounded page
// and refresh" policy.
type sharedIterator struct {
	shared Shared
	min    []byte
	max    []byte
	order  Order

	batch []Record
	pos   int
	done  bool
	err   error
}

func (it *sharedIterator) collectNextPage() {
	if it.done {
		it.batch = nil
		it.pos = 0
		return
	}

	it.shared.mu.RLock()
	full := it.shared.inner.Scan(it.min, it.max, it.order)
	page := make([]Record, 0, pageSize)
	for len(page) < pageSize && full.Next() {
		page = append(page, full.Record())
	}
	it.err = full.Error()
	exhausted := !full.Next()
	_ = full.Close()
	it.shared.mu.RUnlock()

	it.batch = page
	it.pos = 0

	if len(page) < pageSize || exhausted {
		it.done = true
		return
	}

	last := page[len(page)-1].Key
	if it.order == Ascending {
		it.min = extendOneByte(last)
	} else {
		it.max = last
	}
}

// extendOneByte returns key ‖ 0x00, the smallest key strictly greater than
// key under byte-lexicographic order, used to resume an ascending scan
// past the last key seen.
func extendOneByte(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}

func (it *sharedIterator) Next() bool {
	if it.pos >= len(it.batch) {
		if it.done && it.batch != nil {
			return false
		}
		it.collectNextPage()
		if len(it.batch) == 0 {
			return false
		}
	}
	it.pos++
	return it.pos <= len(it.batch)
}

func (it *sharedIterator) Record() Record {
	return it.batch[it.pos-1]
}

func (it *sharedIterator) Error() error { return it.err }
func (it *sharedIterator) Close() error { return nil }
