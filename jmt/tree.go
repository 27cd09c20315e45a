package jmt

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"chainkernel/store"
)

// Batch accumulates pending insert/delete operations to be applied
// together by Flush, matching the reference tree's insert/delete-then-
// flush grouping.
type Batch struct {
	ops []batchOp
}

type batchOp struct {
	key      []byte
	value    []byte
	isDelete bool
}

// Insert stages a write of key→value.
func (b *Batch) Insert(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: key, value: value})
}

// Delete stages removal of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: key, isDelete: true})
}

// Tree is a versioned, authenticated key-value map realised as a
// compressed binary radix tree over H(key), per-node hashing with
// domain-separated internal/leaf hashes, and flush/commit semantics that
// let a caller inspect a staged root before deciding to keep it.
type Tree struct {
	backing store.KVStore
	latest  uint64
	// hasCommitted distinguishes "nothing has ever been committed" (the
	// next Flush must land at version 0, per spec.md §3: "a fresh chain
	// starts at version 0 after the genesis batch is committed") from
	// "latest happens to be 0 because it was just committed there" (the
	// next Flush must land at version 1).
	hasCommitted bool
	hasRoot      bool
	root         *Child

	staged       bool
	stagedVer    uint64
	stagedRoot   *Child
	stagedHasAny bool
}

// NewTree opens a Tree over backing, starting from whatever root was last
// committed (none, if the backing store has no history yet — a fresh chain
// before its genesis batch is committed).
func NewTree(backing store.KVStore) *Tree {
	t := &Tree{backing: backing}
	t.loadLatestMeta()
	return t
}

func metaKey(version uint64) []byte {
	out := make([]byte, 5+8)
	copy(out, "meta/")
	binary.BigEndian.PutUint64(out[5:], version)
	return out
}

var headKey = []byte("head")

// loadLatestMeta reads the persisted "latest version" pointer and the root
// recorded for it.
func (t *Tree) loadLatestMeta() {
	headRaw, ok, _ := t.backing.Get(headKey)
	if !ok {
		t.latest = 0
		t.hasCommitted = false
		t.hasRoot = false
		t.root = nil
		return
	}
	version := binary.BigEndian.Uint64(headRaw)
	raw, ok, _ := t.backing.Get(metaKey(version))
	t.latest = version
	t.hasCommitted = true
	if !ok {
		t.hasRoot = false
		t.root = nil
		return
	}
	t.root, t.hasRoot = decodeMeta(raw)
}

func encodeMeta(c *Child) []byte {
	if c == nil {
		return []byte{0}
	}
	out := make([]byte, 1+8+32+1+maxByteLength)
	out[0] = 1
	binary.BigEndian.PutUint64(out[1:9], c.Version)
	copy(out[9:41], c.Hash[:])
	out[41] = byte(c.Path.numBits)
	b := c.Path.Bytes()
	copy(out[42:], b[:])
	return out
}

func decodeMeta(raw []byte) (*Child, bool) {
	if len(raw) == 0 || raw[0] == 0 {
		return nil, false
	}
	c := &Child{Version: binary.BigEndian.Uint64(raw[1:9])}
	copy(c.Hash[:], raw[9:41])
	c.Path.numBits = int(raw[41])
	copy(c.Path.bytes[:], raw[42:])
	return c, true
}

// Version returns the latest committed version.
func (t *Tree) Version() uint64 { return t.latest }

// RootHash returns the committed root hash at the latest version: the
// designated empty-tree hash if nothing has been committed yet.
func (t *Tree) RootHash() Hash {
	if !t.hasRoot {
		return EmptyTreeHash
	}
	return t.root.Hash
}

func nodeKey(version uint64, path BitArray) []byte {
	return append([]byte("node/"), encodeNodeKey(version, path)...)
}

func valueKey(h Hash) []byte {
	return append([]byte("value/"), []byte(hex.EncodeToString(h[:]))...)
}

func (t *Tree) getNode(version uint64, path BitArray) (Node, error) {
	raw, ok, err := t.backing.Get(nodeKey(version, path))
	if err != nil {
		return Node{}, err
	}
	if !ok {
		return Node{}, fmt.Errorf("jmt: missing node at version=%d path=%s", version, path.String())
	}
	return deserializeNode(raw)
}

func (t *Tree) putNode(version uint64, path BitArray, n Node) error {
	return t.backing.Set(nodeKey(version, path), serializeNode(n))
}

func (t *Tree) putValue(h Hash, value []byte) error {
	return t.backing.Set(valueKey(h), value)
}

// GetValue returns the raw bytes stored under a content hash, as recorded
// by the most recent leaf carrying it.
func (t *Tree) GetValue(h Hash) ([]byte, bool, error) {
	return t.backing.Get(valueKey(h))
}

// Flush applies batch against the tree's current staged (or, if nothing
// is staged yet, latest committed) state, writing new nodes at version 0
// for the very first commit a fresh chain ever makes (spec.md §3: "a fresh
// chain starts at version 0 after the genesis batch is committed") and at
// version = latest+1 for every commit after that, and returns that version
// and its root hash without promoting it to "latest". The caller may
// inspect the result and then Commit or Discard.
func (t *Tree) Flush(batch *Batch) (uint64, Hash, error) {
	workVersion := uint64(0)
	if t.hasCommitted {
		workVersion = t.latest + 1
	}
	root := t.root
	hasAny := t.hasRoot
	if t.staged {
		workVersion = t.stagedVer
		root = t.stagedRoot
		hasAny = t.stagedHasAny
	}

	for _, op := range batch.ops {
		keyHash := HashBytes(op.key)
		if op.isDelete {
			newRoot, err := t.deleteRec(root, keyHash, workVersion)
			if err != nil {
				return 0, Hash{}, err
			}
			root = newRoot
			hasAny = newRoot != nil
			continue
		}
		valueHash := HashBytes(op.value)
		if err := t.putValue(valueHash, op.value); err != nil {
			return 0, Hash{}, err
		}
		newRoot, err := t.insertRec(root, keyHash, valueHash, workVersion)
		if err != nil {
			return 0, Hash{}, err
		}
		root = newRoot
		hasAny = true
	}

	t.staged = true
	t.stagedVer = workVersion
	t.stagedRoot = root
	t.stagedHasAny = hasAny

	if !hasAny {
		return workVersion, EmptyTreeHash, nil
	}
	return workVersion, root.Hash, nil
}

// Commit promotes the most recently flushed batch to "latest" and persists
// its root under that version.
func (t *Tree) Commit() error {
	if !t.staged {
		return fmt.Errorf("jmt: commit with nothing staged")
	}
	if err := t.backing.Set(metaKey(t.stagedVer), encodeMeta(t.stagedRoot)); err != nil {
		return err
	}
	headRaw := make([]byte, 8)
	binary.BigEndian.PutUint64(headRaw, t.stagedVer)
	if err := t.backing.Set(headKey, headRaw); err != nil {
		return err
	}
	t.latest = t.stagedVer
	t.hasCommitted = true
	t.root = t.stagedRoot
	t.hasRoot = t.stagedHasAny
	t.staged = false
	return nil
}

// Discard drops a flushed-but-uncommitted batch; the tree remains at its
// last committed version. Nodes physically written by the discarded flush
// are simply orphaned (never referenced by any committed meta record).
func (t *Tree) Discard() {
	t.staged = false
}

func (t *Tree) insertRec(cur *Child, keyHash, valueHash Hash, workVersion uint64) (*Child, error) {
	if cur == nil {
		path := NewBitArrayFromHash(keyHash)
		if err := t.putNode(workVersion, path, Node{Leaf: &LeafNode{KeyHash: keyHash, ValueHash: valueHash}}); err != nil {
			return nil, err
		}
		return &Child{Version: workVersion, Hash: hashLeaf(keyHash, valueHash), Path: path}, nil
	}

	n, err := t.getNode(cur.Version, cur.Path)
	if err != nil {
		return nil, err
	}

	if n.Leaf != nil {
		if n.Leaf.KeyHash == keyHash {
			path := cur.Path
			if err := t.putNode(workVersion, path, Node{Leaf: &LeafNode{KeyHash: keyHash, ValueHash: valueHash}}); err != nil {
				return nil, err
			}
			return &Child{Version: workVersion, Hash: hashLeaf(keyHash, valueHash), Path: path}, nil
		}
		return t.splitLeaf(n.Leaf, keyHash, valueHash, workVersion)
	}

	// A compressed internal node may sit several bits below its parent; if
	// keyHash leaves cur's path above cur's own depth, branch at that point
	// and keep cur intact on its side.
	keyPath := NewBitArrayFromHash(keyHash)
	if d := CommonPrefixLen(cur.Path, keyPath); d < cur.Path.Len() {
		if err := t.putNode(workVersion, keyPath, Node{Leaf: &LeafNode{KeyHash: keyHash, ValueHash: valueHash}}); err != nil {
			return nil, err
		}
		in := &InternalNode{}
		in.setChild(cur.Path.BitAt(d), cur)
		in.setChild(keyPath.BitAt(d), &Child{Version: workVersion, Hash: hashLeaf(keyHash, valueHash), Path: keyPath})
		branchPath := prefixOf(keyPath, d)
		if err := t.putNode(workVersion, branchPath, Node{Internal: in}); err != nil {
			return nil, err
		}
		return &Child{Version: workVersion, Hash: in.hashOf(), Path: branchPath}, nil
	}

	bit := bitAtFullHash(keyHash, cur.Path.Len())
	existingChild := n.Internal.child(bit)
	newChild, err := t.insertRec(existingChild, keyHash, valueHash, workVersion)
	if err != nil {
		return nil, err
	}
	n.Internal.setChild(bit, newChild)
	if err := t.putNode(workVersion, cur.Path, Node{Internal: n.Internal}); err != nil {
		return nil, err
	}
	return &Child{Version: workVersion, Hash: n.Internal.hashOf(), Path: cur.Path}, nil
}

// splitLeaf replaces a leaf that collides on its stored path with a new
// internal branch at the two keys' longest common prefix, each key
// re-stored at its own canonical (full key-hash) path.
func (t *Tree) splitLeaf(existing *LeafNode, keyHash, valueHash Hash, workVersion uint64) (*Child, error) {
	existingPath := NewBitArrayFromHash(existing.KeyHash)
	newPath := NewBitArrayFromHash(keyHash)
	divergeIdx := CommonPrefixLen(existingPath, newPath)

	branchPath := prefixOf(newPath, divergeIdx)

	existingBit := bitAtFullHash(existing.KeyHash, divergeIdx)
	newBit := bitAtFullHash(keyHash, divergeIdx)

	if err := t.putNode(workVersion, existingPath, Node{Leaf: existing}); err != nil {
		return nil, err
	}
	if err := t.putNode(workVersion, newPath, Node{Leaf: &LeafNode{KeyHash: keyHash, ValueHash: valueHash}}); err != nil {
		return nil, err
	}

	in := &InternalNode{}
	in.setChild(existingBit, &Child{Version: workVersion, Hash: hashLeaf(existing.KeyHash, existing.ValueHash), Path: existingPath})
	in.setChild(newBit, &Child{Version: workVersion, Hash: hashLeaf(keyHash, valueHash), Path: newPath})

	if err := t.putNode(workVersion, branchPath, Node{Internal: in}); err != nil {
		return nil, err
	}
	return &Child{Version: workVersion, Hash: in.hashOf(), Path: branchPath}, nil
}

func (t *Tree) deleteRec(cur *Child, keyHash Hash, workVersion uint64) (*Child, error) {
	if cur == nil {
		return nil, nil
	}
	n, err := t.getNode(cur.Version, cur.Path)
	if err != nil {
		return nil, err
	}
	if n.Leaf != nil {
		if n.Leaf.KeyHash == keyHash {
			return nil, nil
		}
		return cur, nil
	}

	bit := bitAtFullHash(keyHash, cur.Path.Len())
	existingChild := n.Internal.child(bit)
	newChild, err := t.deleteRec(existingChild, keyHash, workVersion)
	if err != nil {
		return nil, err
	}
	n.Internal.setChild(bit, newChild)

	if _, sole, ok := n.Internal.onlyChild(); ok {
		return sole, nil
	}
	if n.Internal.Left == nil && n.Internal.Right == nil {
		return nil, nil
	}

	if err := t.putNode(workVersion, cur.Path, Node{Internal: n.Internal}); err != nil {
		return nil, err
	}
	return &Child{Version: workVersion, Hash: n.Internal.hashOf(), Path: cur.Path}, nil
}

// bitAtFullHash treats h as a full 256-bit path regardless of any
// particular node's stored (possibly shorter) Path length.
func bitAtFullHash(h Hash, index int) byte {
	return NewBitArrayFromHash(h).BitAt(index)
}

func prefixOf(b BitArray, n int) BitArray {
	var out BitArray
	for i := 0; i < n; i++ {
		out.Push(b.BitAt(i))
	}
	return out
}
