package jmt

import (
	"testing"

	"chainkernel/store"
)

func TestEmptyTreeProofIsNonMembership(t *testing.T) {
	tree := NewTree(store.NewMemStore())
	proof, err := tree.Prove([]byte("anything"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if proof.Membership {
		t.Fatalf("expected non-membership proof on an empty tree")
	}
	if tree.RootHash() != EmptyTreeHash {
		t.Fatalf("expected empty-tree root, got %x", tree.RootHash())
	}
	ok, err := Verify(tree.RootHash(), []byte("anything"), nil, proof)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected empty-tree non-membership proof to verify")
	}
}

func flushAndCommit(t *testing.T, tree *Tree, kvs map[string]string) Hash {
	t.Helper()
	batch := &Batch{}
	for k, v := range kvs {
		batch.Insert([]byte(k), []byte(v))
	}
	_, root, err := tree.Flush(batch)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tree.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return root
}

func TestSingleLeafTreeProofs(t *testing.T) {
	tree := NewTree(store.NewMemStore())
	flushAndCommit(t, tree, map[string]string{"k": "v"})

	proof, err := tree.Prove([]byte("k"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !proof.Membership {
		t.Fatalf("expected membership proof for the sole leaf")
	}
	if len(proof.Steps) != 0 {
		t.Fatalf("expected zero siblings for a single-leaf tree, got %d", len(proof.Steps))
	}
	ok, err := Verify(tree.RootHash(), []byte("k"), []byte("v"), proof)
	if err != nil || !ok {
		t.Fatalf("expected membership proof to verify, ok=%v err=%v", ok, err)
	}

	nonProof, err := tree.Prove([]byte("other"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if nonProof.Membership {
		t.Fatalf("expected non-membership proof for a different key")
	}
	if nonProof.NeighbourLeaf == nil {
		t.Fatalf("expected the sole leaf to be cited as neighbour")
	}
	ok, err = Verify(tree.RootHash(), []byte("other"), nil, nonProof)
	if err != nil || !ok {
		t.Fatalf("expected non-membership proof against sole leaf to verify, ok=%v err=%v", ok, err)
	}
}

func TestInsertAndProveManyKeys(t *testing.T) {
	tree := NewTree(store.NewMemStore())
	kvs := map[string]string{
		"alpha":   "1",
		"bravo":   "2",
		"charlie": "3",
		"delta":   "4",
		"echo":    "5",
	}
	root := flushAndCommit(t, tree, kvs)

	for k, v := range kvs {
		proof, err := tree.Prove([]byte(k))
		if err != nil {
			t.Fatalf("Prove(%q): %v", k, err)
		}
		if !proof.Membership {
			t.Fatalf("expected membership proof for %q", k)
		}
		ok, err := Verify(root, []byte(k), []byte(v), proof)
		if err != nil || !ok {
			t.Fatalf("membership verify failed for %q: ok=%v err=%v", k, ok, err)
		}
	}

	absent, err := tree.Prove([]byte("zulu"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if absent.Membership {
		t.Fatalf("expected non-membership proof for a key never inserted")
	}
	ok, err := Verify(root, []byte("zulu"), nil, absent)
	if err != nil || !ok {
		t.Fatalf("expected non-membership proof to verify, ok=%v err=%v", ok, err)
	}
}

func TestRootHashIndependentOfInsertionOrder(t *testing.T) {
	kvs := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}

	treeA := NewTree(store.NewMemStore())
	batchA := &Batch{}
	for _, k := range []string{"a", "b", "c", "d"} {
		batchA.Insert([]byte(k), []byte(kvs[k]))
	}
	_, rootA, err := treeA.Flush(batchA)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	treeB := NewTree(store.NewMemStore())
	batchB := &Batch{}
	for _, k := range []string{"d", "c", "b", "a"} {
		batchB.Insert([]byte(k), []byte(kvs[k]))
	}
	_, rootB, err := treeB.Flush(batchB)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if rootA != rootB {
		t.Fatalf("expected insertion-order-independent root, got %x vs %x", rootA, rootB)
	}
}

func TestVersionIncrementsByOnePerCommit(t *testing.T) {
	tree := NewTree(store.NewMemStore())
	if tree.Version() != 0 {
		t.Fatalf("expected fresh tree to start at version 0, got %d", tree.Version())
	}

	// The genesis batch (the first commit a fresh chain ever makes) lands
	// at version 0, per spec.md §3.
	flushAndCommit(t, tree, map[string]string{"a": "1"})
	if tree.Version() != 0 {
		t.Fatalf("expected genesis commit to land at version 0, got %d", tree.Version())
	}

	flushAndCommit(t, tree, map[string]string{"b": "2"})
	if tree.Version() != 1 {
		t.Fatalf("expected version 1 after the first post-genesis commit, got %d", tree.Version())
	}

	flushAndCommit(t, tree, map[string]string{"c": "3"})
	if tree.Version() != 2 {
		t.Fatalf("expected version 2 after second commit, got %d", tree.Version())
	}
}

func TestFlushWithoutCommitCanBeDiscarded(t *testing.T) {
	tree := NewTree(store.NewMemStore())
	flushAndCommit(t, tree, map[string]string{"a": "1"})
	committedRoot := tree.RootHash()
	committedVersion := tree.Version()

	batch := &Batch{}
	batch.Insert([]byte("b"), []byte("2"))
	_, stagedRoot, err := tree.Flush(batch)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if stagedRoot == committedRoot {
		t.Fatalf("expected staged flush to produce a different root")
	}
	// RootHash/Version still reflect the last commit until Commit is called.
	if tree.RootHash() != committedRoot || tree.Version() != committedVersion {
		t.Fatalf("expected staged-but-uncommitted flush to leave committed state untouched")
	}

	tree.Discard()
	if tree.RootHash() != committedRoot || tree.Version() != committedVersion {
		t.Fatalf("expected Discard to leave the tree at its last committed state")
	}

	proof, err := tree.Prove([]byte("b"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if proof.Membership {
		t.Fatalf("expected discarded key to remain absent from the committed tree")
	}
}

func TestDeleteLastLeafPrunesToEmpty(t *testing.T) {
	tree := NewTree(store.NewMemStore())
	flushAndCommit(t, tree, map[string]string{"only": "1"})

	batch := &Batch{}
	batch.Delete([]byte("only"))
	_, root, err := tree.Flush(batch)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tree.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if root != EmptyTreeHash {
		t.Fatalf("expected deleting the sole leaf to restore the empty-tree hash, got %x", root)
	}

	proof, err := tree.Prove([]byte("only"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if proof.Membership {
		t.Fatalf("expected deleted key to prove as absent")
	}
}

func TestInsertOverwriteChangesValue(t *testing.T) {
	tree := NewTree(store.NewMemStore())
	flushAndCommit(t, tree, map[string]string{"k": "v1"})
	root := flushAndCommit(t, tree, map[string]string{"k": "v2"})

	proof, err := tree.Prove([]byte("k"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	ok, err := Verify(root, []byte("k"), []byte("v2"), proof)
	if err != nil || !ok {
		t.Fatalf("expected updated value to verify, ok=%v err=%v", ok, err)
	}
	ok, err = Verify(root, []byte("k"), []byte("v1"), proof)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("expected stale value to fail verification after overwrite")
	}
}
