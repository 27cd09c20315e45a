package jmt

import "fmt"

// ProofStep is one internal node crossed while descending from the root
// towards a key: the node's own depth (so the verifier can recompute which
// bit of the key hash it branched on) and the hash of the sibling not on
// the key's path (nil if that sibling slot was empty).
type ProofStep struct {
	Depth       int
	SiblingHash *Hash
}

// Proof is either a membership or a non-membership witness. Exactly the
// fields relevant to the proof's kind are populated.
type Proof struct {
	Membership bool

	// Non-membership only. NeighbourLeaf is set when the would-be slot is
	// already occupied by a different key sharing a common prefix; it is
	// nil when the would-be slot is simply empty.
	NeighbourLeaf *LeafNode

	// Steps runs from the node closest to the leaf/empty-slot up to the
	// root, the order Verify expects.
	Steps []ProofStep
}

// Prove builds an inclusion or exclusion proof for key against the tree's
// current committed root.
func (t *Tree) Prove(key []byte) (Proof, error) {
	keyHash := HashBytes(key)

	if !t.hasRoot {
		return Proof{Membership: false}, nil
	}

	var frames []frame

	cur := t.root
	for {
		if cur == nil {
			return reverseIntoProof(frames, false, nil), nil
		}
		n, err := t.getNode(cur.Version, cur.Path)
		if err != nil {
			return Proof{}, err
		}
		if n.Leaf != nil {
			if n.Leaf.KeyHash == keyHash {
				return reverseIntoProof(frames, true, nil), nil
			}
			return reverseIntoProof(frames, false, n.Leaf), nil
		}
		bit := bitAtFullHash(keyHash, cur.Path.Len())
		var sibling *Child
		if bit == 0 {
			sibling = n.Internal.Right
		} else {
			sibling = n.Internal.Left
		}
		var sh *Hash
		if sibling != nil {
			h := sibling.Hash
			sh = &h
		}
		frames = append(frames, frame{depth: cur.Path.Len(), siblingHash: sh})
		cur = n.Internal.child(bit)
	}
}

// frame is one internal node crossed by Prove, recorded root-first.
type frame struct {
	depth       int
	siblingHash *Hash
}

func reverseIntoProof(frames []frame, membership bool, neighbour *LeafNode) Proof {
	steps := make([]ProofStep, len(frames))
	for i, f := range frames {
		steps[len(frames)-1-i] = ProofStep{Depth: f.depth, SiblingHash: f.siblingHash}
	}
	return Proof{Membership: membership, NeighbourLeaf: neighbour, Steps: steps}
}

// Verify checks proof against root for the given key. For a membership
// proof, value must be the claimed stored value; for a non-membership
// proof, value is ignored (pass nil).
func Verify(root Hash, key []byte, value []byte, proof Proof) (bool, error) {
	keyHash := HashBytes(key)

	var cur Hash
	switch {
	case proof.Membership:
		cur = hashLeaf(keyHash, HashBytes(value))
	case proof.NeighbourLeaf != nil:
		if proof.NeighbourLeaf.KeyHash == keyHash {
			return false, fmt.Errorf("jmt: non-membership proof neighbour shares the queried key")
		}
		cur = hashLeaf(proof.NeighbourLeaf.KeyHash, proof.NeighbourLeaf.ValueHash)
	default:
		if len(proof.Steps) == 0 {
			return root == EmptyTreeHash, nil
		}
		cur = Hash{} // placeholder for the empty slot; combined with the first step below
	}

	for i, step := range proof.Steps {
		bit := bitAtFullHash(keyHash, step.Depth)
		var left, right *Hash
		var curHash *Hash
		if !proof.Membership && proof.NeighbourLeaf == nil && i == 0 {
			curHash = nil // empty slot contributes the fixed placeholder, not `cur`
		} else {
			h := cur
			curHash = &h
		}
		if bit == 0 {
			left, right = curHash, step.SiblingHash
		} else {
			left, right = step.SiblingHash, curHash
		}
		cur = hashInternal(left, right)
	}

	return cur == root, nil
}
