package jmt

import "crypto/sha256"

// Hash is the canonical 32-byte digest used throughout the tree: node
// hashes, key hashes and value hashes all share this type.
type Hash [32]byte

// domain-separation prefixes so that internal-node and leaf-node hashes (and
// the hash of a raw value) can never collide.
var (
	prefixInternal = []byte{0x00}
	prefixLeaf     = []byte{0x01}
)

// HashBytes returns H(data), the canonical hash function used for key
// hashes, value hashes and address derivation.
func HashBytes(data []byte) Hash {
	return sha256.Sum256(data)
}

// emptyChild is the fixed placeholder contributed by a missing child so
// that empty and non-empty subtrees never hash identically.
var emptyChild = Hash{}

func hashLeaf(keyHash, valueHash Hash) Hash {
	h := sha256.New()
	h.Write(prefixLeaf)
	h.Write(keyHash[:])
	h.Write(valueHash[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashInternal(left, right *Hash) Hash {
	h := sha256.New()
	h.Write(prefixInternal)
	if left != nil {
		h.Write(left[:])
	} else {
		h.Write(emptyChild[:])
	}
	if right != nil {
		h.Write(right[:])
	} else {
		h.Write(emptyChild[:])
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// EmptyTreeHash is the designated root hash of a tree with no leaves: an
// internal node hash with both children absent.
var EmptyTreeHash = hashInternal(nil, nil)
