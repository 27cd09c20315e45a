package jmt

import (
	"encoding/binary"
	"fmt"
)

// Child references a subtree by its exact physical storage location
// (Version, Path) plus the hash it produced there. Recording Path
// explicitly — rather than assuming a child always lives exactly one bit
// below its parent — is what lets the tree compress long single-child
// runs away entirely: inserting into an empty slot stores the new leaf at
// its own full key-hash path, and deleting down to one remaining sibling
// hands that sibling's Child descriptor straight to the grandparent with
// no rewrite needed.
type Child struct {
	Version uint64
	Hash    Hash
	Path    BitArray
}

// InternalNode has up to two children, indexed by the next bit of the key
// hash at this node's own path depth (0 = left, 1 = right).
type InternalNode struct {
	Left  *Child
	Right *Child
}

// LeafNode terminates a path and carries the hash of the full key and of
// the stored value (never the raw bytes — those live in the backing KV
// store keyed by value hash, out of the tree's concern).
type LeafNode struct {
	KeyHash   Hash
	ValueHash Hash
}

// Node is either an InternalNode or a LeafNode. Exactly one of the two
// fields is non-nil.
type Node struct {
	Internal *InternalNode
	Leaf     *LeafNode
}

// child returns the node's child on the given bit, or nil if absent.
func (n InternalNode) child(bit byte) *Child {
	if bit == 0 {
		return n.Left
	}
	return n.Right
}

func (n *InternalNode) setChild(bit byte, c *Child) {
	if bit == 0 {
		n.Left = c
	} else {
		n.Right = c
	}
}

// onlyChild returns the node's sole child and its bit if exactly one of
// Left/Right is set, used to collapse single-child internal nodes on
// deletion.
func (n InternalNode) onlyChild() (bit byte, c *Child, ok bool) {
	if n.Left != nil && n.Right == nil {
		return 0, n.Left, true
	}
	if n.Right != nil && n.Left == nil {
		return 1, n.Right, true
	}
	return 0, nil, false
}

// hashOf computes this internal node's hash from its children's hashes,
// using the fixed zero placeholder for any absent child.
func (n *InternalNode) hashOf() Hash {
	var l, r *Hash
	if n.Left != nil {
		l = &n.Left.Hash
	}
	if n.Right != nil {
		r = &n.Right.Hash
	}
	return hashInternal(l, r)
}

// encodeNodeKey builds the raw store key for a node at (version, path):
// an 8-byte big-endian version, a 1-byte bit length, then the 32-byte path
// buffer.
func encodeNodeKey(version uint64, path BitArray) []byte {
	out := make([]byte, 8+1+maxByteLength)
	binary.BigEndian.PutUint64(out[:8], version)
	out[8] = byte(path.numBits)
	b := path.Bytes()
	copy(out[9:], b[:])
	return out
}

// serializeNode encodes a node for storage. Layout: 1-byte tag (0=internal,
// 1=leaf) followed by the type-specific payload.
func serializeNode(n Node) []byte {
	if n.Leaf != nil {
		out := make([]byte, 1+32+32)
		out[0] = 1
		copy(out[1:33], n.Leaf.KeyHash[:])
		copy(out[33:65], n.Leaf.ValueHash[:])
		return out
	}
	in := n.Internal
	if in == nil {
		in = &InternalNode{}
	}
	childLen := 1 + 8 + 32 + 1 + maxByteLength
	out := make([]byte, 1+2*childLen)
	out[0] = 0
	off := 1
	off += encodeOptChild(out[off:], in.Left)
	encodeOptChild(out[off:], in.Right)
	return out
}

func encodeOptChild(buf []byte, c *Child) int {
	childLen := 1 + 8 + 32 + 1 + maxByteLength
	if c == nil {
		buf[0] = 0
		return childLen
	}
	buf[0] = 1
	binary.BigEndian.PutUint64(buf[1:9], c.Version)
	copy(buf[9:41], c.Hash[:])
	buf[41] = byte(c.Path.numBits)
	pb := c.Path.Bytes()
	copy(buf[42:42+maxByteLength], pb[:])
	return childLen
}

func decodeOptChild(buf []byte) (*Child, int) {
	childLen := 1 + 8 + 32 + 1 + maxByteLength
	if buf[0] == 0 {
		return nil, childLen
	}
	c := &Child{Version: binary.BigEndian.Uint64(buf[1:9])}
	copy(c.Hash[:], buf[9:41])
	c.Path.numBits = int(buf[41])
	copy(c.Path.bytes[:], buf[42:42+maxByteLength])
	return c, childLen
}

func deserializeNode(b []byte) (Node, error) {
	if len(b) == 0 {
		return Node{}, fmt.Errorf("jmt: empty node payload")
	}
	switch b[0] {
	case 1:
		if len(b) < 65 {
			return Node{}, fmt.Errorf("jmt: truncated leaf node")
		}
		var n LeafNode
		copy(n.KeyHash[:], b[1:33])
		copy(n.ValueHash[:], b[33:65])
		return Node{Leaf: &n}, nil
	case 0:
		off := 1
		left, n1 := decodeOptChild(b[off:])
		off += n1
		right, _ := decodeOptChild(b[off:])
		return Node{Internal: &InternalNode{Left: left, Right: right}}, nil
	default:
		return Node{}, fmt.Errorf("jmt: unknown node tag %d", b[0])
	}
}
