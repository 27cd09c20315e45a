// Package wire implements the kernel's external wire format: addresses,
// hashes, coins, denoms, the transaction/message envelope, and the
// request/response shapes of the /app, /store and /simulate query paths.
// JSON uses the standard library's encoding/json throughout, matching the
// teacher's reflection-free, encoding/json-first convention; hex encodings
// follow spec.md §6 exactly (addresses 0x + 40 lowercase hex, hashes 64
// uppercase hex chars).
package wire

import (
	"encoding/hex"
	"fmt"
	"strings"

	"chainkernel/jmt"
)

// Address is the kernel's 20-byte account/contract identifier.
type Address [20]byte

// Hash is the canonical 32-byte digest shared with the JMT's own node
// hashing and code-hash identification — the single H referenced
// throughout spec.md §3.
type Hash = jmt.Hash

// HashBytes computes H(data).
func HashBytes(data []byte) Hash { return jmt.HashBytes(data) }

// String renders an address as "0x" + 40 lowercase hex digits.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalJSON renders the address per spec.md §6.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", a.String())), nil
}

// UnmarshalJSON parses a "0x"-prefixed 40-hex-digit address.
func (a *Address) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a "0x" + 40 lowercase hex digit address.
func ParseAddress(s string) (Address, error) {
	var out Address
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("wire: invalid address %q: %w", s, err)
	}
	if len(b) != 20 {
		return out, fmt.Errorf("wire: address must be 20 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// HashString renders a Hash as 64 uppercase hex characters.
func HashString(h Hash) string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// ParseHash parses a 64-character uppercase (or lowercase) hex digest.
func ParseHash(s string) (Hash, error) {
	var out Hash
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return out, fmt.Errorf("wire: invalid hash %q: %w", s, err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("wire: hash must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func unquote(b []byte) (string, error) {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return "", fmt.Errorf("wire: expected JSON string, got %s", b)
	}
	return string(b[1 : len(b)-1]), nil
}

// DeriveAddress derives a deterministic address as H(deployer ‖ codeHash ‖
// salt), truncated to the leading 20 bytes, per spec.md §3.
func DeriveAddress(deployer Address, codeHash Hash, salt []byte) Address {
	buf := make([]byte, 0, 20+32+len(salt))
	buf = append(buf, deployer[:]...)
	buf = append(buf, codeHash[:]...)
	buf = append(buf, salt...)
	h := HashBytes(buf)
	var out Address
	copy(out[:], h[:20])
	return out
}
