// Package num implements the chain's fixed-precision integer and decimal
// types. All arithmetic is checked: overflow and division by zero return a
// typed error instead of wrapping or panicking.
package num

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned by any checked operation that would overflow the
// receiver's bit width.
var ErrOverflow = errors.New("num: overflow")

// ErrDivByZero is returned by division and modulo when the divisor is zero.
var ErrDivByZero = errors.New("num: division by zero")

// ErrNegativeSqrt names a square root of a negative number. The types here
// are unsigned, IntegerSqrt returns no error, and no operation in this
// package returns it.
var ErrNegativeSqrt = errors.New("num: square root of negative number")

// Uint128 is a 128-bit unsigned integer backed by a big.Int, clamped to
// [0, 2^128).
type Uint128 struct{ i big.Int }

var uint128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// NewUint128FromUint64 constructs a Uint128 from a uint64.
func NewUint128FromUint64(v uint64) Uint128 {
	var u Uint128
	u.i.SetUint64(v)
	return u
}

// ZeroUint128 is the additive identity.
func ZeroUint128() Uint128 { return Uint128{} }

func (u Uint128) fits() bool {
	return u.i.Sign() >= 0 && u.i.Cmp(uint128Max) <= 0
}

// CheckedAdd returns u+v, or ErrOverflow if the result exceeds 2^128-1.
func (u Uint128) CheckedAdd(v Uint128) (Uint128, error) {
	var out Uint128
	out.i.Add(&u.i, &v.i)
	if !out.fits() {
		return Uint128{}, ErrOverflow
	}
	return out, nil
}

// CheckedSub returns u-v, or ErrOverflow if v > u.
func (u Uint128) CheckedSub(v Uint128) (Uint128, error) {
	var out Uint128
	out.i.Sub(&u.i, &v.i)
	if !out.fits() {
		return Uint128{}, ErrOverflow
	}
	return out, nil
}

// CheckedMul returns u*v, or ErrOverflow on overflow.
func (u Uint128) CheckedMul(v Uint128) (Uint128, error) {
	var out Uint128
	out.i.Mul(&u.i, &v.i)
	if !out.fits() {
		return Uint128{}, ErrOverflow
	}
	return out, nil
}

// CheckedDiv returns floor(u/v). Division, not multiplication: the reference
// implementation this type is modelled on has a bug here that routes through
// checked_mul; this one actually divides.
func (u Uint128) CheckedDiv(v Uint128) (Uint128, error) {
	if v.i.Sign() == 0 {
		return Uint128{}, ErrDivByZero
	}
	var out Uint128
	out.i.Div(&u.i, &v.i)
	return out, nil
}

// CheckedMod returns u%v.
func (u Uint128) CheckedMod(v Uint128) (Uint128, error) {
	if v.i.Sign() == 0 {
		return Uint128{}, ErrDivByZero
	}
	var out Uint128
	out.i.Mod(&u.i, &v.i)
	return out, nil
}

// Cmp compares u and v per big.Int.Cmp semantics.
func (u Uint128) Cmp(v Uint128) int { return u.i.Cmp(&v.i) }

// IsZero reports whether u is zero.
func (u Uint128) IsZero() bool { return u.i.Sign() == 0 }

// IntegerSqrt returns floor(sqrt(u)). Unlike the reference implementation
// (which leaves this unimplemented), the result is computed with
// big.Int.Sqrt.
func (u Uint128) IntegerSqrt() Uint128 {
	var out Uint128
	out.i.Sqrt(&u.i)
	return out
}

// String renders the decimal representation.
func (u Uint128) String() string { return u.i.String() }

// MarshalJSON renders u as a JSON string, matching the wire format's
// decimal-string convention for amounts that may exceed 2^53.
func (u Uint128) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", u.i.String())), nil
}

// UnmarshalJSON parses a JSON decimal string into u.
func (u *Uint128) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSONString(b)
	if err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("num: invalid Uint128 literal %q", s)
	}
	u.i.Set(v)
	if !u.fits() {
		return ErrOverflow
	}
	return nil
}

// Uint256 wraps github.com/holiman/uint256's fixed-width representation,
// the canonical 256-bit integer type used across the corpus for coin
// amounts and hash-sized arithmetic.
type Uint256 struct{ u uint256.Int }

// NewUint256FromUint64 constructs a Uint256 from a uint64.
func NewUint256FromUint64(v uint64) Uint256 {
	var out Uint256
	out.u.SetUint64(v)
	return out
}

// CheckedAdd returns u+v, or ErrOverflow on wraparound.
func (u Uint256) CheckedAdd(v Uint256) (Uint256, error) {
	var out Uint256
	overflow := out.u.AddOverflow(&u.u, &v.u)
	if overflow {
		return Uint256{}, ErrOverflow
	}
	return out, nil
}

// CheckedSub returns u-v, or ErrOverflow if v > u.
func (u Uint256) CheckedSub(v Uint256) (Uint256, error) {
	var out Uint256
	underflow := out.u.SubOverflow(&u.u, &v.u)
	if underflow {
		return Uint256{}, ErrOverflow
	}
	return out, nil
}

// CheckedMul returns u*v, or ErrOverflow on overflow.
func (u Uint256) CheckedMul(v Uint256) (Uint256, error) {
	var out Uint256
	overflow := out.u.MulOverflow(&u.u, &v.u)
	if overflow {
		return Uint256{}, ErrOverflow
	}
	return out, nil
}

// CheckedDiv returns floor(u/v) — an actual division, never routed through
// multiplication.
func (u Uint256) CheckedDiv(v Uint256) (Uint256, error) {
	if v.u.IsZero() {
		return Uint256{}, ErrDivByZero
	}
	var out Uint256
	out.u.Div(&u.u, &v.u)
	return out, nil
}

// CheckedMulDivCeil computes ceil(a*b/c) without intermediate overflow,
// using a 512-bit product. This is the corrected form of the reference
// implementation's checked_multiply_ratio_ceil, which took the remainder
// modulo the floor result instead of modulo the denominator.
func (u Uint256) CheckedMulDivCeil(b, c Uint256) (Uint256, error) {
	if c.u.IsZero() {
		return Uint256{}, ErrDivByZero
	}
	// uint256 has no 512-bit primitive for a*b, so the wide multiply and
	// divide runs through math/big and the result is re-validated to fit.
	ai := u.u.ToBig()
	bi := b.u.ToBig()
	ci := c.u.ToBig()
	prod := new(big.Int).Mul(ai, bi)
	q, r := new(big.Int).QuoRem(prod, ci, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	var out Uint256
	overflow := out.u.SetFromBig(q)
	if overflow {
		return Uint256{}, ErrOverflow
	}
	return out, nil
}

// IntegerSqrt returns floor(sqrt(u)), implemented (the reference todo!()
// left it unimplemented).
func (u Uint256) IntegerSqrt() Uint256 {
	var out Uint256
	out.u.Sqrt(&u.u)
	return out
}

// Cmp compares u and v.
func (u Uint256) Cmp(v Uint256) int { return u.u.Cmp(&v.u) }

// IsZero reports whether u is zero.
func (u Uint256) IsZero() bool { return u.u.IsZero() }

// String renders the decimal representation.
func (u Uint256) String() string { return u.u.Dec() }

// MarshalJSON renders u as a JSON decimal string.
func (u Uint256) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", u.u.Dec())), nil
}

// UnmarshalJSON parses a JSON decimal string into u.
func (u *Uint256) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSONString(b)
	if err != nil {
		return err
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return fmt.Errorf("num: invalid Uint256 literal %q: %w", s, err)
	}
	u.u = *v
	return nil
}

func unquoteJSONString(b []byte) (string, error) {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return "", fmt.Errorf("num: expected JSON string, got %s", b)
	}
	return string(b[1 : len(b)-1]), nil
}
