package num

import (
	"fmt"
	"math/big"
)

// Decimal is a fixed-point decimal with a compile-time scale of 18 digits,
// matching the precision the corpus's AMM/lending fixtures assume for price
// and rate math.
type Decimal struct {
	atoms big.Int // value * 10^Scale
}

// Scale is the number of fractional decimal digits represented.
const Scale = 18

var scaleFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(Scale), nil)

// NewDecimalFromInt64 builds a Decimal representing the integer v.
func NewDecimalFromInt64(v int64) Decimal {
	var d Decimal
	d.atoms.Mul(big.NewInt(v), scaleFactor)
	return d
}

// CheckedAdd returns d+e.
func (d Decimal) CheckedAdd(e Decimal) (Decimal, error) {
	var out Decimal
	out.atoms.Add(&d.atoms, &e.atoms)
	return out, nil
}

// CheckedSub returns d-e.
func (d Decimal) CheckedSub(e Decimal) (Decimal, error) {
	var out Decimal
	out.atoms.Sub(&d.atoms, &e.atoms)
	return out, nil
}

// CheckedMul returns d*e, rescaling the doubled fractional precision back
// down to Scale.
func (d Decimal) CheckedMul(e Decimal) (Decimal, error) {
	var out Decimal
	out.atoms.Mul(&d.atoms, &e.atoms)
	out.atoms.Quo(&out.atoms, scaleFactor)
	return out, nil
}

// CheckedDiv returns d/e at Scale precision. An actual division: this type
// exists specifically to avoid the reference bug where Uint256's
// checked_div was implemented by calling checked_mul.
func (d Decimal) CheckedDiv(e Decimal) (Decimal, error) {
	if e.atoms.Sign() == 0 {
		return Decimal{}, ErrDivByZero
	}
	var out Decimal
	num := new(big.Int).Mul(&d.atoms, scaleFactor)
	out.atoms.Quo(num, &e.atoms)
	return out, nil
}

// String renders d as "<integer>.<fraction>" with trailing zeros trimmed.
func (d Decimal) String() string {
	neg := d.atoms.Sign() < 0
	abs := new(big.Int).Abs(&d.atoms)
	whole, frac := new(big.Int).QuoRem(abs, scaleFactor, new(big.Int))
	fracStr := fmt.Sprintf("%0*s", Scale, frac.String())
	for len(fracStr) > 0 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}
	sign := ""
	if neg {
		sign = "-"
	}
	if fracStr == "" {
		return fmt.Sprintf("%s%s", sign, whole.String())
	}
	return fmt.Sprintf("%s%s.%s", sign, whole.String(), fracStr)
}
