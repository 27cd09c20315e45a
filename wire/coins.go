package wire

import (
	"encoding/json"
	"fmt"

	"chainkernel/num"
)

// Coin is a single denom/amount pair. Amount serialises as a decimal
// string since integer JSON numbers are only safe up to 2^53.
type Coin struct {
	Denom  Denom       `json:"denom"`
	Amount num.Uint128 `json:"amount"`
}

// Coins is an ordered list of Coin with no duplicate denoms and no zero
// amounts, enforced on deserialisation per spec.md §6.
type Coins []Coin

// NewCoins validates coins and returns them as a Coins value.
func NewCoins(coins ...Coin) (Coins, error) {
	c := Coins(coins)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks for duplicate denoms and zero amounts.
func (c Coins) Validate() error {
	seen := make(map[Denom]struct{}, len(c))
	for _, coin := range c {
		if _, dup := seen[coin.Denom]; dup {
			return fmt.Errorf("wire: duplicate denom %q in Coins", coin.Denom)
		}
		seen[coin.Denom] = struct{}{}
		if coin.Amount.IsZero() {
			return fmt.Errorf("wire: zero amount for denom %q in Coins", coin.Denom)
		}
	}
	return nil
}

// AmountOf returns the amount of denom in c, or zero if absent.
func (c Coins) AmountOf(denom Denom) num.Uint128 {
	for _, coin := range c {
		if coin.Denom == denom {
			return coin.Amount
		}
	}
	return num.ZeroUint128()
}

// UnmarshalJSON parses the ordered-array wire form and validates it.
func (c *Coins) UnmarshalJSON(b []byte) error {
	var raw []Coin
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed := Coins(raw)
	if err := parsed.Validate(); err != nil {
		return err
	}
	*c = parsed
	return nil
}
