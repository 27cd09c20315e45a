// Package fixtures provides NativeVM-backed contract implementations used
// as test doubles for the kernel's end-to-end scenarios of spec.md §8: a
// bank contract implementing registry.BankQuery/BankExecute, a taxman
// implementing withhold_fee/finalize_fee, and a minimal counter contract
// exercising instantiate/execute/query and submessage replies. None of these are
// part of the kernel proper — a real deployment uploads compiled Wasm
// contracts through the same Upload/Instantiate path.
//
// Grounded on the teacher's core/account_and_balance_operations.go
// AccountManager (balance map, checked transfer over a ledger), adapted
// from a single in-memory map protected by a mutex to collections.Map
// entries over a contract's own store.Provider.
package fixtures

import (
	"encoding/json"
	"fmt"

	"chainkernel/collections"
	"chainkernel/num"
	"chainkernel/registry"
	"chainkernel/vm"
	"chainkernel/wire"
)

type addrKey struct{}

func (addrKey) Encode(a wire.Address) []byte { return a[:] }
func (addrKey) Decode(raw []byte) (wire.Address, error) {
	var out wire.Address
	if len(raw) != 20 {
		return out, fmt.Errorf("fixtures: address key expects 20 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

type denomKey struct{}

func (denomKey) Encode(d wire.Denom) []byte { return []byte(d) }
func (denomKey) Decode(raw []byte) (wire.Denom, error) { return wire.Denom(raw), nil }

var (
	bankBalances = collections.NewJSONMap[collections.Pair[wire.Address, wire.Denom], num.Uint128]("balances", collections.PairKey[wire.Address, wire.Denom](addrKey{}, denomKey{}))
	bankSupply   = collections.NewJSONMap[wire.Denom, num.Uint128]("supply", denomKey{})
)

// Bank returns the NativeFactory for the bank contract fixture. Mint, Burn
// and ForceTransfer trust every caller — a real bank contract would gate
// them behind its own authorization scheme, but this fixture exists only
// to exercise txapp's fund-routing and the Balance/Supply query ABI.
func Bank() vm.NativeFactory {
	return func(env vm.NativeEnv) vm.NativeHandler {
		return func(entryPoint string, ctx vm.GuestContext, params ...[]byte) ([]byte, error) {
			switch entryPoint {
			case "instantiate":
				return json.Marshal(struct{}{})
			case "execute":
				return bankExecute(env, params[0])
			case "query":
				return bankQuery(env, params[0])
			default:
				return nil, fmt.Errorf("fixtures: bank has no entry point %q", entryPoint)
			}
		}
	}
}

func bankExecute(env vm.NativeEnv, raw []byte) ([]byte, error) {
	var req registry.BankExecute
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	switch {
	case req.Mint != nil:
		if err := creditMany(env, req.Mint.To, req.Mint.Coins, true); err != nil {
			return nil, err
		}
	case req.Burn != nil:
		if err := debitMany(env, req.Burn.From, req.Burn.Coins, true); err != nil {
			return nil, err
		}
	case req.ForceTransfer != nil:
		if err := debitMany(env, req.ForceTransfer.From, req.ForceTransfer.Coins, false); err != nil {
			return nil, err
		}
		if err := creditMany(env, req.ForceTransfer.To, req.ForceTransfer.Coins, false); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("fixtures: bank execute must populate exactly one variant")
	}
	return json.Marshal(struct{}{})
}

func bankQuery(env vm.NativeEnv, raw []byte) ([]byte, error) {
	var req registry.BankQuery
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	switch {
	case req.Balance != nil:
		amt, err := balanceOf(env, req.Balance.Address, req.Balance.Denom)
		if err != nil {
			return nil, err
		}
		return json.Marshal(registry.BankBalanceResponse{Amount: json.Number(amt.String())})
	case req.Supply != nil:
		amt, _, err := bankSupply.May(env.Storage, req.Supply.Denom)
		if err != nil {
			return nil, err
		}
		return json.Marshal(registry.BankSupplyResponse{Amount: json.Number(amt.String())})
	default:
		return nil, fmt.Errorf("fixtures: bank query must populate exactly one variant")
	}
}

func balanceOf(env vm.NativeEnv, addr wire.Address, denom wire.Denom) (num.Uint128, error) {
	amt, ok, err := bankBalances.May(env.Storage, collections.Pair[wire.Address, wire.Denom]{First: addr, Second: denom})
	if err != nil {
		return num.Uint128{}, err
	}
	if !ok {
		return num.ZeroUint128(), nil
	}
	return amt, nil
}

// creditMany adds coins to addr's balances, bumping the corresponding
// supply entries when adjustSupply is true (Mint); ForceTransfer moves
// existing supply between accounts and never touches it.
func creditMany(env vm.NativeEnv, addr wire.Address, coins wire.Coins, adjustSupply bool) error {
	for _, c := range coins {
		key := collections.Pair[wire.Address, wire.Denom]{First: addr, Second: c.Denom}
		cur, _, err := bankBalances.May(env.Storage, key)
		if err != nil {
			return err
		}
		next, err := cur.CheckedAdd(c.Amount)
		if err != nil {
			return fmt.Errorf("fixtures: bank credit overflow: %w", err)
		}
		if err := bankBalances.Save(env.Storage, key, next); err != nil {
			return err
		}
		if adjustSupply {
			supply, _, err := bankSupply.May(env.Storage, c.Denom)
			if err != nil {
				return err
			}
			nextSupply, err := supply.CheckedAdd(c.Amount)
			if err != nil {
				return fmt.Errorf("fixtures: bank supply overflow: %w", err)
			}
			if err := bankSupply.Save(env.Storage, c.Denom, nextSupply); err != nil {
				return err
			}
		}
	}
	return nil
}

func debitMany(env vm.NativeEnv, addr wire.Address, coins wire.Coins, adjustSupply bool) error {
	for _, c := range coins {
		key := collections.Pair[wire.Address, wire.Denom]{First: addr, Second: c.Denom}
		cur, _, err := bankBalances.May(env.Storage, key)
		if err != nil {
			return err
		}
		next, err := cur.CheckedSub(c.Amount)
		if err != nil {
			return fmt.Errorf("fixtures: insufficient balance for %s of %s: %w", addr, c.Denom, err)
		}
		if err := bankBalances.Save(env.Storage, key, next); err != nil {
			return err
		}
		if adjustSupply {
			supply, _, err := bankSupply.May(env.Storage, c.Denom)
			if err != nil {
				return err
			}
			nextSupply, err := supply.CheckedSub(c.Amount)
			if err != nil {
				return fmt.Errorf("fixtures: bank supply underflow: %w", err)
			}
			if err := bankSupply.Save(env.Storage, c.Denom, nextSupply); err != nil {
				return err
			}
		}
	}
	return nil
}
