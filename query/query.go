// Package query implements the kernel's read-only Querier of spec.md
// §4.5: a tagged union over chain config, app config, balances, supplies,
// codes, contract infos, a raw Wasm storage slot, and a delegated smart
// query. It is constructed with state_mutable=false always, since every
// store.Provider it touches is built with stateMutable=false by its
// caller (sdkcontext, app).
package query

import (
	"encoding/json"
	"fmt"

	"chainkernel/collections"
	"chainkernel/registry"
	"chainkernel/store"
	"chainkernel/wire"
)

// defaultPageLimit and maxPageLimit bound every paged query, so a guest or
// RPC client cannot force an unbounded scan.
const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// SmartQuerier invokes a contract's query entry point. The concrete
// implementation lives in txapp/vm, wired in at construction — query
// itself never imports vm, breaking what would otherwise be a query↔vm
// import cycle (query's WasmSmart needs the VM; the VM's query_chain host
// import needs the Querier).
type SmartQuerier interface {
	QuerySmart(contract wire.Address, msg json.RawMessage) (json.RawMessage, error)
}

// Querier answers spec.md §4.5's Query tagged union.
type Querier struct {
	reg      *registry.Registry
	regStore store.Provider
	shared   store.Shared
	smart    SmartQuerier
}

// New constructs a Querier. regStore must be a read-only (stateMutable
// false) provider scoped to the registry's own namespace; shared is the
// root store handle used to build per-contract providers for WasmRaw.
func New(reg *registry.Registry, regStore store.Provider, shared store.Shared, smart SmartQuerier) *Querier {
	return &Querier{reg: reg, regStore: regStore, shared: shared, smart: smart}
}

// Answer dispatches q and returns its JSON-encoded result.
func (q *Querier) Answer(query wire.Query) (json.RawMessage, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	switch query.Kind {
	case wire.QueryChainConfig:
		cfg, err := q.reg.Config(q.regStore)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cfg)

	case wire.QueryAppConfig:
		val, ok, err := q.reg.AppConfigGet(q.regStore, query.AppConfig.Key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("query: app config key %q not found", query.AppConfig.Key)
		}
		return json.Marshal(val)

	case wire.QueryAppConfigRange:
		entries, err := q.reg.AppConfigRange(q.regStore, stringStartAfter(query.AppConfigRange.Page), nil, store.Ascending)
		if err != nil {
			return nil, err
		}
		return json.Marshal(limitKV(entries, query.AppConfigRange.Page.Limit))

	case wire.QueryBalance:
		resp, err := q.queryBankSmart(registry.BankQuery{Balance: &registry.BankBalanceQuery{
			Address: query.Balance.Address,
			Denom:   query.Balance.Denom,
		}})
		if err != nil {
			return nil, err
		}
		return resp, nil

	case wire.QueryBalances:
		return nil, fmt.Errorf("query: balances is answered by the bank contract's own query ABI, not the core querier")

	case wire.QuerySupply:
		resp, err := q.queryBankSmart(registry.BankQuery{Supply: &registry.BankSupplyQuery{Denom: query.Supply.Denom}})
		if err != nil {
			return nil, err
		}
		return resp, nil

	case wire.QuerySupplies:
		return nil, fmt.Errorf("query: supplies is answered by the bank contract's own query ABI, not the core querier")

	case wire.QueryCode:
		code, ok, err := q.reg.Code(q.regStore, query.Code.CodeHash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("query: code hash %s not found", wire.HashString(query.Code.CodeHash))
		}
		return json.Marshal(code)

	case wire.QueryCodes:
		after, err := hashStartAfter(query.Codes.Page)
		if err != nil {
			return nil, err
		}
		hashes, err := q.reg.Codes(q.regStore, after, nil, store.Ascending)
		if err != nil {
			return nil, err
		}
		return json.Marshal(limitSlice(hashes, query.Codes.Page.Limit))

	case wire.QueryContractInfo:
		info, ok, err := q.reg.ContractInfoOf(q.regStore, query.ContractInfo.Address)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("query: contract %s not found", query.ContractInfo.Address)
		}
		return json.Marshal(info)

	case wire.QueryContractInfos:
		after, err := addressStartAfter(query.ContractInfos.Page)
		if err != nil {
			return nil, err
		}
		infos, err := q.reg.ContractInfos(q.regStore, after, nil, store.Ascending)
		if err != nil {
			return nil, err
		}
		return json.Marshal(limitKV(infos, query.ContractInfos.Page.Limit))

	case wire.QueryWasmRaw:
		provider := store.NewProvider(q.shared, registry.ContractNamespace(query.WasmRaw.Contract), false)
		val, ok, err := provider.Get(query.WasmRaw.Key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return json.Marshal(nil)
		}
		return json.Marshal(val)

	case wire.QueryWasmSmart:
		return q.smart.QuerySmart(query.WasmSmart.Contract, query.WasmSmart.Msg)

	case wire.QueryMulti:
		out := make([]json.RawMessage, 0, len(query.Multi.Queries))
		for _, sub := range query.Multi.Queries {
			res, err := q.Answer(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
		return json.Marshal(out)

	default:
		return nil, fmt.Errorf("query: unknown query kind %q", query.Kind)
	}
}

func (q *Querier) queryBankSmart(req registry.BankQuery) (json.RawMessage, error) {
	cfg, err := q.reg.Config(q.regStore)
	if err != nil {
		return nil, err
	}
	msg, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return q.smart.QuerySmart(cfg.Bank, msg)
}

// stringStartAfter, hashStartAfter and addressStartAfter decode a page's
// raw StartAfter cursor into the key type of the collection being paged,
// as a strictly-greater-than (Exclusive) lower bound.

func stringStartAfter(page wire.PageRequest) *collections.Bound[string] {
	if len(page.StartAfter) == 0 {
		return nil
	}
	return collections.Exc(string(page.StartAfter))
}

func hashStartAfter(page wire.PageRequest) (*collections.Bound[wire.Hash], error) {
	if len(page.StartAfter) == 0 {
		return nil, nil
	}
	if len(page.StartAfter) != 32 {
		return nil, fmt.Errorf("query: start_after must be 32 bytes for a Hash-keyed page, got %d", len(page.StartAfter))
	}
	var h wire.Hash
	copy(h[:], page.StartAfter)
	return collections.Exc(h), nil
}

func addressStartAfter(page wire.PageRequest) (*collections.Bound[wire.Address], error) {
	if len(page.StartAfter) == 0 {
		return nil, nil
	}
	if len(page.StartAfter) != 20 {
		return nil, fmt.Errorf("query: start_after must be 20 bytes for an Address-keyed page, got %d", len(page.StartAfter))
	}
	var a wire.Address
	copy(a[:], page.StartAfter)
	return collections.Exc(a), nil
}

func limitSlice[T any](items []T, limit uint32) []T {
	n := clampLimit(limit)
	if len(items) > n {
		return items[:n]
	}
	return items
}

func limitKV[K any, V any](items []collections.KV[K, V], limit uint32) []collections.KV[K, V] {
	n := clampLimit(limit)
	if len(items) > n {
		return items[:n]
	}
	return items
}

func clampLimit(limit uint32) int {
	if limit == 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return int(limit)
}
