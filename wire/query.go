package wire

import (
	"encoding/json"
	"fmt"
)

// QueryKind tags which variant of Query is populated.
type QueryKind string

const (
	QueryChainConfig    QueryKind = "chain_config"
	QueryAppConfig      QueryKind = "app_config"
	QueryAppConfigRange QueryKind = "app_config_range"
	QueryBalance        QueryKind = "balance"
	QueryBalances       QueryKind = "balances"
	QuerySupply         QueryKind = "supply"
	QuerySupplies       QueryKind = "supplies"
	QueryCode           QueryKind = "code"
	QueryCodes          QueryKind = "codes"
	QueryContractInfo   QueryKind = "contract_info"
	QueryContractInfos  QueryKind = "contract_infos"
	QueryWasmRaw        QueryKind = "wasm_raw"
	QueryWasmSmart      QueryKind = "wasm_smart"
	QueryMulti          QueryKind = "multi"
)

// PageRequest paginates a ranged query with an optional start-after key and
// a bounded limit.
type PageRequest struct {
	StartAfter []byte `json:"start_after,omitempty"`
	Limit      uint32 `json:"limit,omitempty"`
}

// AppConfigQuery requests a single app-level config entry keyed by name.
type AppConfigQuery struct {
	Key string `json:"key"`
}

// AppConfigRangeQuery requests a paged range of app-level config entries.
type AppConfigRangeQuery struct {
	Page PageRequest `json:"page"`
}

// BalanceQuery requests the balance of one denom held by an address.
type BalanceQuery struct {
	Address Address `json:"address"`
	Denom   Denom   `json:"denom"`
}

// BalancesQuery requests every balance held by an address, paged.
type BalancesQuery struct {
	Address Address     `json:"address"`
	Page    PageRequest `json:"page"`
}

// SupplyQuery requests the total supply of one denom.
type SupplyQuery struct {
	Denom Denom `json:"denom"`
}

// SuppliesQuery requests every denom's total supply, paged.
type SuppliesQuery struct {
	Page PageRequest `json:"page"`
}

// CodeQuery requests the stored byte code for a code hash.
type CodeQuery struct {
	CodeHash Hash `json:"code_hash"`
}

// CodesQuery requests every uploaded code hash, paged.
type CodesQuery struct {
	Page PageRequest `json:"page"`
}

// ContractInfoQuery requests registry metadata for one contract address.
type ContractInfoQuery struct {
	Address Address `json:"address"`
}

// ContractInfosQuery requests registry metadata for every contract, paged.
type ContractInfosQuery struct {
	Page PageRequest `json:"page"`
}

// WasmRawQuery reads a single raw key out of a contract's own storage
// namespace, bypassing the contract's query entry point entirely.
type WasmRawQuery struct {
	Contract Address `json:"contract"`
	Key      []byte  `json:"key"`
}

// WasmSmartQuery invokes a contract's query entry point with an
// application-defined payload.
type WasmSmartQuery struct {
	Contract Address         `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
}

// MultiQuery runs every sub-query and returns their results in order.
type MultiQuery struct {
	Queries []Query `json:"queries"`
}

// Query is the read-only request tagged union of spec.md §4.5: exactly one
// variant field is populated, selected by Kind.
type Query struct {
	Kind QueryKind `json:"kind"`

	AppConfig      *AppConfigQuery      `json:"app_config,omitempty"`
	AppConfigRange *AppConfigRangeQuery `json:"app_config_range,omitempty"`
	Balance        *BalanceQuery        `json:"balance,omitempty"`
	Balances       *BalancesQuery       `json:"balances,omitempty"`
	Supply         *SupplyQuery         `json:"supply,omitempty"`
	Supplies       *SuppliesQuery       `json:"supplies,omitempty"`
	Code           *CodeQuery           `json:"code,omitempty"`
	Codes          *CodesQuery          `json:"codes,omitempty"`
	ContractInfo   *ContractInfoQuery   `json:"contract_info,omitempty"`
	ContractInfos  *ContractInfosQuery  `json:"contract_infos,omitempty"`
	WasmRaw        *WasmRawQuery        `json:"wasm_raw,omitempty"`
	WasmSmart      *WasmSmartQuery      `json:"wasm_smart,omitempty"`
	Multi          *MultiQuery          `json:"multi,omitempty"`
}

// Validate checks that exactly one variant is populated and matches Kind,
// except ChainConfig which carries no payload.
func (q Query) Validate() error {
	if q.Kind == QueryChainConfig {
		return nil
	}
	count := 0
	kindOK := false
	check := func(kind QueryKind, present bool) {
		if present {
			count++
			if kind == q.Kind {
				kindOK = true
			}
		}
	}
	check(QueryAppConfig, q.AppConfig != nil)
	check(QueryAppConfigRange, q.AppConfigRange != nil)
	check(QueryBalance, q.Balance != nil)
	check(QueryBalances, q.Balances != nil)
	check(QuerySupply, q.Supply != nil)
	check(QuerySupplies, q.Supplies != nil)
	check(QueryCode, q.Code != nil)
	check(QueryCodes, q.Codes != nil)
	check(QueryContractInfo, q.ContractInfo != nil)
	check(QueryContractInfos, q.ContractInfos != nil)
	check(QueryWasmRaw, q.WasmRaw != nil)
	check(QueryWasmSmart, q.WasmSmart != nil)
	check(QueryMulti, q.Multi != nil)
	if count != 1 {
		return fmt.Errorf("wire: query must populate exactly one variant, got %d", count)
	}
	if !kindOK {
		return fmt.Errorf("wire: query kind %q does not match its populated variant", q.Kind)
	}
	return nil
}
