package query

import (
	"encoding/json"
	"fmt"
	"testing"

	"chainkernel/registry"
	"chainkernel/store"
	"chainkernel/wire"
)

type fakeSmartQuerier struct {
	balances map[wire.Address]map[wire.Denom]uint64
}

func (f *fakeSmartQuerier) QuerySmart(contract wire.Address, msg json.RawMessage) (json.RawMessage, error) {
	var req registry.BankQuery
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil, err
	}
	switch {
	case req.Balance != nil:
		amt := f.balances[req.Balance.Address][req.Balance.Denom]
		return json.Marshal(registry.BankBalanceResponse{Amount: json.Number(fmt.Sprint(amt))})
	case req.Supply != nil:
		return json.Marshal(registry.BankSupplyResponse{Amount: "0"})
	default:
		return nil, fmt.Errorf("unsupported bank query")
	}
}

func newQuerier(t *testing.T) (*Querier, store.Shared, *registry.Registry) {
	t.Helper()
	shared := store.NewShared(store.NewMemStore())
	regStore := store.NewProvider(shared, []byte("registry/"), false)
	regStoreRW := store.NewProvider(shared, []byte("registry/"), true)
	reg := registry.New()
	bank := wire.Address{0x01}
	if err := reg.SetConfig(regStoreRW, wire.ChainConfig{
		Owner:       wire.Address{0x02},
		Bank:        bank,
		Taxman:      wire.Address{0x03},
		Cronjobs:    map[wire.Address]uint64{},
		Upload:      wire.Permissions{Kind: wire.PermEverybody},
		Instantiate: wire.Permissions{Kind: wire.PermEverybody},
	}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	smart := &fakeSmartQuerier{balances: map[wire.Address]map[wire.Denom]uint64{
		{0x09}: {"uatom": 42},
	}}
	return New(reg, regStore, shared, smart), shared, reg
}

func TestAnswerChainConfig(t *testing.T) {
	q, _, _ := newQuerier(t)
	raw, err := q.Answer(wire.Query{Kind: wire.QueryChainConfig})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	var cfg wire.ChainConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Bank != (wire.Address{0x01}) {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestAnswerBalanceDelegatesToBank(t *testing.T) {
	q, _, _ := newQuerier(t)
	raw, err := q.Answer(wire.Query{
		Kind:    wire.QueryBalance,
		Balance: &wire.BalanceQuery{Address: wire.Address{0x09}, Denom: "uatom"},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	var resp registry.BankBalanceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Amount != "42" {
		t.Fatalf("Amount = %v, want 42", resp.Amount)
	}
}

func TestAnswerWasmRaw(t *testing.T) {
	q, shared, _ := newQuerier(t)
	contract := wire.Address{0x0a}
	provider := store.NewProvider(shared, registry.ContractNamespace(contract), true)
	if err := provider.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, err := q.Answer(wire.Query{
		Kind:    wire.QueryWasmRaw,
		WasmRaw: &wire.WasmRawQuery{Contract: contract, Key: []byte("k")},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	var val []byte
	if err := json.Unmarshal(raw, &val); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(val) != "v" {
		t.Fatalf("WasmRaw = %q, want v", val)
	}
}

func TestAnswerMulti(t *testing.T) {
	q, _, _ := newQuerier(t)
	raw, err := q.Answer(wire.Query{
		Kind: wire.QueryMulti,
		Multi: &wire.MultiQuery{Queries: []wire.Query{
			{Kind: wire.QueryChainConfig},
			{Kind: wire.QueryChainConfig},
		}},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	var results []json.RawMessage
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestAnswerRejectsMalformedQuery(t *testing.T) {
	q, _, _ := newQuerier(t)
	if _, err := q.Answer(wire.Query{Kind: wire.QueryBalance}); err == nil {
		t.Fatal("expected error for Balance query with no populated variant")
	}
}
