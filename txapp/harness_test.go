package txapp

import (
	"encoding/json"
	"testing"

	"chainkernel/gas"
	"chainkernel/internal/fixtures"
	"chainkernel/num"
	"chainkernel/registry"
	"chainkernel/store"
	"chainkernel/vm"
	"chainkernel/wire"
)

const testDenom = wire.Denom("uchain")

// harness bundles everything a lifecycle test needs: a committed store, a
// live Engine backed by NativeVM fixtures, and the addresses of the bank,
// taxman, account (tx.Sender) and counter contracts it wired up.
type harness struct {
	t         *testing.T
	engine    *Engine
	committed store.Shared
	reg       *registry.Registry
	native    *vm.NativeVM
	deployer  wire.Address
	bank      wire.Address
	taxman    wire.Address
	collector wire.Address
	account   wire.Address
	counter   wire.Address
	block     wire.BlockInfo
}

func newHarness(t *testing.T, pricePerGas uint64, accountRequestsBackrun, accountFailsBackrun bool) *harness {
	t.Helper()
	shared := store.NewShared(store.NewMemStore())
	reg := registry.New()
	native := vm.NewNativeVM()
	coreRW := store.NewProvider(shared, coreNamespace, true)

	deployer := wire.Address{0xD0}
	collector := wire.Address{0xC0}

	bankHash, err := reg.Upload(coreRW, []byte("bank-code-v1"))
	if err != nil {
		t.Fatalf("upload bank: %v", err)
	}
	native.Register(bankHash, fixtures.Bank())
	bankAddr, err := reg.Instantiate(coreRW, deployer, bankHash, []byte("bank"), nil, "bank")
	if err != nil {
		t.Fatalf("instantiate bank: %v", err)
	}

	taxmanHash, err := reg.Upload(coreRW, []byte("taxman-code-v1"))
	if err != nil {
		t.Fatalf("upload taxman: %v", err)
	}
	native.Register(taxmanHash, fixtures.Taxman())
	taxmanAddr, err := reg.Instantiate(coreRW, deployer, taxmanHash, []byte("taxman"), nil, "taxman")
	if err != nil {
		t.Fatalf("instantiate taxman: %v", err)
	}

	accountHash, err := reg.Upload(coreRW, []byte("account-code-v1"))
	if err != nil {
		t.Fatalf("upload account: %v", err)
	}
	native.Register(accountHash, fixtures.Account(accountRequestsBackrun, accountFailsBackrun))
	accountAddr, err := reg.Instantiate(coreRW, deployer, accountHash, []byte("account"), nil, "account")
	if err != nil {
		t.Fatalf("instantiate account: %v", err)
	}

	counterHash, err := reg.Upload(coreRW, []byte("counter-code-v1"))
	if err != nil {
		t.Fatalf("upload counter: %v", err)
	}
	native.Register(counterHash, fixtures.Counter())
	counterAddr, err := reg.Instantiate(coreRW, deployer, counterHash, []byte("counter"), nil, "counter")
	if err != nil {
		t.Fatalf("instantiate counter: %v", err)
	}

	cfg := wire.ChainConfig{
		Owner:       deployer,
		Bank:        bankAddr,
		Taxman:      taxmanAddr,
		Cronjobs:    map[wire.Address]uint64{},
		Upload:      wire.Permissions{Kind: wire.PermEverybody},
		Instantiate: wire.Permissions{Kind: wire.PermEverybody},
	}
	if err := reg.SetConfig(coreRW, cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}

	e := New("test-chain", reg, native, vm.NewCryptoApi(), 8, 8, nil)
	block := wire.BlockInfo{Height: 1, Time: 1000}

	h := &harness{
		t: t, engine: e, committed: shared, reg: reg, native: native,
		deployer: deployer, bank: bankAddr, taxman: taxmanAddr,
		collector: collector, account: accountAddr, counter: counterAddr, block: block,
	}

	h.instantiate(bankAddr, struct{}{})
	h.instantiate(taxmanAddr, fixtures.TaxmanConfig{
		Denom:       testDenom,
		PricePerGas: num.NewUint128FromUint64(pricePerGas),
		Collector:   collector,
		Bank:        bankAddr,
	})
	h.instantiate(counterAddr, struct {
		Initial int64 `json:"initial"`
	}{Initial: 0})

	return h
}

// instantiate invokes contract's instantiate entry point with msg JSON
// encoded, under the deployer's identity.
func (h *harness) instantiate(contract wire.Address, msg any) {
	h.t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		h.t.Fatalf("marshal instantiate msg: %v", err)
	}
	coreRO := store.NewProvider(h.committed, coreNamespace, false)
	info, code, err := h.engine.loadContract(coreRO, contract)
	if err != nil {
		h.t.Fatalf("load contract %s: %v", contract, err)
	}
	if _, err := h.engine.callInstantiate(h.committed, h.block, h.deployer, contract, info.CodeHash, code, nil, gas.NewTracker(nil), raw); err != nil {
		h.t.Fatalf("instantiate %s: %v", contract, err)
	}
}

// mint credits amount of testDenom to addr via the bank's Mint execute
// handler, run under a SudoCtx exactly as the kernel itself would.
func (h *harness) mint(addr wire.Address, amount uint64) {
	h.t.Helper()
	req := registry.BankExecute{Mint: &registry.BankMintExecute{
		To:    addr,
		Coins: wire.Coins{{Denom: testDenom, Amount: num.NewUint128FromUint64(amount)}},
	}}
	raw, err := json.Marshal(req)
	if err != nil {
		h.t.Fatalf("marshal mint: %v", err)
	}
	coreRO := store.NewProvider(h.committed, coreNamespace, false)
	info, code, err := h.engine.loadContract(coreRO, h.bank)
	if err != nil {
		h.t.Fatalf("load bank: %v", err)
	}
	if _, err := h.engine.callSudo(h.committed, h.block, h.bank, info.CodeHash, code, gas.NewTracker(nil), "execute", raw); err != nil {
		h.t.Fatalf("mint: %v", err)
	}
}

// balance reads addr's testDenom balance straight from the bank fixture's
// query handler, returning the decimal string json.Number carries it as.
func (h *harness) balance(addr wire.Address) string {
	h.t.Helper()
	q := h.engine.QuerierFor(h.committed, h.block, gas.NewTracker(nil))
	raw, err := q.Answer(wire.Query{Kind: wire.QueryBalance, Balance: &wire.BalanceQuery{Address: addr, Denom: testDenom}})
	if err != nil {
		h.t.Fatalf("query balance: %v", err)
	}
	var resp registry.BankBalanceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		h.t.Fatalf("unmarshal balance: %v", err)
	}
	return string(resp.Amount)
}

// counterCount reads the counter contract's current count via its
// query entry point.
func (h *harness) counterCount() int64 {
	h.t.Helper()
	q := h.engine.QuerierFor(h.committed, h.block, gas.NewTracker(nil))
	raw, err := q.Answer(wire.Query{Kind: wire.QueryWasmSmart, WasmSmart: &wire.WasmSmartQuery{
		Contract: h.counter,
		Msg:      json.RawMessage(`{"count":{}}`),
	}})
	if err != nil {
		h.t.Fatalf("query count: %v", err)
	}
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		h.t.Fatalf("unmarshal count: %v", err)
	}
	return resp.Count
}

func incrementMsg(by int64) json.RawMessage {
	raw, _ := json.Marshal(struct {
		Increment struct {
			By int64 `json:"by"`
		} `json:"increment"`
	}{Increment: struct {
		By int64 `json:"by"`
	}{By: by}})
	return raw
}
