package app

import (
	"encoding/json"
	"testing"

	"chainkernel/internal/fixtures"
	"chainkernel/jmt"
	"chainkernel/num"
	"chainkernel/registry"
	"chainkernel/store"
	"chainkernel/txapp"
	"chainkernel/vm"
	"chainkernel/wire"
)

const testDenom = wire.Denom("uchain")

// newTestApp wires a fresh App over two independent in-memory stores (one
// physical, one for the JMT's own bookkeeping), bootstraps the
// bank/taxman/counter fixtures directly (the way a real chain's genesis
// deploys its core contracts before any fee-paying transaction can run),
// and runs InitGenesis.
func newTestApp(t *testing.T, pricePerGas uint64) (a *App, bank, taxman, counter wire.Address) {
	t.Helper()
	physical := store.NewMemStore()
	treeBacking := store.NewMemStore()
	reg := registry.New()
	native := vm.NewNativeVM()

	a = New("test-chain", physical, treeBacking, reg, native, vm.NewCryptoApi(), 8, 8, nil)

	deployer := wire.Address{0xD0}
	collector := wire.Address{0xC0}
	block := wire.BlockInfo{Height: 0, Time: 1000}

	bankCode := []byte("bank-code-v1")
	native.Register(wire.HashBytes(bankCode), fixtures.Bank())
	taxmanCode := []byte("taxman-code-v1")
	native.Register(wire.HashBytes(taxmanCode), fixtures.Taxman())
	counterCode := []byte("counter-code-v1")
	native.Register(wire.HashBytes(counterCode), fixtures.Counter())

	var bankAddr, taxmanAddr, counterAddr wire.Address
	seed := func(shared store.Shared) (wire.ChainConfig, error) {
		var err error
		bankAddr, err = a.Engine.Bootstrap(shared, block, deployer, bankCode, []byte("bank"), nil, "bank", mustJSON(t, struct{}{}))
		if err != nil {
			return wire.ChainConfig{}, err
		}
		taxmanAddr, err = a.Engine.Bootstrap(shared, block, deployer, taxmanCode, []byte("taxman"), nil, "taxman", mustJSON(t, fixtures.TaxmanConfig{
			Denom:       testDenom,
			PricePerGas: num.NewUint128FromUint64(pricePerGas),
			Collector:   collector,
			Bank:        bankAddr,
		}))
		if err != nil {
			return wire.ChainConfig{}, err
		}
		counterAddr, err = a.Engine.Bootstrap(shared, block, deployer, counterCode, []byte("counter"), nil, "counter", mustJSON(t, struct {
			Initial int64 `json:"initial"`
		}{Initial: 0}))
		if err != nil {
			return wire.ChainConfig{}, err
		}
		return wire.ChainConfig{
			Owner:       deployer,
			Bank:        bankAddr,
			Taxman:      taxmanAddr,
			Cronjobs:    map[wire.Address]uint64{},
			Upload:      wire.Permissions{Kind: wire.PermEverybody},
			Instantiate: wire.Permissions{Kind: wire.PermEverybody},
		}, nil
	}

	if _, err := a.InitGenesis(1000, seed); err != nil {
		t.Fatalf("init genesis: %v", err)
	}

	return a, bankAddr, taxmanAddr, counterAddr
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestFinalizeBlockCommitsIncrementingStateRoot(t *testing.T) {
	a, _, _, counter := newTestApp(t, 1)

	genesisRoot := a.Tree.RootHash()

	tx := wire.Tx{
		Sender:   wire.Address{0xD0},
		GasLimit: 1_000_000,
		Msgs: []wire.Message{{
			Kind: wire.KindExecute,
			Execute: &wire.ExecuteMsg{
				Contract: counter,
				Msg:      json.RawMessage(`{"increment":{"by":3}}`),
			},
		}},
	}

	block := wire.BlockInfo{Height: 1, Time: 2000}
	outcome, err := a.FinalizeBlock(block, []wire.Tx{tx})
	if err != nil {
		t.Fatalf("finalize block: %v", err)
	}
	if len(outcome.TxOutcomes) != 1 || !outcome.TxOutcomes[0].Result.Ok {
		t.Fatalf("expected tx to succeed, got %+v", outcome.TxOutcomes)
	}
	if outcome.NewStateRoot == genesisRoot {
		t.Fatalf("expected state root to change after a successful tx")
	}
	if a.LastBlock != block {
		t.Fatalf("expected LastBlock to be updated to %+v, got %+v", block, a.LastBlock)
	}

	resp := a.Query(block, wire.Query{
		Kind: wire.QueryWasmSmart,
		WasmSmart: &wire.WasmSmartQuery{
			Contract: counter,
			Msg:      json.RawMessage(`{"count":{}}`),
		},
	})
	if !resp.Ok {
		t.Fatalf("query count: %s", resp.Err)
	}
	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(resp.Result, &countResp); err != nil {
		t.Fatalf("unmarshal count: %v", err)
	}
	if countResp.Count != 3 {
		t.Fatalf("expected count 3, got %d", countResp.Count)
	}
}

func TestStoreQueryProvesNonMembership(t *testing.T) {
	a, _, _, _ := newTestApp(t, 1)

	proved, err := a.StoreQuery(wire.StoreRequest{Key: []byte("nonexistent-key"), WithProof: true})
	if err != nil {
		t.Fatalf("store query with proof: %v", err)
	}
	if proved.Value != nil {
		t.Fatalf("expected absent key to have nil value")
	}
	var proof jmt.Proof
	if err := json.Unmarshal(proved.Proof, &proof); err != nil {
		t.Fatalf("decode proof: %v", err)
	}
	ok, err := jmt.Verify(a.Tree.RootHash(), []byte("nonexistent-key"), nil, proof)
	if err != nil {
		t.Fatalf("verify proof: %v", err)
	}
	if !ok {
		t.Fatalf("expected non-membership proof to verify")
	}
}

func TestSimulateNeverCommits(t *testing.T) {
	a, _, _, counter := newTestApp(t, 1)
	rootBefore := a.Tree.RootHash()

	unsigned := wire.UnsignedTx{
		Sender:   wire.Address{0xD0},
		GasLimit: 1_000_000,
		Msgs: []wire.Message{{
			Kind: wire.KindExecute,
			Execute: &wire.ExecuteMsg{
				Contract: counter,
				Msg:      json.RawMessage(`{"increment":{"by":7}}`),
			},
		}},
	}

	resp, err := a.Simulate(unsigned)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !resp.Outcome.Result.Ok {
		t.Fatalf("expected simulated tx to succeed, got %+v", resp.Outcome.Result)
	}
	if a.Tree.RootHash() != rootBefore {
		t.Fatalf("simulate must never mutate the committed state root")
	}
}

func TestCronJobRunsOnlyWhenIntervalDividesHeight(t *testing.T) {
	a, _, _, counter := newTestApp(t, 1)

	cfg, err := a.Engine.ChainConfig(a.committedShared())
	if err != nil {
		t.Fatalf("load chain config: %v", err)
	}
	cfg.Cronjobs = map[wire.Address]uint64{counter: 2}

	blockBatched := store.NewBatched(a.Physical)
	blockShared := store.NewShared(blockBatched)
	coreRW := store.NewProvider(blockShared, txapp.CoreNamespace(), true)
	if err := a.Reg.SetConfig(coreRW, cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}
	if _, err := a.commit(blockBatched); err != nil {
		t.Fatalf("commit config update: %v", err)
	}

	outcome, err := a.FinalizeBlock(wire.BlockInfo{Height: 2, Time: 3000}, nil)
	if err != nil {
		t.Fatalf("finalize block: %v", err)
	}
	if len(outcome.CronOutcomes) != 1 || outcome.CronOutcomes[0].Contract != counter || !outcome.CronOutcomes[0].Result.Ok {
		t.Fatalf("expected counter's cron job to run successfully at height 2, got %+v", outcome.CronOutcomes)
	}

	resp := a.Query(wire.BlockInfo{Height: 2, Time: 3000}, wire.Query{
		Kind:      wire.QueryWasmSmart,
		WasmSmart: &wire.WasmSmartQuery{Contract: counter, Msg: json.RawMessage(`{"count":{}}`)},
	})
	if !resp.Ok {
		t.Fatalf("query count: %s", resp.Err)
	}
	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(resp.Result, &countResp); err != nil {
		t.Fatalf("unmarshal count: %v", err)
	}
	if countResp.Count != 1 {
		t.Fatalf("expected cron job to increment count to 1, got %d", countResp.Count)
	}

	outcome, err = a.FinalizeBlock(wire.BlockInfo{Height: 3, Time: 3100}, nil)
	if err != nil {
		t.Fatalf("finalize block: %v", err)
	}
	if len(outcome.CronOutcomes) != 0 {
		t.Fatalf("expected no cron jobs due at height 3, got %+v", outcome.CronOutcomes)
	}
}
