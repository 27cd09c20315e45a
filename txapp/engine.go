package txapp

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"chainkernel/gas"
	"chainkernel/pkg/apperror"
	"chainkernel/query"
	"chainkernel/registry"
	"chainkernel/sdkcontext"
	"chainkernel/store"
	"chainkernel/vm"
	"chainkernel/wire"
)

// coreNamespace scopes the registry's own bookkeeping (codes, contracts,
// config, clients, app config) within a Shared store, kept disjoint from
// registry.ContractNamespace's "contract/" prefix used for guest state.
var coreNamespace = []byte("core/")

// CoreNamespace returns a copy of the raw storage prefix the registry's own
// bookkeeping lives under, for callers outside this package (the block
// driver in package app) that need to seed or inspect chain config before
// any Engine exists.
func CoreNamespace() []byte {
	out := make([]byte, len(coreNamespace))
	copy(out, coreNamespace)
	return out
}

// ChainConfig loads the chain's current configuration from shared. Exposed
// for callers like app's cron scheduler that need it outside of a
// lifecycle phase's own coreRO lookup.
func (e *Engine) ChainConfig(shared store.Shared) (wire.ChainConfig, error) {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	return e.Reg.Config(coreRO)
}

// Engine wires the registry, a Vm implementation, the crypto Api and the
// kernel's nesting/gas limits into the five-phase lifecycle and the
// submessage dispatcher. One Engine is shared across every block; every
// method takes the store.Shared to run against as an argument.
type Engine struct {
	ChainID      string
	Reg          *registry.Registry
	VM           vm.Vm
	Api          sdkcontext.Api
	QueryDepth   uint32
	MessageDepth uint32
	Logger       *logrus.Logger
}

// New constructs an Engine. logger may be nil, in which case logrus's
// standard logger is used.
func New(chainID string, reg *registry.Registry, vmImpl vm.Vm, api sdkcontext.Api, queryDepth, messageDepth uint32, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		ChainID:      chainID,
		Reg:          reg,
		VM:           vmImpl,
		Api:          api,
		QueryDepth:   queryDepth,
		MessageDepth: messageDepth,
		Logger:       logger,
	}
}

// engineSmartQuerier adapts Engine.querySmart to query.SmartQuerier,
// carrying the store view, block and remaining recursion depth a nested
// WasmSmart call must thread through. This is distinct from
// vm.Sandbox.EnterQuery/ExitQuery, which only bounds how deeply a single
// guest instance's query_chain calls may nest — cross-contract recursion
// depth is this engine's own concern.
type engineSmartQuerier struct {
	e      *Engine
	shared store.Shared
	block  wire.BlockInfo
	gas    *gas.Tracker
	depth  uint32
}

func (q *engineSmartQuerier) QuerySmart(contract wire.Address, msg json.RawMessage) (json.RawMessage, error) {
	return q.e.querySmart(q.shared, q.block, contract, q.gas, q.depth, msg)
}

// QuerierFor builds a read-only Querier bound to shared at block, for the
// /app query path and for a contract's QueryCtx.Querier. gasTracker is
// charged for any nested WasmSmart calls the querier serves; pass
// gas.NewTracker(nil) for queries issued outside of a transaction.
func (e *Engine) QuerierFor(shared store.Shared, block wire.BlockInfo, gasTracker *gas.Tracker) *query.Querier {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	smart := &engineSmartQuerier{e: e, shared: shared, block: block, gas: gasTracker, depth: e.QueryDepth}
	return query.New(e.Reg, coreRO, shared, smart)
}

func (e *Engine) querySmart(shared store.Shared, block wire.BlockInfo, contract wire.Address, gasTracker *gas.Tracker, depth uint32, msg json.RawMessage) (json.RawMessage, error) {
	if depth == 0 {
		return nil, apperror.StdError("query: smart-query recursion depth exceeded")
	}
	coreRO := store.NewProvider(shared, coreNamespace, false)
	info, code, err := e.loadContract(coreRO, contract)
	if err != nil {
		return nil, err
	}
	querier := query.New(e.Reg, coreRO, shared, &engineSmartQuerier{e: e, shared: shared, block: block, gas: gasTracker, depth: depth - 1})
	contractStorage := store.NewProvider(shared, registry.ContractNamespace(contract), false)
	inst, err := e.VM.BuildInstance(code, info.CodeHash, contractStorage, false, querier, depth-1, gasTracker)
	if err != nil {
		return nil, apperror.WrapStdError(err, "query: build instance")
	}
	ctx := sdkcontext.QueryCtx{Base: sdkcontext.NewBase(e.ChainID, block, contract, querier, e.Api, shared, false)}
	ctxBytes, err := vm.EncodeGuestContext(vm.FromQueryCtx(ctx))
	if err != nil {
		return nil, apperror.WrapStdError(err, "query: encode context")
	}
	out, err := inst.Call1Out1("query", ctxBytes, msg)
	if err != nil {
		return nil, classifyVMErr(err)
	}
	return out, nil
}

// classifyVMErr turns a raw VM-call failure into the apperror.Kind the rest
// of the lifecycle reasons about: gas exhaustion is its own catchable-only-
// by-ReplyOn::Error/Always class, anything else from the sandbox is a trap.
func classifyVMErr(err error) *apperror.Error {
	if errors.Is(err, gas.ErrOutOfGas) {
		return apperror.OutOfGas()
	}
	return apperror.VmTrap(err)
}

func (e *Engine) loadContract(coreRO store.Provider, contract wire.Address) (registry.ContractInfo, []byte, error) {
	info, ok, err := e.Reg.ContractInfoOf(coreRO, contract)
	if err != nil {
		return registry.ContractInfo{}, nil, apperror.WrapStdError(err, "txapp: load contract info")
	}
	if !ok {
		return registry.ContractInfo{}, nil, apperror.StdError("txapp: contract %s not found", contract)
	}
	code, ok, err := e.Reg.Code(coreRO, info.CodeHash)
	if err != nil {
		return registry.ContractInfo{}, nil, apperror.WrapStdError(err, "txapp: load code")
	}
	if !ok {
		return registry.ContractInfo{}, nil, apperror.StdError("txapp: code %s not found", wire.HashString(info.CodeHash))
	}
	return info, code, nil
}

func decodeResponse(raw []byte) (Response, error) {
	var r Response
	if len(raw) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: decode response")
	}
	return r, nil
}

// Bootstrap uploads code and instantiates a new contract instance
// directly, bypassing withhold_fee/authenticate entirely. This is the path
// app's genesis construction uses to deploy the bank, taxman and any other
// core contracts a fresh chain's config names before a fee-paying
// transaction could possibly run one — the first transaction's own
// withhold_fee phase needs cfg.Taxman to already be a live, instantiated
// contract.
func (e *Engine) Bootstrap(shared store.Shared, block wire.BlockInfo, sender wire.Address, code, salt []byte, funds wire.Coins, label string, msg json.RawMessage) (wire.Address, error) {
	coreRW := store.NewProvider(shared, coreNamespace, true)
	codeHash, err := e.Reg.Upload(coreRW, code)
	if err != nil {
		return wire.Address{}, apperror.WrapStdError(err, "txapp: bootstrap upload")
	}
	addr, err := e.Reg.Instantiate(coreRW, sender, codeHash, salt, nil, label)
	if err != nil {
		return wire.Address{}, apperror.WrapStdError(err, "txapp: bootstrap instantiate")
	}
	gasTracker := gas.NewTracker(nil)
	if _, err := e.callInstantiate(shared, block, sender, addr, codeHash, code, funds, gasTracker, msg); err != nil {
		return wire.Address{}, err
	}
	return addr, nil
}

// callInstantiate invokes contract's instantiate entry point under an
// InstantiateCtx.
func (e *Engine) callInstantiate(shared store.Shared, block wire.BlockInfo, sender, contract wire.Address, codeHash wire.Hash, code []byte, funds wire.Coins, gasTracker *gas.Tracker, msg json.RawMessage) (Response, error) {
	contractStorage := store.NewProvider(shared, registry.ContractNamespace(contract), true)
	querier := e.QuerierFor(shared, block, gasTracker)
	inst, err := e.VM.BuildInstance(code, codeHash, contractStorage, true, querier, e.QueryDepth, gasTracker)
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: build instance")
	}
	ctx := sdkcontext.InstantiateCtx{Base: sdkcontext.NewBase(e.ChainID, block, contract, querier, e.Api, shared, true), Sender: sender, Funds: funds}
	ctxBytes, err := vm.EncodeGuestContext(vm.FromInstantiateCtx(ctx))
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: encode context")
	}
	out, err := inst.Call1Out1("instantiate", ctxBytes, msg)
	if err != nil {
		return Response{}, classifyVMErr(err)
	}
	return decodeResponse(out)
}

// callExecute invokes contract's execute entry point under a MutableCtx.
func (e *Engine) callExecute(shared store.Shared, block wire.BlockInfo, sender, contract wire.Address, funds wire.Coins, gasTracker *gas.Tracker, msg json.RawMessage) (Response, error) {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	info, code, err := e.loadContract(coreRO, contract)
	if err != nil {
		return Response{}, err
	}
	contractStorage := store.NewProvider(shared, registry.ContractNamespace(contract), true)
	querier := e.QuerierFor(shared, block, gasTracker)
	inst, err := e.VM.BuildInstance(code, info.CodeHash, contractStorage, true, querier, e.QueryDepth, gasTracker)
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: build instance")
	}
	ctx := sdkcontext.MutableCtx{Base: sdkcontext.NewBase(e.ChainID, block, contract, querier, e.Api, shared, true), Sender: sender, Funds: funds}
	ctxBytes, err := vm.EncodeGuestContext(vm.FromMutableCtx(ctx))
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: encode context")
	}
	out, err := inst.Call1Out1("execute", ctxBytes, msg)
	if err != nil {
		return Response{}, classifyVMErr(err)
	}
	return decodeResponse(out)
}

// callSudo invokes contract's entryPoint under a SudoCtx with a single
// parameter — reply, migrate (run with the new code before the registry
// rebinds the contract), and the bank's execute for kernel fund moves all
// share this shape. cron_execute takes no parameter and goes through
// callCron.
func (e *Engine) callSudo(shared store.Shared, block wire.BlockInfo, contract wire.Address, codeHash wire.Hash, code []byte, gasTracker *gas.Tracker, entryPoint string, param json.RawMessage) (Response, error) {
	contractStorage := store.NewProvider(shared, registry.ContractNamespace(contract), true)
	querier := e.QuerierFor(shared, block, gasTracker)
	inst, err := e.VM.BuildInstance(code, codeHash, contractStorage, true, querier, e.QueryDepth, gasTracker)
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: build instance")
	}
	ctx := sdkcontext.SudoCtx{Base: sdkcontext.NewBase(e.ChainID, block, contract, querier, e.Api, shared, true)}
	ctxBytes, err := vm.EncodeGuestContext(vm.FromSudoCtx(ctx))
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: encode context")
	}
	out, err := inst.Call1Out1(entryPoint, ctxBytes, param)
	if err != nil {
		return Response{}, classifyVMErr(err)
	}
	return decodeResponse(out)
}

// callReply invokes contract's reply entry point with the settled
// submessage result.
func (e *Engine) callReply(shared store.Shared, block wire.BlockInfo, contract wire.Address, gasTracker *gas.Tracker, msg ReplyMsg) (Response, error) {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	info, code, err := e.loadContract(coreRO, contract)
	if err != nil {
		return Response{}, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: encode reply")
	}
	return e.callSudo(shared, block, contract, info.CodeHash, code, gasTracker, "reply", payload)
}

// callCron invokes contract's cron_execute entry point under a SudoCtx.
func (e *Engine) callCron(shared store.Shared, block wire.BlockInfo, contract wire.Address, gasTracker *gas.Tracker) (Response, error) {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	info, code, err := e.loadContract(coreRO, contract)
	if err != nil {
		return Response{}, err
	}
	contractStorage := store.NewProvider(shared, registry.ContractNamespace(contract), true)
	querier := e.QuerierFor(shared, block, gasTracker)
	inst, err := e.VM.BuildInstance(code, info.CodeHash, contractStorage, true, querier, e.QueryDepth, gasTracker)
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: build instance")
	}
	ctx := sdkcontext.SudoCtx{Base: sdkcontext.NewBase(e.ChainID, block, contract, querier, e.Api, shared, true)}
	ctxBytes, err := vm.EncodeGuestContext(vm.FromSudoCtx(ctx))
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: encode context")
	}
	out, err := inst.Call0Out1("cron_execute", ctxBytes)
	if err != nil {
		return Response{}, classifyVMErr(err)
	}
	return decodeResponse(out)
}

// callAuth invokes one of authenticate/backrun/withhold_fee under an
// AuthCtx with a single tx parameter.
func (e *Engine) callAuth(shared store.Shared, block wire.BlockInfo, contract wire.Address, mode sdkcontext.AuthMode, gasTracker *gas.Tracker, entryPoint string, tx json.RawMessage) (Response, error) {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	info, code, err := e.loadContract(coreRO, contract)
	if err != nil {
		return Response{}, err
	}
	contractStorage := store.NewProvider(shared, registry.ContractNamespace(contract), true)
	querier := e.QuerierFor(shared, block, gasTracker)
	inst, err := e.VM.BuildInstance(code, info.CodeHash, contractStorage, true, querier, e.QueryDepth, gasTracker)
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: build instance")
	}
	ctx := sdkcontext.AuthCtx{Base: sdkcontext.NewBase(e.ChainID, block, contract, querier, e.Api, shared, true), Mode: mode}
	ctxBytes, err := vm.EncodeGuestContext(vm.FromAuthCtx(ctx))
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: encode context")
	}
	out, err := inst.Call1Out1(entryPoint, ctxBytes, tx)
	if err != nil {
		return Response{}, classifyVMErr(err)
	}
	return decodeResponse(out)
}

// callFinalizeFee invokes the taxman's finalize_fee entry point under an
// AuthCtx with both the tx and its outcome-so-far.
func (e *Engine) callFinalizeFee(shared store.Shared, block wire.BlockInfo, contract wire.Address, mode sdkcontext.AuthMode, gasTracker *gas.Tracker, tx, outcome json.RawMessage) (Response, error) {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	info, code, err := e.loadContract(coreRO, contract)
	if err != nil {
		return Response{}, err
	}
	contractStorage := store.NewProvider(shared, registry.ContractNamespace(contract), true)
	querier := e.QuerierFor(shared, block, gasTracker)
	inst, err := e.VM.BuildInstance(code, info.CodeHash, contractStorage, true, querier, e.QueryDepth, gasTracker)
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: build instance")
	}
	ctx := sdkcontext.AuthCtx{Base: sdkcontext.NewBase(e.ChainID, block, contract, querier, e.Api, shared, true), Mode: mode}
	ctxBytes, err := vm.EncodeGuestContext(vm.FromAuthCtx(ctx))
	if err != nil {
		return Response{}, apperror.WrapStdError(err, "txapp: encode context")
	}
	out, err := inst.Call2Out1("finalize_fee", ctxBytes, tx, outcome)
	if err != nil {
		return Response{}, classifyVMErr(err)
	}
	return decodeResponse(out)
}

// moveFunds routes coins from->to through the bank contract's
// force_transfer execute handler, per spec.md §4.7's atomic funds-then-call
// sequencing. The kernel never maintains its own ledger; every balance
// change flows through the configured bank contract.
func (e *Engine) moveFunds(shared store.Shared, block wire.BlockInfo, from, to wire.Address, coins wire.Coins, gasTracker *gas.Tracker) error {
	if len(coins) == 0 {
		return nil
	}
	coreRO := store.NewProvider(shared, coreNamespace, false)
	cfg, err := e.Reg.Config(coreRO)
	if err != nil {
		return apperror.WrapStdError(err, "txapp: load chain config")
	}
	req := registry.BankExecute{ForceTransfer: &registry.BankForceTransferExecute{From: from, To: to, Coins: coins}}
	msg, err := json.Marshal(req)
	if err != nil {
		return apperror.WrapStdError(err, "txapp: encode force_transfer")
	}
	info, code, err := e.loadContract(coreRO, cfg.Bank)
	if err != nil {
		return err
	}
	_, err = e.callSudo(shared, block, cfg.Bank, info.CodeHash, code, gasTracker, "execute", msg)
	return err
}
