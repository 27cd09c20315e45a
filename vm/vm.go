// Package vm implements the kernel's VM abstraction of spec.md §4.4: a
// single Vm.BuildInstance operation producing an Instance with three call
// shapes, all parameters and returns crossing the sandbox as length-
// prefixed byte regions. WasmVm wraps github.com/wasmerio/wasmer-go,
// grounded on the teacher's core/virtual_machine.go HeavyVM/registerHost.
// NativeVM is a Go-closure-backed implementation used to exercise the
// transaction lifecycle and the bank contract ABI without a compiled Wasm
// binary.
package vm

import (
	"encoding/json"

	"chainkernel/gas"
	"chainkernel/store"
	"chainkernel/wire"
)

// Querier is the minimal surface a VM's query_chain host import needs.
// query.Querier satisfies this structurally; vm never imports package
// query, which would otherwise close an import cycle (query's WasmSmart
// variant needs a Vm to invoke the contract's query entry point).
type Querier interface {
	Answer(q wire.Query) (json.RawMessage, error)
}

// Instance is a built, ready-to-call contract instance.
type Instance interface {
	// Call0Out1 invokes the guest export named entryPoint with only ctx.
	Call0Out1(entryPoint string, ctx []byte) ([]byte, error)
	// Call1Out1 invokes entryPoint with ctx and one additional parameter.
	Call1Out1(entryPoint string, ctx []byte, param []byte) ([]byte, error)
	// Call2Out1 invokes entryPoint with ctx and two additional parameters.
	Call2Out1(entryPoint string, ctx []byte, param1, param2 []byte) ([]byte, error)
}

// Vm builds a contract Instance bound to one block of byte code, storage
// namespace, and gas budget.
type Vm interface {
	BuildInstance(
		code []byte,
		codeHash wire.Hash,
		storage store.Provider,
		stateMutable bool,
		querier Querier,
		queryDepth uint32,
		gasTracker *gas.Tracker,
	) (Instance, error)
}
