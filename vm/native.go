package vm

import (
	"fmt"
	"sync"

	"chainkernel/gas"
	"chainkernel/store"
	"chainkernel/wire"
)

// NativeEnv is the per-instance environment a NativeFactory closes over:
// everything a real guest would reach through host imports, already
// resolved to host-side Go values instead of guest memory regions.
type NativeEnv struct {
	Storage      store.Provider
	Querier      Querier
	Gas          *gas.Tracker
	StateMutable bool
	Sandbox      *Sandbox
}

// NativeHandler answers the three call shapes directly in terms of
// GuestContext and raw parameter bytes, skipping guest-memory regions
// entirely since there is no guest.
type NativeHandler func(entryPoint string, ctx GuestContext, params ...[]byte) ([]byte, error)

// NativeFactory builds a fresh NativeHandler bound to one instance's
// environment.
type NativeFactory func(env NativeEnv) NativeHandler

// NativeVM is a Vm implementation keyed by code hash to a registered Go
// closure instead of compiled byte code. It exists to exercise the
// transaction lifecycle, dispatcher and bank ABI end to end without a
// compiled Wasm binary; production deployments use WasmVm.
type NativeVM struct {
	mu        sync.RWMutex
	factories map[wire.Hash]NativeFactory
}

// NewNativeVM returns an empty NativeVM.
func NewNativeVM() *NativeVM {
	return &NativeVM{factories: make(map[wire.Hash]NativeFactory)}
}

// Register binds codeHash to factory. Re-registering the same hash
// replaces the previous binding, matching Upload's idempotent-overwrite
// semantics for identical code.
func (n *NativeVM) Register(codeHash wire.Hash, factory NativeFactory) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.factories[codeHash] = factory
}

// BuildInstance resolves codeHash to its registered factory. code itself
// is ignored — NativeVM contracts are identified purely by hash, with the
// actual "code" blob registry.Upload stores serving only as the value
// whose content hash derives that identity.
func (n *NativeVM) BuildInstance(
	code []byte,
	codeHash wire.Hash,
	storage store.Provider,
	stateMutable bool,
	querier Querier,
	queryDepth uint32,
	gasTracker *gas.Tracker,
) (Instance, error) {
	n.mu.RLock()
	factory, ok := n.factories[codeHash]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vm: no native handler registered for code hash %s", wire.HashString(codeHash))
	}
	env := NativeEnv{
		Storage:      storage,
		Querier:      querier,
		Gas:          gasTracker,
		StateMutable: stateMutable,
		Sandbox:      NewSandbox(queryDepth),
	}
	return &nativeInstance{handler: factory(env)}, nil
}

type nativeInstance struct {
	handler NativeHandler
}

func (i *nativeInstance) Call0Out1(entryPoint string, ctx []byte) ([]byte, error) {
	gctx, err := DecodeGuestContext(ctx)
	if err != nil {
		return nil, err
	}
	return i.handler(entryPoint, gctx)
}

func (i *nativeInstance) Call1Out1(entryPoint string, ctx []byte, param []byte) ([]byte, error) {
	gctx, err := DecodeGuestContext(ctx)
	if err != nil {
		return nil, err
	}
	return i.handler(entryPoint, gctx, param)
}

func (i *nativeInstance) Call2Out1(entryPoint string, ctx []byte, param1, param2 []byte) ([]byte, error) {
	gctx, err := DecodeGuestContext(ctx)
	if err != nil {
		return nil, err
	}
	return i.handler(entryPoint, gctx, param1, param2)
}
