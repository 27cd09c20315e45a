package vm

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	dcrec "github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/wasmerio/wasmer-go/wasmer"
	"lukechampine.com/blake3"

	"chainkernel/gas"
	"chainkernel/store"
	"chainkernel/wire"
)

// WasmVm wraps github.com/wasmerio/wasmer-go, grounded directly on the
// teacher's core/virtual_machine.go HeavyVM/registerHost: the same
// wasmer.NewStore/NewModule/NewInstance/NewImportObject/NewFunction
// plumbing, the same "env" import namespace, the same pattern of reading
// and writing guest linear memory through instance.Exports.GetMemory.
// Generalized from the teacher's four-function toy ABI
// (host_read/host_write/host_log/host_consume_gas) to spec.md §4.4's full
// host import set.
type WasmVm struct {
	engine *wasmer.Engine
}

// NewWasmVm constructs a WasmVm with a fresh wasmer engine.
func NewWasmVm() *WasmVm {
	return &WasmVm{engine: wasmer.NewEngine()}
}

// hostEnv is the per-instance state every host import closes over,
// equivalent to the teacher's hostCtx.
type hostEnv struct {
	mem          *wasmer.Memory
	instance     *wasmer.Instance
	storage      store.Provider
	stateMutable bool
	querier      Querier
	sandbox      *Sandbox
	gas          *gas.Tracker
	costs        *gas.CostTable

	mu        sync.Mutex
	iterators map[int32]store.Iterator
	nextIter  int32
}

func (h *hostEnv) readRegion(ptr int32) ([]byte, error) {
	data := h.mem.Data()
	if int(ptr) < 0 || int(ptr)+regionSize > len(data) {
		return nil, fmt.Errorf("vm: region pointer %d out of bounds", ptr)
	}
	region, ok := DecodeRegion(data[ptr : ptr+regionSize])
	if !ok {
		return nil, errors.New("vm: malformed region header")
	}
	start, end := int(region.Offset), int(region.Offset+region.Length)
	if start < 0 || end > len(data) || start > end {
		return nil, fmt.Errorf("vm: region body out of bounds")
	}
	out := make([]byte, region.Length)
	copy(out, data[start:end])
	return out, nil
}

// writeRegion allocates a region in the guest via its exported `allocate`
// function and copies value into it, returning the region's pointer.
func (h *hostEnv) writeRegion(instance *wasmer.Instance, value []byte) (int32, error) {
	allocate, err := instance.Exports.GetFunction("allocate")
	if err != nil {
		return 0, fmt.Errorf("vm: guest does not export allocate: %w", err)
	}
	regionPtrAny, err := allocate(int32(len(value)))
	if err != nil {
		return 0, err
	}
	regionPtr, ok := regionPtrAny.(int32)
	if !ok {
		return 0, errors.New("vm: allocate did not return an i32 region pointer")
	}
	data := h.mem.Data()
	region, ok := DecodeRegion(data[regionPtr : regionPtr+regionSize])
	if !ok {
		return 0, errors.New("vm: malformed region returned by allocate")
	}
	copy(data[region.Offset:], value)
	region.Length = uint32(len(value))
	copy(data[regionPtr:regionPtr+regionSize], EncodeRegion(region))
	return regionPtr, nil
}

func i32Func(store *wasmer.Store, argc int, fn func(args []wasmer.Value) ([]wasmer.Value, error)) *wasmer.Function {
	params := make([]wasmer.ValueKind, argc)
	for i := range params {
		params[i] = wasmer.I32
	}
	return wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(params...), wasmer.NewValueTypes(wasmer.I32)),
		fn,
	)
}

// registerHost converts the host's Go callbacks into wasmer imports under
// the "env" namespace, exactly as the teacher's registerHost does for its
// four-function ABI, generalized to the full import set of spec.md §4.4.
func registerHost(wstore *wasmer.Store, h *hostEnv) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	// charge reports whether op's cost fit inside the remaining gas budget;
	// callers that get false must fail their call with a -1 sentinel rather
	// than proceed.
	charge := func(op gas.HostImport) bool {
		return h.gas.Consume(h.costs.Cost(op)) == nil
	}

	dbRead := i32Func(wstore, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !charge(gas.CostDBRead) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		key, err := h.readRegion(args[0].I32())
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		val, ok, err := h.storage.Get(key)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if !ok {
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		}
		ptr, err := h.writeRegion(h.instance, val)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(ptr)}, nil
	})

	dbWrite := wasmer.NewFunction(
		wstore,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if !h.stateMutable {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			if !charge(gas.CostDBWrite) {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			key, err := h.readRegion(args[0].I32())
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			val, err := h.readRegion(args[1].I32())
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			if err := h.storage.Set(key, val); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	dbRemove := i32Func(wstore, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.stateMutable {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if !charge(gas.CostDBRemove) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		key, err := h.readRegion(args[0].I32())
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := h.storage.Delete(key); err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	dbScan := wasmer.NewFunction(
		wstore,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if !charge(gas.CostDBScanRecord) {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			var minKey, maxKey []byte
			if args[0].I32() != 0 {
				if k, err := h.readRegion(args[0].I32()); err == nil {
					minKey = k
				}
			}
			if args[1].I32() != 0 {
				if k, err := h.readRegion(args[1].I32()); err == nil {
					maxKey = k
				}
			}
			order := store.Ascending
			if args[2].I32() != 0 {
				order = store.Descending
			}
			var minBound, maxBound *store.Bound
			if minKey != nil {
				minBound = store.Inclusive(minKey)
			}
			if maxKey != nil {
				maxBound = store.Exclusive(maxKey)
			}
			it := h.storage.Scan(minBound, maxBound, order)
			h.mu.Lock()
			h.nextIter++
			id := h.nextIter
			h.iterators[id] = it
			h.mu.Unlock()
			return []wasmer.Value{wasmer.NewI32(id)}, nil
		},
	)

	debug := wasmer.NewFunction(
		wstore,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			return []wasmer.Value{}, nil
		},
	)

	dbNext := i32Func(wstore, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !charge(gas.CostDBScanRecord) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		h.mu.Lock()
		it, ok := h.iterators[args[0].I32()]
		h.mu.Unlock()
		if !ok {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if !it.Next() {
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		}
		rec := it.Record()
		pair := encodeKVPair(rec.Key, rec.Value)
		ptr, err := h.writeRegion(h.instance, pair)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(ptr)}, nil
	})

	queryChain := i32Func(wstore, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !charge(gas.CostInstruction) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		req, err := h.readRegion(args[0].I32())
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		var q wire.Query
		if err := json.Unmarshal(req, &q); err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := h.sandbox.EnterQuery(); err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		defer h.sandbox.ExitQuery()
		resp := wire.QueryResponse{}
		if result, qerr := h.querier.Answer(q); qerr != nil {
			resp.Err = qerr.Error()
		} else {
			resp.Ok = true
			resp.Result = result
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		ptr, err := h.writeRegion(h.instance, out)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(ptr)}, nil
	})

	api := cryptoApi{}

	hashFn := func(op gas.HostImport, hash func([]byte) [32]byte) *wasmer.Function {
		return i32Func(wstore, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
			if !charge(op) {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			data, err := h.readRegion(args[0].I32())
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			digest := hash(data)
			ptr, err := h.writeRegion(h.instance, digest[:])
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(ptr)}, nil
		})
	}

	verifyFn := func(verify func(msg, sig, pubkey []byte) bool) *wasmer.Function {
		return i32Func(wstore, 3, func(args []wasmer.Value) ([]wasmer.Value, error) {
			if !charge(gas.CostSigVerify) {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			msg, err1 := h.readRegion(args[0].I32())
			sig, err2 := h.readRegion(args[1].I32())
			pubkey, err3 := h.readRegion(args[2].I32())
			if err1 != nil || err2 != nil || err3 != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			// 0 = success, non-zero = verification failure, per spec.md §4.4.
			if verify(msg, sig, pubkey) {
				return []wasmer.Value{wasmer.NewI32(0)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(1)}, nil
		})
	}

	secp256k1PubkeyRecover := wasmer.NewFunction(
		wstore,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if !charge(gas.CostSigVerify) {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			hash, err1 := h.readRegion(args[0].I32())
			sig, err2 := h.readRegion(args[1].I32())
			if err1 != nil || err2 != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			pub, err := api.Secp256k1RecoverPubkey(hash, sig, byte(args[2].I32()))
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(0)}, nil
			}
			ptr, err := h.writeRegion(h.instance, pub)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(ptr)}, nil
		},
	)

	imports.Register("env", map[string]wasmer.IntoExtern{
		"db_read":                   dbRead,
		"db_write":                  dbWrite,
		"db_remove":                 dbRemove,
		"db_scan":                   dbScan,
		"db_next":                   dbNext,
		"debug":                     debug,
		"query_chain":               queryChain,
		"secp256k1_verify":          verifyFn(api.Secp256k1Verify),
		"secp256r1_verify":          verifyFn(api.Secp256r1Verify),
		"ed25519_verify":            verifyFn(api.Ed25519Verify),
		"secp256k1_pubkey_recover":  secp256k1PubkeyRecover,
		"keccak256":                 hashFn(gas.CostHashByte, func(d []byte) [32]byte { return api.Keccak256(d) }),
		"sha2_256":                  hashFn(gas.CostHashByte, func(d []byte) [32]byte { return api.Sha256(d) }),
		"blake3":                    hashFn(gas.CostHashByte, func(d []byte) [32]byte { return api.Blake3(d) }),
	})
	return imports
}

// encodeKVPair renders a (key, value) pair as two length-prefixed fields,
// each a little-endian u32 length followed by the bytes (wire's codec
// writes its lengths big-endian).
func encodeKVPair(key, value []byte) []byte {
	out := make([]byte, 0, 8+len(key)+len(value))
	out = appendU32LenPrefixed(out, key)
	out = appendU32LenPrefixed(out, value)
	return out
}

func appendU32LenPrefixed(out []byte, data []byte) []byte {
	var lenBuf [4]byte
	n := uint32(len(data))
	lenBuf[0] = byte(n)
	lenBuf[1] = byte(n >> 8)
	lenBuf[2] = byte(n >> 16)
	lenBuf[3] = byte(n >> 24)
	out = append(out, lenBuf[:]...)
	out = append(out, data...)
	return out
}

// BuildInstance compiles code and instantiates it with the full host
// import set; the returned Instance dispatches entry points to the guest's
// exported functions by name. No compiled .wasm fixture ships with this
// repo, so no test drives WasmVm end to end — see DESIGN.md.
func (v *WasmVm) BuildInstance(
	code []byte,
	codeHash wire.Hash,
	storage store.Provider,
	stateMutable bool,
	querier Querier,
	queryDepth uint32,
	gasTracker *gas.Tracker,
) (Instance, error) {
	wstore := wasmer.NewStore(v.engine)
	module, err := wasmer.NewModule(wstore, code)
	if err != nil {
		return nil, fmt.Errorf("vm: compile module for code hash %s: %w", wire.HashString(codeHash), err)
	}

	h := &hostEnv{
		storage:      storage,
		stateMutable: stateMutable,
		querier:      querier,
		sandbox:      NewSandbox(queryDepth),
		gas:          gasTracker,
		costs:        gas.DefaultCostTable(),
		iterators:    make(map[int32]store.Iterator),
	}
	imports := registerHost(wstore, h)

	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return nil, fmt.Errorf("vm: instantiate module for code hash %s: %w", wire.HashString(codeHash), err)
	}
	h.instance = instance

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, errors.New("vm: guest does not export linear memory")
	}
	h.mem = mem

	return &wasmInstance{instance: instance, env: h}, nil
}

type wasmInstance struct {
	instance *wasmer.Instance
	env      *hostEnv
}

func (i *wasmInstance) call(entryPoint string, args ...int32) ([]byte, error) {
	fn, err := i.instance.Exports.GetFunction(entryPoint)
	if err != nil {
		return nil, fmt.Errorf("vm: guest does not export %q: %w", entryPoint, err)
	}
	wargs := make([]interface{}, len(args))
	for idx, a := range args {
		wargs[idx] = a
	}
	out, err := fn(wargs...)
	if err != nil {
		return nil, err
	}
	ptr, ok := out.(int32)
	if !ok {
		return nil, fmt.Errorf("vm: %q did not return an i32 region pointer", entryPoint)
	}
	return i.env.readRegion(ptr)
}

func (i *wasmInstance) pushRegion(value []byte) (int32, error) {
	return i.env.writeRegion(i.instance, value)
}

func (i *wasmInstance) Call0Out1(entryPoint string, ctx []byte) ([]byte, error) {
	ctxPtr, err := i.pushRegion(ctx)
	if err != nil {
		return nil, err
	}
	return i.call(entryPoint, ctxPtr)
}

func (i *wasmInstance) Call1Out1(entryPoint string, ctx []byte, param []byte) ([]byte, error) {
	ctxPtr, err := i.pushRegion(ctx)
	if err != nil {
		return nil, err
	}
	paramPtr, err := i.pushRegion(param)
	if err != nil {
		return nil, err
	}
	return i.call(entryPoint, ctxPtr, paramPtr)
}

func (i *wasmInstance) Call2Out1(entryPoint string, ctx []byte, param1, param2 []byte) ([]byte, error) {
	ctxPtr, err := i.pushRegion(ctx)
	if err != nil {
		return nil, err
	}
	p1Ptr, err := i.pushRegion(param1)
	if err != nil {
		return nil, err
	}
	p2Ptr, err := i.pushRegion(param2)
	if err != nil {
		return nil, err
	}
	return i.call(entryPoint, ctxPtr, p1Ptr, p2Ptr)
}

// Secp256k1Verify, Secp256r1Verify, Ed25519Verify, Secp256k1RecoverPubkey,
// Keccak256, Sha256 and Blake3 implement sdkcontext.Api, used both as the
// backing of the WasmVm's crypto host imports and as the Api the txapp
// Engine places in every contract context.
type cryptoApi struct{}

// NewCryptoApi returns the shared sdkcontext.Api implementation.
func NewCryptoApi() *cryptoApi { return &cryptoApi{} }

func (cryptoApi) Secp256k1Verify(msgHash, sig, pubkey []byte) bool {
	if len(sig) != 64 {
		return false
	}
	pk, err := dcrec.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsa.Verify(pk.ToECDSA(), msgHash, r, s)
}

func (cryptoApi) Secp256r1Verify(msgHash, sig, pubkey []byte) bool {
	if len(sig) != 64 || len(pubkey) != 65 {
		return false
	}
	x := new(big.Int).SetBytes(pubkey[1:33])
	y := new(big.Int).SetBytes(pubkey[33:65])
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsa.Verify(pub, msgHash, r, s)
}

func (cryptoApi) Ed25519Verify(msg, sig, pubkey []byte) bool {
	if len(pubkey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubkey), msg, sig)
}

func (cryptoApi) Secp256k1RecoverPubkey(msgHash, sig []byte, recoveryID byte) ([]byte, error) {
	full := make([]byte, 65)
	copy(full, sig)
	full[64] = recoveryID
	pub, err := ethcrypto.SigToPub(msgHash, full)
	if err != nil {
		return nil, err
	}
	return ethcrypto.FromECDSAPub(pub), nil
}

func (cryptoApi) Keccak256(data []byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(data))
	return out
}

func (cryptoApi) Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func (cryptoApi) Blake3(data []byte) [32]byte {
	return blake3.Sum256(data)
}
