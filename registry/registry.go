// Package registry is the kernel's address, code and configuration
// bookkeeping layer of spec.md §4.7: uploaded byte code keyed by content
// hash, per-contract metadata (code hash, admin, label), the chain's
// mutable configuration, and light-client metadata records. It is
// deliberately thin — every method takes the store.Provider to operate
// over as an argument rather than holding one itself, mirroring
// collections.Map/Item and letting txapp run each phase in its own
// sub-cache.
//
// Grounded on the teacher's core/contracts.go ContractRegistry (Deploy,
// DeriveContractAddress, content-hash code storage) and
// core/access_control.go's AccessController (role/permission bookkeeping
// over a ledger), generalized from a creator‖code Keccak256 derivation and
// a singleton in-memory registry to spec.md's H(deployer‖code_hash‖salt)
// derivation and collections-backed persistent storage.
package registry

import (
	"fmt"

	"chainkernel/collections"
	"chainkernel/store"
	"chainkernel/wire"
)

// ContractInfo is the registry record persisted for every instantiated
// contract.
type ContractInfo struct {
	CodeHash wire.Hash     `json:"code_hash"`
	Admin    *wire.Address `json:"admin,omitempty"`
	Label    string        `json:"label"`
}

type addressKey struct{}

func (addressKey) Encode(a wire.Address) []byte { return a[:] }

func (addressKey) Decode(raw []byte) (wire.Address, error) {
	var out wire.Address
	if len(raw) != 20 {
		return out, fmt.Errorf("registry: address key expects 20 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

type hashKey struct{}

func (hashKey) Encode(h wire.Hash) []byte { return h[:] }

func (hashKey) Decode(raw []byte) (wire.Hash, error) {
	var out wire.Hash
	if len(raw) != 32 {
		return out, fmt.Errorf("registry: hash key expects 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// rawBytesCodec stores a []byte value verbatim, with no marshalling.
type rawBytesCodec struct{}

func (rawBytesCodec) Marshal(v []byte) ([]byte, error) { return v, nil }

func (rawBytesCodec) Unmarshal(raw []byte) ([]byte, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Registry is the set of collections over the app-level store namespace
// that back address/code/config bookkeeping.
type Registry struct {
	codes     collections.Map[wire.Hash, []byte]
	contracts collections.Map[wire.Address, ContractInfo]
	config    collections.Item[wire.ChainConfig]
	clients   collections.Map[string, ClientRecord]
	clientSeq collections.Item[uint64]
	appConfig collections.Map[string, []byte]
}

// New constructs a Registry. Every collection lives under its own
// namespace of the store.Provider passed to each method, so a single
// Registry value can be reused across every phase sub-cache of a block.
func New() *Registry {
	return &Registry{
		codes:     collections.NewMap[wire.Hash, []byte]("codes", hashKey{}, rawBytesCodec{}),
		contracts: collections.NewJSONMap[wire.Address, ContractInfo]("contracts", addressKey{}),
		config:    collections.NewJSONItem[wire.ChainConfig]("config"),
		clients:   collections.NewJSONMap[string, ClientRecord]("clients", collections.StringKey{}),
		clientSeq: collections.NewJSONItem[uint64]("client_seq"),
		appConfig: collections.NewMap[string, []byte]("appconfig", collections.StringKey{}, rawBytesCodec{}),
	}
}

// AppConfigGet loads a single app-level configuration entry. These are
// opaque, string-keyed byte blobs — a generic key/value extension point
// alongside the kernel's own ChainConfig, in the spirit of the teacher's
// free-form ledger state keys.
func (r *Registry) AppConfigGet(s store.Provider, key string) ([]byte, bool, error) {
	return r.appConfig.May(s, key)
}

// AppConfigSet writes a single app-level configuration entry.
func (r *Registry) AppConfigSet(s store.Provider, key string, value []byte) error {
	return r.appConfig.Save(s, key, value)
}

// AppConfigRange lists app-level configuration entries in [min,max) order.
func (r *Registry) AppConfigRange(s store.Provider, min, max *collections.Bound[string], order store.Order) ([]collections.KV[string, []byte], error) {
	return r.appConfig.Range(s, min, max, order)
}

// ContractNamespace returns the raw storage prefix that scopes a
// contract's own state, for sdkcontext to build a store.Provider from.
func ContractNamespace(addr wire.Address) []byte {
	out := make([]byte, 0, len("contract/")+20)
	out = append(out, "contract/"...)
	out = append(out, addr[:]...)
	return out
}

// Upload stores code under its content hash, per spec.md §4.7. Idempotent:
// re-uploading identical bytes is a no-op that returns the same hash.
func (r *Registry) Upload(s store.Provider, code []byte) (wire.Hash, error) {
	if len(code) == 0 {
		return wire.Hash{}, fmt.Errorf("registry: empty code")
	}
	hash := wire.HashBytes(code)
	if r.codes.Has(s, hash) {
		return hash, nil
	}
	if err := r.codes.Save(s, hash, code); err != nil {
		return wire.Hash{}, err
	}
	return hash, nil
}

// Code loads the byte code stored at hash.
func (r *Registry) Code(s store.Provider, hash wire.Hash) ([]byte, bool, error) {
	return r.codes.May(s, hash)
}

// Codes lists every uploaded code hash in [min,max) order.
func (r *Registry) Codes(s store.Provider, min, max *collections.Bound[wire.Hash], order store.Order) ([]wire.Hash, error) {
	return r.codes.Keys(s, min, max, order)
}

// Instantiate derives the new contract's address and binds its registry
// record, per spec.md §4.7. It does not invoke the contract's instantiate
// entry point or move funds — that orchestration belongs to txapp, which
// calls Instantiate only after the code hash is known to exist.
func (r *Registry) Instantiate(s store.Provider, deployer wire.Address, codeHash wire.Hash, salt []byte, admin *wire.Address, label string) (wire.Address, error) {
	if !r.codes.Has(s, codeHash) {
		return wire.Address{}, fmt.Errorf("registry: code hash %s not found", wire.HashString(codeHash))
	}
	addr := wire.DeriveAddress(deployer, codeHash, salt)
	if r.contracts.Has(s, addr) {
		return wire.Address{}, fmt.Errorf("registry: address %s already bound", addr)
	}
	info := ContractInfo{CodeHash: codeHash, Admin: admin, Label: label}
	if err := r.contracts.Save(s, addr, info); err != nil {
		return wire.Address{}, err
	}
	return addr, nil
}

// ContractInfoOf loads the registry record for a contract address.
func (r *Registry) ContractInfoOf(s store.Provider, addr wire.Address) (ContractInfo, bool, error) {
	return r.contracts.May(s, addr)
}

// ContractInfos lists every contract's registry record in [min,max) order.
func (r *Registry) ContractInfos(s store.Provider, min, max *collections.Bound[wire.Address], order store.Order) ([]collections.KV[wire.Address, ContractInfo], error) {
	return r.contracts.Range(s, min, max, order)
}

// Migrate rebinds contract to newCodeHash, per spec.md §4.7: the caller
// (txapp) must invoke the new code's migrate entry point under a SudoCtx
// first and call Migrate only on success, so a failed migration leaves the
// code hash untouched.
func (r *Registry) Migrate(s store.Provider, caller wire.Address, contract wire.Address, newCodeHash wire.Hash) error {
	info, ok, err := r.contracts.May(s, contract)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registry: contract %s not found", contract)
	}
	if info.Admin == nil || *info.Admin != caller {
		return fmt.Errorf("registry: %s is not the admin of contract %s", caller, contract)
	}
	if !r.codes.Has(s, newCodeHash) {
		return fmt.Errorf("registry: code hash %s not found", wire.HashString(newCodeHash))
	}
	info.CodeHash = newCodeHash
	return r.contracts.Save(s, contract, info)
}

// Config loads the chain's current configuration.
func (r *Registry) Config(s store.Provider) (wire.ChainConfig, error) {
	return r.config.Load(s)
}

// SetConfig persists a new chain configuration, per spec.md §4.7's
// Configure message. The caller is responsible for checking that the
// sender is the configured owner before calling this.
func (r *Registry) SetConfig(s store.Provider, cfg wire.ChainConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.config.Save(s, cfg)
}
