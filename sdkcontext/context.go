// Package sdkcontext defines the five contract-facing context objects of
// spec.md §4.6: InstantiateCtx, MutableCtx, QueryCtx, SudoCtx and AuthCtx.
// Each wraps a Base carrying the chain ID, block info, the contract's own
// address, a Querier handle and a crypto Api handle, plus a storage
// handle scoped to the contract's namespace by registry.ContractNamespace.
package sdkcontext

import (
	"chainkernel/query"
	"chainkernel/registry"
	"chainkernel/store"
	"chainkernel/wire"
)

// Api is the crypto primitive surface every context exposes to a
// contract, matching the host ABI's pure cryptographic imports
// (secp256k1_verify, secp256r1_verify, ed25519_verify,
// secp256k1_pubkey_recover, keccak256, sha2_256, blake3) of spec.md §4.4.
// The concrete implementation lives in package vm, which wires in the
// corpus's crypto libraries; sdkcontext only declares the shape so it
// never needs to import vm.
type Api interface {
	Secp256k1Verify(msgHash, sig, pubkey []byte) bool
	Secp256r1Verify(msgHash, sig, pubkey []byte) bool
	Ed25519Verify(msg, sig, pubkey []byte) bool
	Secp256k1RecoverPubkey(msgHash, sig []byte, recoveryID byte) ([]byte, error)
	Keccak256(data []byte) [32]byte
	Sha256(data []byte) [32]byte
	Blake3(data []byte) [32]byte
}

// Base is embedded by every contract-facing context.
type Base struct {
	ChainID  string
	Block    wire.BlockInfo
	Contract wire.Address
	Querier  *query.Querier
	Api      Api
	Storage  store.Provider
}

// NewBase builds a Base whose Storage is scoped to contract's own
// namespace within shared, per registry.ContractNamespace.
func NewBase(chainID string, block wire.BlockInfo, contract wire.Address, querier *query.Querier, api Api, shared store.Shared, stateMutable bool) Base {
	return Base{
		ChainID:  chainID,
		Block:    block,
		Contract: contract,
		Querier:  querier,
		Api:      api,
		Storage:  store.NewProvider(shared, registry.ContractNamespace(contract), stateMutable),
	}
}

// InstantiateCtx is passed to a contract's instantiate entry point: the
// direct caller and any funds attached to the message, state-mutable.
type InstantiateCtx struct {
	Base
	Sender wire.Address
	Funds  wire.Coins
}

// MutableCtx is passed to a contract's execute entry point: identical
// shape to InstantiateCtx, state-mutable, direct-caller identity.
type MutableCtx struct {
	Base
	Sender wire.Address
	Funds  wire.Coins
}

// QueryCtx is passed to a contract's query entry point. Storage is
// read-only; there is no caller identity.
type QueryCtx struct {
	Base
}

// SudoCtx is passed when the chain itself invokes a contract — cron jobs,
// submessage replies, migrate, and the bank's execute for kernel fund
// moves. Genesis instantiation uses InstantiateCtx. State-mutable, no
// caller identity to authenticate against.
type SudoCtx struct {
	Base
}

// AuthMode selects which of the three ways a transaction can be run
// through the lifecycle state machine of spec.md §4.8.
type AuthMode string

const (
	AuthCheck    AuthMode = "check"
	AuthFinalize AuthMode = "finalize"
	AuthSimulate AuthMode = "simulate"
)

// AuthCtx is passed to authenticate, backrun, withhold_fee and
// finalize_fee. State-mutable; Mode distinguishes a CheckTx-style dry run
// from block finalization from a /simulate query.
type AuthCtx struct {
	Base
	Mode AuthMode
}
