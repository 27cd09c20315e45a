package vm

import (
	"encoding/json"

	"chainkernel/sdkcontext"
	"chainkernel/wire"
)

// GuestContext is the subset of a contract-facing context (sdkcontext.*)
// that actually crosses the sandbox boundary to the guest: chain_id,
// block info, the contract's own address, and whichever caller-identity /
// mode fields that context carries per spec.md §4.6's table. Host-only
// fields (the Querier handle, the Api handle, the Storage provider) never
// leave the host process.
type GuestContext struct {
	ChainID  string         `json:"chain_id"`
	Block    wire.BlockInfo `json:"block_info"`
	Contract wire.Address   `json:"contract_addr"`
	Sender   *wire.Address  `json:"sender,omitempty"`
	Funds    wire.Coins     `json:"funds,omitempty"`
	Mode     string         `json:"mode,omitempty"`
}

// EncodeGuestContext renders a GuestContext ready to cross into the guest.
func EncodeGuestContext(ctx GuestContext) ([]byte, error) {
	return json.Marshal(ctx)
}

// DecodeGuestContext parses bytes produced by EncodeGuestContext.
func DecodeGuestContext(raw []byte) (GuestContext, error) {
	var ctx GuestContext
	err := json.Unmarshal(raw, &ctx)
	return ctx, err
}

// FromInstantiateCtx projects an InstantiateCtx down to its guest-visible
// fields.
func FromInstantiateCtx(c sdkcontext.InstantiateCtx) GuestContext {
	sender := c.Sender
	return GuestContext{ChainID: c.ChainID, Block: c.Block, Contract: c.Contract, Sender: &sender, Funds: c.Funds}
}

// FromMutableCtx projects a MutableCtx down to its guest-visible fields.
func FromMutableCtx(c sdkcontext.MutableCtx) GuestContext {
	sender := c.Sender
	return GuestContext{ChainID: c.ChainID, Block: c.Block, Contract: c.Contract, Sender: &sender, Funds: c.Funds}
}

// FromQueryCtx projects a QueryCtx down to its guest-visible fields.
func FromQueryCtx(c sdkcontext.QueryCtx) GuestContext {
	return GuestContext{ChainID: c.ChainID, Block: c.Block, Contract: c.Contract}
}

// FromSudoCtx projects a SudoCtx down to its guest-visible fields.
func FromSudoCtx(c sdkcontext.SudoCtx) GuestContext {
	return GuestContext{ChainID: c.ChainID, Block: c.Block, Contract: c.Contract}
}

// FromAuthCtx projects an AuthCtx down to its guest-visible fields.
func FromAuthCtx(c sdkcontext.AuthCtx) GuestContext {
	return GuestContext{ChainID: c.ChainID, Block: c.Block, Contract: c.Contract, Mode: string(c.Mode)}
}
