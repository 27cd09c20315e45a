package registry

import (
	"encoding/json"

	"chainkernel/wire"
)

// The kernel core knows nothing about the bank contract's internal
// ledger — only the wire shape of its query and execute ABI, per spec.md
// §4.10. These types are the one place that shape is pinned down, shared
// by the query package (Balance/Supply dispatch), txapp (Transfer/Mint/
// Burn routing) and the internal/fixtures bank fixture that implements them.

// BankBalanceQuery asks the bank contract for one account's balance of
// one denom.
type BankBalanceQuery struct {
	Address wire.Address `json:"address"`
	Denom   wire.Denom   `json:"denom"`
}

// BankSupplyQuery asks the bank contract for one denom's total supply.
type BankSupplyQuery struct {
	Denom wire.Denom `json:"denom"`
}

// BankQuery is the bank contract's query entry-point tagged union.
type BankQuery struct {
	Balance *BankBalanceQuery `json:"balance,omitempty"`
	Supply  *BankSupplyQuery  `json:"supply,omitempty"`
}

// BankBalanceResponse is the bank contract's response to BankBalanceQuery.
type BankBalanceResponse struct {
	Amount json.Number `json:"amount"`
}

// BankSupplyResponse is the bank contract's response to BankSupplyQuery.
type BankSupplyResponse struct {
	Amount json.Number `json:"amount"`
}

// BankMintExecute credits to with coins, increasing total supply. The kernel
// does not restrict who may send it; the fixture bank accepts it from any
// caller. Transfer messages are routed as a ForceTransfer, not a Mint.
type BankMintExecute struct {
	To    wire.Address `json:"to"`
	Coins wire.Coins   `json:"coins"`
}

// BankBurnExecute debits from and decreases total supply.
type BankBurnExecute struct {
	From  wire.Address `json:"from"`
	Coins wire.Coins   `json:"coins"`
}

// BankForceTransferExecute moves coins between two accounts without the
// sender's consent, used by the taxman and by fee collection.
type BankForceTransferExecute struct {
	From  wire.Address `json:"from"`
	To    wire.Address `json:"to"`
	Coins wire.Coins   `json:"coins"`
}

// BankExecute is the bank contract's execute entry-point tagged union.
type BankExecute struct {
	Mint          *BankMintExecute          `json:"mint,omitempty"`
	Burn          *BankBurnExecute          `json:"burn,omitempty"`
	ForceTransfer *BankForceTransferExecute `json:"force_transfer,omitempty"`
}
