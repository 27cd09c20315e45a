package wire

import "encoding/json"

// BlockInfo is the block metadata every contract-facing context carries.
type BlockInfo struct {
	Height uint64 `json:"height"`
	Time   int64  `json:"time"`
}

// EventAttribute is a single key/value pair attached to an Event.
type EventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is an application-defined, contract- or kernel-emitted log entry.
// Events are kept as one flat list in emission order: a submessage's and
// its reply's events are appended after the parent's, and no nesting or
// child list is recorded.
type Event struct {
	Type       string           `json:"type"`
	Attributes []EventAttribute `json:"attributes"`
}

// TxResult is either a success (with events) or a failure (with a message),
// per BlockOutcome's tx_outcomes shape of spec.md §6.
type TxResult struct {
	Ok     bool    `json:"ok"`
	Err    string  `json:"err,omitempty"`
	Events []Event `json:"events,omitempty"`
}

// TxOutcome reports one transaction's execution result within a block, or
// the hypothetical result of a /simulate call.
type TxOutcome struct {
	GasLimit uint64   `json:"gas_limit"`
	GasUsed  uint64   `json:"gas_used"`
	Result   TxResult `json:"result"`
}

// CronOutcome reports one scheduled cron job's execution result.
type CronOutcome struct {
	Contract Address  `json:"contract"`
	Result   TxResult `json:"result"`
}

// BlockOutcome is the result of FinalizeBlock handed back to the consensus
// driver.
type BlockOutcome struct {
	NewStateRoot Hash          `json:"new_state_root"`
	TxOutcomes   []TxOutcome   `json:"tx_outcomes"`
	CronOutcomes []CronOutcome `json:"cron_outcomes"`
}

// QueryResponse is the binary-in/binary-out response envelope for the
// /app path: Result carries the variant-specific JSON payload on success.
type QueryResponse struct {
	Ok     bool            `json:"ok"`
	Err    string          `json:"err,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// StoreRequest is the request envelope for the /store path: a raw key
// under the authenticated root, with an optional Merkle proof.
type StoreRequest struct {
	Key        []byte `json:"key"`
	WithProof  bool   `json:"with_proof"`
	AtRootHash *Hash  `json:"at_root_hash,omitempty"`
}

// StoreResponse is the response envelope for the /store path. Value is nil
// when the key is absent; Proof is present only when WithProof was set.
type StoreResponse struct {
	Value []byte `json:"value,omitempty"`
	Proof []byte `json:"proof,omitempty"`
}

// SimulateResponse is the response envelope for the /simulate path: a
// hypothetical TxOutcome computed without committing any state.
type SimulateResponse struct {
	Outcome TxOutcome `json:"outcome"`
}
