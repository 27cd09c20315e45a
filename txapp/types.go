// Package txapp implements the kernel's transaction lifecycle and message
// dispatcher of spec.md §4.8-4.9: the five-phase Engine.RunTx state machine
// (withhold_fee, authenticate, execute_msgs, backrun, finalize_fee) and the
// submessage/reply continuation dispatcher that lets a contract schedule
// nested calls and observe their outcome.
//
// Grounded on the teacher's core/cross_chain.go message-routing switch and
// core/virtual_machine.go's call-and-unwind shape, generalized from a fixed
// set of cross-chain packet kinds to spec.md's Message tagged union and its
// ReplyOn-gated submessage continuations.
package txapp

import (
	"encoding/json"

	"chainkernel/wire"
)

// ReplyOnKind selects when a submessage's outcome triggers a reply back
// into the contract that scheduled it, per spec.md §4.9.
type ReplyOnKind string

const (
	ReplyOnNever   ReplyOnKind = "never"
	ReplyOnSuccess ReplyOnKind = "success"
	ReplyOnError   ReplyOnKind = "error"
	ReplyOnAlways  ReplyOnKind = "always"
)

// SubMsg is one nested message a contract schedules from its own Response,
// optionally asking to be re-entered at its reply entry point once the
// nested call settles.
type SubMsg struct {
	ID      uint64          `json:"id"`
	Msg     wire.Message    `json:"msg"`
	ReplyOn ReplyOnKind     `json:"reply_on"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubMsgResponse carries a submessage's events and return data on success.
type SubMsgResponse struct {
	Events []wire.Event    `json:"events,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SubMsgResult is the Ok/Err outcome of a submessage handed to reply.
type SubMsgResult struct {
	Ok  *SubMsgResponse `json:"ok,omitempty"`
	Err string          `json:"err,omitempty"`
}

// ReplyMsg is the payload passed to a contract's reply entry point.
type ReplyMsg struct {
	ID      uint64          `json:"id"`
	Result  SubMsgResult    `json:"result"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the JSON shape every contract-mutating entry point
// (instantiate, execute, migrate, reply, sudo, authenticate, backrun,
// withhold_fee, finalize_fee, cron_execute) returns: its own events, free
// form return data, and any submessages it wants scheduled.
type Response struct {
	Events   []wire.Event    `json:"events,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Messages []SubMsg        `json:"messages,omitempty"`
}

// AuthenticateResponse is the Data payload a contract's authenticate entry
// point returns, per spec.md §4.8: whether the lifecycle should also run
// the backrun phase for this transaction.
type AuthenticateResponse struct {
	RequestBackrun bool `json:"request_backrun"`
}

// OutcomeSoFar is the second parameter passed to finalize_fee: the
// transaction's outcome as known immediately before finalization, letting
// the taxman contract compute a fee proportional to actual gas used or
// waive it on a failed transaction.
type OutcomeSoFar struct {
	Ok      bool         `json:"ok"`
	Err     string       `json:"err,omitempty"`
	Events  []wire.Event `json:"events,omitempty"`
	GasUsed uint64       `json:"gas_used"`
}
