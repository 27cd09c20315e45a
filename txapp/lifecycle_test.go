package txapp

import (
	"strconv"
	"testing"

	"chainkernel/pkg/apperror"
	"chainkernel/sdkcontext"
	"chainkernel/wire"
)

func executeTx(h *harness, gasLimit uint64, msgs ...wire.Message) wire.Tx {
	return wire.Tx{Sender: h.account, GasLimit: gasLimit, Msgs: msgs}
}

func TestRunTxWithholdsAndRefundsFee(t *testing.T) {
	h := newHarness(t, 2, false, false)
	h.mint(h.account, 100000)

	tx := executeTx(h, 50000, wire.Message{
		Kind: wire.KindExecute,
		Execute: &wire.ExecuteMsg{
			Contract: h.counter,
			Msg:      incrementMsg(7),
		},
	})

	outcome, err := h.engine.RunTx(h.committed, h.block, tx, sdkcontext.AuthFinalize)
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	if !outcome.Result.Ok {
		t.Fatalf("expected tx to succeed, got err %q", outcome.Result.Err)
	}
	if h.counterCount() != 7 {
		t.Fatalf("counter = %d, want 7", h.counterCount())
	}

	reserved := 2 * 50000
	actual := int(outcome.GasUsed) * 2
	wantSenderBalance := 100000 - actual
	if got := h.balance(h.account); got != strconv.Itoa(wantSenderBalance) {
		t.Fatalf("account balance = %s, want %s (reserved %d, gas used %d)", got, strconv.Itoa(wantSenderBalance), reserved, outcome.GasUsed)
	}
	if got := h.balance(h.collector); got != strconv.Itoa(actual) {
		t.Fatalf("collector balance = %s, want %s", got, strconv.Itoa(actual))
	}
}

func TestRunTxInsufficientBalanceFailsAtWithhold(t *testing.T) {
	h := newHarness(t, 2, false, false)
	// account is never minted any funds.

	tx := executeTx(h, 50000, wire.Message{
		Kind: wire.KindExecute,
		Execute: &wire.ExecuteMsg{
			Contract: h.counter,
			Msg:      incrementMsg(7),
		},
	})

	outcome, err := h.engine.RunTx(h.committed, h.block, tx, sdkcontext.AuthFinalize)
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	if outcome.Result.Ok {
		t.Fatalf("expected tx to fail at withhold_fee")
	}
	if h.counterCount() != 0 {
		t.Fatalf("counter = %d, want 0 (execute_msgs must not have run)", h.counterCount())
	}
}

func TestRunTxBackrunFailureDoesNotFailTx(t *testing.T) {
	h := newHarness(t, 0, true, true)
	h.mint(h.account, 100000)

	tx := executeTx(h, 50000, wire.Message{
		Kind: wire.KindExecute,
		Execute: &wire.ExecuteMsg{
			Contract: h.counter,
			Msg:      incrementMsg(1),
		},
	})

	outcome, err := h.engine.RunTx(h.committed, h.block, tx, sdkcontext.AuthFinalize)
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	if !outcome.Result.Ok {
		t.Fatalf("expected tx to succeed despite backrun failing, got err %q", outcome.Result.Err)
	}
	if h.counterCount() != 1 {
		t.Fatalf("counter = %d, want 1 (execute_msgs must stand even though backrun failed)", h.counterCount())
	}
	foundFailedBackrun := false
	for _, ev := range outcome.Result.Events {
		if ev.Type == "backrun" {
			foundFailedBackrun = true
		}
	}
	if !foundFailedBackrun {
		t.Fatalf("expected a backrun-failed event, got %+v", outcome.Result.Events)
	}
}

func TestRunTxGasExhaustionFailsExecuteMsgsOnly(t *testing.T) {
	h := newHarness(t, 0, false, false)
	h.mint(h.account, 100000)

	// incrementGasCost (1000) exceeds this limit, so execute_msgs traps
	// with OutOfGas; withhold_fee (price_per_gas 0) still succeeds.
	tx := executeTx(h, 10, wire.Message{
		Kind: wire.KindExecute,
		Execute: &wire.ExecuteMsg{
			Contract: h.counter,
			Msg:      incrementMsg(1),
		},
	})

	outcome, err := h.engine.RunTx(h.committed, h.block, tx, sdkcontext.AuthFinalize)
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	if outcome.Result.Ok {
		t.Fatalf("expected tx to fail out of gas")
	}
	if outcome.GasUsed != tx.GasLimit {
		t.Fatalf("GasUsed = %d, want %d (charged in full on OutOfGas)", outcome.GasUsed, tx.GasLimit)
	}
	if h.counterCount() != 0 {
		t.Fatalf("counter = %d, want 0 (execute_msgs must have been discarded)", h.counterCount())
	}
}

func TestRunSubMessagesReplyOnErrorCatchesFailure(t *testing.T) {
	h := newHarness(t, 0, false, false)
	h.mint(h.account, 100000)

	subs := []SubMsg{{
		ID: 1,
		Msg: wire.Message{
			Kind: wire.KindExecute,
			Execute: &wire.ExecuteMsg{
				Contract: wire.Address{0xFF}, // not a registered contract
				Msg:      incrementMsg(1),
			},
		},
		ReplyOn: ReplyOnError,
	}}

	events, err := h.engine.runSubMessages(h.committed, h.block, 1, nil, h.counter, subs)
	if err != nil {
		t.Fatalf("runSubMessages: %v", err)
	}
	foundReply := false
	for _, ev := range events {
		if ev.Type == "reply" {
			foundReply = true
		}
	}
	if !foundReply {
		t.Fatalf("expected a reply event for the failed submessage, got %+v", events)
	}
}

func TestRunSubMessagesDepthExceededIsFatal(t *testing.T) {
	h := newHarness(t, 0, false, false)

	subs := []SubMsg{{
		ID: 1,
		Msg: wire.Message{
			Kind: wire.KindExecute,
			Execute: &wire.ExecuteMsg{
				Contract: h.counter,
				Msg:      incrementMsg(1),
			},
		},
		ReplyOn: ReplyOnNever,
	}}

	_, err := h.engine.runSubMessages(h.committed, h.block, h.engine.MessageDepth+1, nil, h.counter, subs)
	if err == nil {
		t.Fatalf("expected a fatal depth error")
	}
	if !apperror.IsFatal(err) {
		t.Fatalf("expected IsFatal(err), got %v", err)
	}
}
