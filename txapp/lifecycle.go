package txapp

import (
	"encoding/json"

	"chainkernel/gas"
	"chainkernel/pkg/apperror"
	"chainkernel/sdkcontext"
	"chainkernel/store"
	"chainkernel/wire"
)

// RunTx drives a transaction through the five-phase lifecycle of spec.md
// §4.8: withhold_fee, authenticate, execute_msgs, backrun, finalize_fee.
// Each phase runs in its own sub-cache layered on a tx-wide cache layered
// on committed; a failing phase discards only its own writes, while
// finalize_fee failing at all is treated as a fatal invariant violation
// that discards the entire transaction. RunTx itself flushes the tx-wide
// cache into committed at the end, or discards it when finalize_fee fails.
func (e *Engine) RunTx(committed store.Shared, block wire.BlockInfo, tx wire.Tx, mode sdkcontext.AuthMode) (wire.TxOutcome, error) {
	outcome := wire.TxOutcome{GasLimit: tx.GasLimit}

	if err := tx.Validate(); err != nil {
		outcome.Result = wire.TxResult{Ok: false, Err: err.Error()}
		return outcome, nil
	}

	gasTracker := gas.NewLimited(tx.GasLimit)
	txBatched := store.NewBatched(committed)
	txShared := store.NewShared(txBatched)

	coreRO := store.NewProvider(txShared, coreNamespace, false)
	cfg, err := e.Reg.Config(coreRO)
	if err != nil {
		return outcome, apperror.AppError("txapp: chain config unreadable: %s", err)
	}

	txBytes, err := json.Marshal(tx)
	if err != nil {
		return outcome, apperror.AppError("txapp: encode tx: %s", err)
	}

	var allEvents []wire.Event
	var txErr error

	s0Events, s0Err := e.runPhase(txShared, func(s store.Shared) ([]wire.Event, error) {
		resp, err := e.callAuth(s, block, cfg.Taxman, mode, gasTracker, "withhold_fee", txBytes)
		if err != nil {
			return nil, err
		}
		events := append([]wire.Event{}, resp.Events...)
		subEvents, err := e.runSubMessages(s, block, 1, gasTracker, cfg.Taxman, resp.Messages)
		if err != nil {
			return nil, err
		}
		return append(events, subEvents...), nil
	})
	if s0Err != nil {
		txErr = s0Err
	} else {
		allEvents = append(allEvents, s0Events...)
	}

	var requestBackrun bool
	if txErr == nil {
		s1Events, s1Err := e.runPhase(txShared, func(s store.Shared) ([]wire.Event, error) {
			resp, err := e.callAuth(s, block, tx.Sender, mode, gasTracker, "authenticate", txBytes)
			if err != nil {
				return nil, err
			}
			if len(resp.Data) > 0 {
				var authResp AuthenticateResponse
				if err := json.Unmarshal(resp.Data, &authResp); err != nil {
					return nil, apperror.WrapStdError(err, "txapp: decode authenticate response")
				}
				requestBackrun = authResp.RequestBackrun
			}
			events := append([]wire.Event{}, resp.Events...)
			subEvents, err := e.runSubMessages(s, block, 1, gasTracker, tx.Sender, resp.Messages)
			if err != nil {
				return nil, err
			}
			return append(events, subEvents...), nil
		})
		if s1Err != nil {
			txErr = s1Err
		} else {
			allEvents = append(allEvents, s1Events...)
		}
	}

	if txErr == nil {
		s2Events, s2Err := e.runPhase(txShared, func(s store.Shared) ([]wire.Event, error) {
			var events []wire.Event
			for _, msg := range tx.Msgs {
				msgEvents, _, err := e.Dispatch(s, block, tx.Sender, gasTracker, 1, msg)
				if err != nil {
					return nil, err
				}
				events = append(events, msgEvents...)
			}
			return events, nil
		})
		if s2Err != nil {
			txErr = s2Err
		} else {
			allEvents = append(allEvents, s2Events...)

			if requestBackrun {
				s3Events, s3Err := e.runPhase(txShared, func(s store.Shared) ([]wire.Event, error) {
					resp, err := e.callAuth(s, block, tx.Sender, mode, gasTracker, "backrun", txBytes)
					if err != nil {
						return nil, err
					}
					events := append([]wire.Event{}, resp.Events...)
					subEvents, err := e.runSubMessages(s, block, 1, gasTracker, tx.Sender, resp.Messages)
					if err != nil {
						return nil, err
					}
					return append(events, subEvents...), nil
				})
				if s3Err != nil {
					// S3 failing reverts only the backrun phase; S2's
					// effects stand and the transaction as a whole still
					// succeeds, per spec.md §4.8.
					allEvents = append(allEvents, wire.Event{Type: "backrun", Attributes: []wire.EventAttribute{
						{Key: "status", Value: "failed"},
						{Key: "reason", Value: s3Err.Error()},
					}})
				} else {
					allEvents = append(allEvents, s3Events...)
				}
			}
		}
	}

	outcomeSoFar := OutcomeSoFar{Ok: txErr == nil, Events: allEvents, GasUsed: gasTracker.Consumed()}
	if txErr != nil {
		outcomeSoFar.Err = txErr.Error()
	}
	outcomeBytes, err := json.Marshal(outcomeSoFar)
	if err != nil {
		return outcome, apperror.AppError("txapp: encode outcome_so_far: %s", err)
	}

	s4Events, s4Err := e.runPhase(txShared, func(s store.Shared) ([]wire.Event, error) {
		resp, err := e.callFinalizeFee(s, block, cfg.Taxman, mode, gasTracker, txBytes, outcomeBytes)
		if err != nil {
			return nil, err
		}
		events := append([]wire.Event{}, resp.Events...)
		subEvents, err := e.runSubMessages(s, block, 1, gasTracker, cfg.Taxman, resp.Messages)
		if err != nil {
			return nil, err
		}
		return append(events, subEvents...), nil
	})
	if s4Err != nil {
		txBatched.Discard()
		e.Logger.WithFields(map[string]any{
			"sender": tx.Sender.String(),
			"phase":  "finalize_fee",
		}).Errorf("txapp: finalize_fee failed, treating as invariant violation: %s", s4Err)
		outcome.Result = wire.TxResult{Ok: false, Err: "finalize_fee failed: invariant violation"}
		return outcome, apperror.AppError("txapp: finalize_fee failed: %s", s4Err)
	}
	allEvents = append(allEvents, s4Events...)

	if err := txBatched.Flush(); err != nil {
		return outcome, apperror.AppError("txapp: flush tx cache: %s", err)
	}

	outcome.GasUsed = gasTracker.Consumed()
	if apperror.IsOutOfGas(txErr) {
		if limit, ok := gasTracker.Limit(); ok {
			outcome.GasUsed = limit
		}
	}

	if txErr != nil {
		outcome.Result = wire.TxResult{Ok: false, Err: txErr.Error(), Events: allEvents}
	} else {
		outcome.Result = wire.TxResult{Ok: true, Events: allEvents}
	}
	return outcome, nil
}

// runPhase executes fn against a fresh sub-cache layered on parent,
// flushing it into parent on success and discarding it on failure — the
// atomic, all-or-nothing shape every lifecycle phase shares.
func (e *Engine) runPhase(parent store.Shared, fn func(shared store.Shared) ([]wire.Event, error)) ([]wire.Event, error) {
	batched := store.NewBatched(parent)
	child := store.NewShared(batched)
	events, err := fn(child)
	if err != nil {
		batched.Discard()
		return nil, err
	}
	if ferr := batched.Flush(); ferr != nil {
		return nil, apperror.WrapStdError(ferr, "txapp: flush phase cache")
	}
	return events, nil
}

// RunCron invokes contract's cron_execute entry point in its own
// discardable cache layered on committed, processing any submessages it
// schedules. Failures never propagate beyond the individual cron job.
func (e *Engine) RunCron(committed store.Shared, block wire.BlockInfo, contract wire.Address) wire.CronOutcome {
	gasTracker := gas.NewTracker(nil)
	batched := store.NewBatched(committed)
	child := store.NewShared(batched)

	resp, err := e.callCron(child, block, contract, gasTracker)
	if err != nil {
		batched.Discard()
		return wire.CronOutcome{Contract: contract, Result: wire.TxResult{Ok: false, Err: err.Error()}}
	}
	events := append([]wire.Event{}, resp.Events...)

	subEvents, err := e.runSubMessages(child, block, 1, gasTracker, contract, resp.Messages)
	if err != nil {
		batched.Discard()
		return wire.CronOutcome{Contract: contract, Result: wire.TxResult{Ok: false, Err: err.Error()}}
	}
	events = append(events, subEvents...)

	if ferr := batched.Flush(); ferr != nil {
		return wire.CronOutcome{Contract: contract, Result: wire.TxResult{Ok: false, Err: ferr.Error()}}
	}
	return wire.CronOutcome{Contract: contract, Result: wire.TxResult{Ok: true, Events: events}}
}
