package txapp

import (
	"encoding/json"

	"chainkernel/gas"
	"chainkernel/pkg/apperror"
	"chainkernel/store"
	"chainkernel/wire"
)

// Dispatch runs one message against parent in its own discardable
// sub-cache, flushing into parent on success and discarding on any
// failure. depth is the current submessage nesting depth, checked against
// Engine.MessageDepth before any submessage this message's contract
// response schedules is itself dispatched.
func (e *Engine) Dispatch(parent store.Shared, block wire.BlockInfo, sender wire.Address, gasTracker *gas.Tracker, depth uint32, msg wire.Message) ([]wire.Event, json.RawMessage, error) {
	batched := store.NewBatched(parent)
	child := store.NewShared(batched)
	events, data, err := e.dispatchOne(child, block, sender, gasTracker, depth, msg)
	if err != nil {
		batched.Discard()
		return nil, nil, err
	}
	if ferr := batched.Flush(); ferr != nil {
		return nil, nil, apperror.WrapStdError(ferr, "txapp: flush message cache")
	}
	return events, data, nil
}

func (e *Engine) dispatchOne(shared store.Shared, block wire.BlockInfo, sender wire.Address, gasTracker *gas.Tracker, depth uint32, msg wire.Message) ([]wire.Event, json.RawMessage, error) {
	switch msg.Kind {
	case wire.KindConfigure:
		return e.handleConfigure(shared, sender, msg.Configure)
	case wire.KindTransfer:
		return e.handleTransfer(shared, block, sender, gasTracker, msg.Transfer)
	case wire.KindUpload:
		return e.handleUpload(shared, sender, msg.Upload)
	case wire.KindInstantiate:
		return e.handleInstantiate(shared, block, sender, gasTracker, depth, msg.Instantiate)
	case wire.KindExecute:
		return e.handleExecute(shared, block, sender, gasTracker, depth, msg.Execute)
	case wire.KindMigrate:
		return e.handleMigrate(shared, block, sender, gasTracker, msg.Migrate)
	case wire.KindCreateClient:
		return e.handleCreateClient(shared, sender, msg.CreateClient)
	case wire.KindUpdateClient:
		return e.handleUpdateClient(shared, msg.UpdateClient)
	case wire.KindFreezeClient:
		return e.handleFreezeClient(shared, msg.FreezeClient)
	default:
		return nil, nil, apperror.StdError("txapp: unknown message kind %q", msg.Kind)
	}
}

func (e *Engine) handleConfigure(shared store.Shared, sender wire.Address, m *wire.ConfigureMsg) ([]wire.Event, json.RawMessage, error) {
	coreRW := store.NewProvider(shared, coreNamespace, true)
	cfg, err := e.Reg.Config(coreRW)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: load chain config")
	}
	if cfg.Owner != sender {
		return nil, nil, apperror.StdError("txapp: %s is not the chain owner", sender)
	}
	if err := e.Reg.SetConfig(coreRW, m.NewConfig); err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: configure")
	}
	return []wire.Event{{Type: "configure", Attributes: []wire.EventAttribute{{Key: "owner", Value: sender.String()}}}}, nil, nil
}

func (e *Engine) handleTransfer(shared store.Shared, block wire.BlockInfo, sender wire.Address, gasTracker *gas.Tracker, m *wire.TransferMsg) ([]wire.Event, json.RawMessage, error) {
	if err := e.moveFunds(shared, block, sender, m.To, m.Coins, gasTracker); err != nil {
		return nil, nil, err
	}
	return []wire.Event{transferEvent(sender, m.To, m.Coins)}, nil, nil
}

func (e *Engine) handleUpload(shared store.Shared, sender wire.Address, m *wire.UploadMsg) ([]wire.Event, json.RawMessage, error) {
	coreRW := store.NewProvider(shared, coreNamespace, true)
	cfg, err := e.Reg.Config(coreRW)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: load chain config")
	}
	if !cfg.Upload.Allows(sender) {
		return nil, nil, apperror.StdError("txapp: %s is not permitted to upload code", sender)
	}
	hash, err := e.Reg.Upload(coreRW, m.Code)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: upload")
	}
	data, err := json.Marshal(struct {
		CodeHash wire.Hash `json:"code_hash"`
	}{hash})
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: encode upload response")
	}
	return []wire.Event{{Type: "upload", Attributes: []wire.EventAttribute{{Key: "code_hash", Value: wire.HashString(hash)}}}}, data, nil
}

func (e *Engine) handleInstantiate(shared store.Shared, block wire.BlockInfo, sender wire.Address, gasTracker *gas.Tracker, depth uint32, m *wire.InstantiateMsg) ([]wire.Event, json.RawMessage, error) {
	coreRW := store.NewProvider(shared, coreNamespace, true)
	cfg, err := e.Reg.Config(coreRW)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: load chain config")
	}
	if !cfg.Instantiate.Allows(sender) {
		return nil, nil, apperror.StdError("txapp: %s is not permitted to instantiate", sender)
	}
	addr, err := e.Reg.Instantiate(coreRW, sender, m.CodeHash, m.Salt, m.Admin, m.Label)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: instantiate")
	}
	if len(m.Funds) > 0 {
		if err := e.moveFunds(shared, block, sender, addr, m.Funds, gasTracker); err != nil {
			return nil, nil, err
		}
	}
	coreRO := store.NewProvider(shared, coreNamespace, false)
	_, code, err := e.loadContract(coreRO, addr)
	if err != nil {
		return nil, nil, err
	}
	resp, err := e.callInstantiate(shared, block, sender, addr, m.CodeHash, code, m.Funds, gasTracker, m.Msg)
	if err != nil {
		return nil, nil, err
	}
	events := append([]wire.Event{instantiateEvent(addr, m.CodeHash, sender)}, resp.Events...)
	subEvents, err := e.runSubMessages(shared, block, depth+1, gasTracker, addr, resp.Messages)
	if err != nil {
		return nil, nil, err
	}
	events = append(events, subEvents...)
	out, err := json.Marshal(struct {
		Address wire.Address `json:"address"`
	}{addr})
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: encode instantiate response")
	}
	return events, out, nil
}

func (e *Engine) handleExecute(shared store.Shared, block wire.BlockInfo, sender wire.Address, gasTracker *gas.Tracker, depth uint32, m *wire.ExecuteMsg) ([]wire.Event, json.RawMessage, error) {
	if len(m.Funds) > 0 {
		if err := e.moveFunds(shared, block, sender, m.Contract, m.Funds, gasTracker); err != nil {
			return nil, nil, err
		}
	}
	resp, err := e.callExecute(shared, block, sender, m.Contract, m.Funds, gasTracker, m.Msg)
	if err != nil {
		return nil, nil, err
	}
	events := append([]wire.Event{baseEvent("execute", m.Contract, sender)}, resp.Events...)
	subEvents, err := e.runSubMessages(shared, block, depth+1, gasTracker, m.Contract, resp.Messages)
	if err != nil {
		return nil, nil, err
	}
	events = append(events, subEvents...)
	return events, resp.Data, nil
}

func (e *Engine) handleMigrate(shared store.Shared, block wire.BlockInfo, sender wire.Address, gasTracker *gas.Tracker, m *wire.MigrateMsg) ([]wire.Event, json.RawMessage, error) {
	coreRO := store.NewProvider(shared, coreNamespace, false)
	info, ok, err := e.Reg.ContractInfoOf(coreRO, m.Contract)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: load contract info")
	}
	if !ok {
		return nil, nil, apperror.StdError("txapp: contract %s not found", m.Contract)
	}
	if info.Admin == nil || *info.Admin != sender {
		return nil, nil, apperror.StdError("txapp: %s is not the admin of %s", sender, m.Contract)
	}
	newCode, ok, err := e.Reg.Code(coreRO, m.NewCodeHash)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: load code")
	}
	if !ok {
		return nil, nil, apperror.StdError("txapp: code %s not found", wire.HashString(m.NewCodeHash))
	}

	resp, err := e.callSudo(shared, block, m.Contract, m.NewCodeHash, newCode, gasTracker, "migrate", m.Msg)
	if err != nil {
		return nil, nil, err
	}

	coreRW := store.NewProvider(shared, coreNamespace, true)
	if err := e.Reg.Migrate(coreRW, sender, m.Contract, m.NewCodeHash); err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: migrate rebind")
	}
	events := append([]wire.Event{migrateEvent(m.Contract, m.NewCodeHash)}, resp.Events...)
	return events, resp.Data, nil
}

func (e *Engine) handleCreateClient(shared store.Shared, sender wire.Address, m *wire.CreateClientMsg) ([]wire.Event, json.RawMessage, error) {
	coreRW := store.NewProvider(shared, coreNamespace, true)
	clientID, err := e.Reg.CreateClient(coreRW, sender, m.ClientType, m.Msg)
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: create client")
	}
	data, err := json.Marshal(struct {
		ClientID string `json:"client_id"`
	}{clientID})
	if err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: encode create_client response")
	}
	return []wire.Event{{Type: "create_client", Attributes: []wire.EventAttribute{
		{Key: "client_id", Value: clientID},
		{Key: "client_type", Value: m.ClientType},
	}}}, data, nil
}

func (e *Engine) handleUpdateClient(shared store.Shared, m *wire.UpdateClientMsg) ([]wire.Event, json.RawMessage, error) {
	coreRW := store.NewProvider(shared, coreNamespace, true)
	if err := e.Reg.UpdateClient(coreRW, m.ClientID, m.Msg); err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: update client")
	}
	return []wire.Event{{Type: "update_client", Attributes: []wire.EventAttribute{{Key: "client_id", Value: m.ClientID}}}}, nil, nil
}

func (e *Engine) handleFreezeClient(shared store.Shared, m *wire.FreezeClientMsg) ([]wire.Event, json.RawMessage, error) {
	coreRW := store.NewProvider(shared, coreNamespace, true)
	if err := e.Reg.FreezeClient(coreRW, m.ClientID); err != nil {
		return nil, nil, apperror.WrapStdError(err, "txapp: freeze client")
	}
	return []wire.Event{{Type: "freeze_client", Attributes: []wire.EventAttribute{
		{Key: "client_id", Value: m.ClientID},
		{Key: "reason", Value: m.Reason},
	}}}, nil, nil
}

// runSubMessages dispatches each scheduled submessage in order, under
// caller's identity, re-entering caller's reply entry point when the
// ReplyOn policy calls for it. A submessage nesting depth beyond
// Engine.MessageDepth is a fatal error for the whole transaction, per
// spec.md §4.9 — it is never caught by a reply policy.
func (e *Engine) runSubMessages(parent store.Shared, block wire.BlockInfo, depth uint32, gasTracker *gas.Tracker, caller wire.Address, subs []SubMsg) ([]wire.Event, error) {
	if len(subs) == 0 {
		return nil, nil
	}
	if depth > e.MessageDepth {
		return nil, apperror.AppError("txapp: message nesting depth %d exceeds limit of %d", depth, e.MessageDepth)
	}
	var events []wire.Event
	for _, sub := range subs {
		subEvents, subData, dispatchErr := e.Dispatch(parent, block, caller, gasTracker, depth, sub.Msg)

		var result SubMsgResult
		if dispatchErr != nil {
			if apperror.IsFatal(dispatchErr) {
				return nil, dispatchErr
			}
			result = SubMsgResult{Err: dispatchErr.Error()}
		} else {
			result = SubMsgResult{Ok: &SubMsgResponse{Events: subEvents, Data: subData}}
			events = append(events, subEvents...)
		}

		invokeReply := false
		switch sub.ReplyOn {
		case ReplyOnNever:
			if dispatchErr != nil {
				return nil, dispatchErr
			}
		case ReplyOnSuccess:
			if dispatchErr != nil {
				return nil, dispatchErr
			}
			invokeReply = true
		case ReplyOnError:
			invokeReply = dispatchErr != nil
		case ReplyOnAlways:
			invokeReply = true
		default:
			return nil, apperror.StdError("txapp: unknown reply_on %q", sub.ReplyOn)
		}

		if !invokeReply {
			continue
		}

		replyMsg := ReplyMsg{ID: sub.ID, Result: result, Payload: sub.Payload}
		replyResp, replyEvents, err := e.invokeReply(parent, block, caller, gasTracker, replyMsg)
		if err != nil {
			return nil, err
		}
		events = append(events, replyEvents...)
		moreEvents, err := e.runSubMessages(parent, block, depth+1, gasTracker, caller, replyResp.Messages)
		if err != nil {
			return nil, err
		}
		events = append(events, moreEvents...)
	}
	return events, nil
}

// invokeReply wraps the reply call in its own discardable sub-cache,
// exactly like Dispatch does for a top-level message — reply is a contract
// re-entry in its own right and its writes revert atomically on failure.
func (e *Engine) invokeReply(parent store.Shared, block wire.BlockInfo, contract wire.Address, gasTracker *gas.Tracker, msg ReplyMsg) (Response, []wire.Event, error) {
	batched := store.NewBatched(parent)
	child := store.NewShared(batched)
	resp, err := e.callReply(child, block, contract, gasTracker, msg)
	if err != nil {
		batched.Discard()
		return Response{}, nil, err
	}
	if ferr := batched.Flush(); ferr != nil {
		return Response{}, nil, apperror.WrapStdError(ferr, "txapp: flush reply cache")
	}
	events := append([]wire.Event{replyEvent(contract, msg.ID)}, resp.Events...)
	return resp, events, nil
}
