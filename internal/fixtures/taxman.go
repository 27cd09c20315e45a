package fixtures

import (
	"encoding/json"
	"fmt"

	"chainkernel/collections"
	"chainkernel/num"
	"chainkernel/registry"
	"chainkernel/vm"
	"chainkernel/wire"
)

// TaxmanConfig is the taxman fixture's instantiate payload: a flat per-gas
// price in Denom, escrowed to Collector at withhold_fee and reconciled
// against actual gas used at finalize_fee.
type TaxmanConfig struct {
	Denom       wire.Denom   `json:"denom"`
	PricePerGas num.Uint128  `json:"price_per_gas"`
	Collector   wire.Address `json:"collector"`
	Bank        wire.Address `json:"bank"`
}

var (
	taxmanConfig  = collections.NewJSONItem[TaxmanConfig]("config")
	taxmanPending = collections.NewJSONMap[wire.Address, num.Uint128]("pending", addrKey{})
)

type taxmanTx struct {
	Sender   wire.Address `json:"sender"`
	GasLimit uint64       `json:"gas_limit"`
}

type taxmanOutcome struct {
	Ok      bool   `json:"ok"`
	GasUsed uint64 `json:"gas_used"`
}

// Taxman returns the NativeFactory for the fee-withholding contract
// fixture exercising spec.md §4.8's withhold_fee/finalize_fee phases.
func Taxman() vm.NativeFactory {
	return func(env vm.NativeEnv) vm.NativeHandler {
		return func(entryPoint string, ctx vm.GuestContext, params ...[]byte) ([]byte, error) {
			switch entryPoint {
			case "instantiate":
				var cfg TaxmanConfig
				if err := json.Unmarshal(params[0], &cfg); err != nil {
					return nil, err
				}
				if err := taxmanConfig.Save(env.Storage, cfg); err != nil {
					return nil, err
				}
				return json.Marshal(struct{}{})
			case "withhold_fee":
				return taxmanWithhold(env, params[0])
			case "finalize_fee":
				return taxmanFinalize(env, params[0], params[1])
			default:
				return nil, fmt.Errorf("fixtures: taxman has no entry point %q", entryPoint)
			}
		}
	}
}

func taxmanWithhold(env vm.NativeEnv, txRaw []byte) ([]byte, error) {
	var tx taxmanTx
	if err := json.Unmarshal(txRaw, &tx); err != nil {
		return nil, err
	}
	cfg, err := taxmanConfig.Load(env.Storage)
	if err != nil {
		return nil, err
	}
	reserve, err := cfg.PricePerGas.CheckedMul(num.NewUint128FromUint64(tx.GasLimit))
	if err != nil {
		return nil, fmt.Errorf("fixtures: taxman fee reserve overflow: %w", err)
	}
	if err := taxmanPending.Save(env.Storage, tx.Sender, reserve); err != nil {
		return nil, err
	}
	if reserve.IsZero() {
		return json.Marshal(struct{}{})
	}

	coins, err := wire.NewCoins(wire.Coin{Denom: cfg.Denom, Amount: reserve})
	if err != nil {
		return nil, err
	}
	msg, err := forceTransferMsg(cfg.Bank, tx.Sender, cfg.Collector, coins)
	if err != nil {
		return nil, err
	}
	resp := struct {
		Messages []json.RawMessage `json:"messages"`
	}{Messages: []json.RawMessage{msg}}
	return json.Marshal(resp)
}

func taxmanFinalize(env vm.NativeEnv, txRaw, outcomeRaw []byte) ([]byte, error) {
	var tx taxmanTx
	if err := json.Unmarshal(txRaw, &tx); err != nil {
		return nil, err
	}
	var outcome taxmanOutcome
	if err := json.Unmarshal(outcomeRaw, &outcome); err != nil {
		return nil, err
	}
	cfg, err := taxmanConfig.Load(env.Storage)
	if err != nil {
		return nil, err
	}
	reserved, ok, err := taxmanPending.May(env.Storage, tx.Sender)
	if err != nil {
		return nil, err
	}
	if !ok {
		return json.Marshal(struct{}{})
	}
	if err := taxmanPending.Remove(env.Storage, tx.Sender); err != nil {
		return nil, err
	}

	actual, err := cfg.PricePerGas.CheckedMul(num.NewUint128FromUint64(outcome.GasUsed))
	if err != nil {
		return nil, fmt.Errorf("fixtures: taxman actual fee overflow: %w", err)
	}
	if actual.Cmp(reserved) >= 0 {
		return json.Marshal(struct{}{})
	}
	refund, err := reserved.CheckedSub(actual)
	if err != nil {
		return nil, err
	}
	if refund.IsZero() {
		return json.Marshal(struct{}{})
	}
	coins, err := wire.NewCoins(wire.Coin{Denom: cfg.Denom, Amount: refund})
	if err != nil {
		return nil, err
	}
	msg, err := forceTransferMsg(cfg.Bank, cfg.Collector, tx.Sender, coins)
	if err != nil {
		return nil, err
	}
	resp := struct {
		Messages []json.RawMessage `json:"messages"`
	}{Messages: []json.RawMessage{msg}}
	return json.Marshal(resp)
}

// forceTransferMsg builds the JSON-encoded SubMsg that routes from->to
// through bank's force_transfer execute handler.
func forceTransferMsg(bank, from, to wire.Address, coins wire.Coins) (json.RawMessage, error) {
	req := registry.BankExecute{ForceTransfer: &registry.BankForceTransferExecute{From: from, To: to, Coins: coins}}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	execMsg := wire.Message{Kind: wire.KindExecute, Execute: &wire.ExecuteMsg{Contract: bank, Msg: reqBytes}}
	sub := struct {
		ID      uint64          `json:"id"`
		Msg     wire.Message    `json:"msg"`
		ReplyOn string          `json:"reply_on"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{ID: 0, Msg: execMsg, ReplyOn: "never"}
	return json.Marshal(sub)
}
