package fixtures

import (
	"encoding/json"
	"fmt"

	"chainkernel/collections"
	"chainkernel/vm"
)

var (
	counterValue     = collections.NewJSONItem[int64]("value")
	counterLastReply = collections.NewJSONItem[string]("last_reply")
)

// counterReplyMsg mirrors txapp.ReplyMsg's Result.Ok/Err shape without
// importing txapp, which would create an import cycle.
type counterReplyMsg struct {
	ID     uint64 `json:"id"`
	Result struct {
		Ok  json.RawMessage `json:"ok,omitempty"`
		Err string          `json:"err,omitempty"`
	} `json:"result"`
}

type counterInstantiate struct {
	Initial int64 `json:"initial"`
}

type counterIncrementExecute struct {
	By int64 `json:"by"`
}

type counterExecute struct {
	Increment *counterIncrementExecute `json:"increment,omitempty"`
	Reset     *struct{}                `json:"reset,omitempty"`
}

type counterQuery struct {
	Count *struct{} `json:"count,omitempty"`
}

type counterCountResponse struct {
	Count int64 `json:"count"`
}

// Counter returns the NativeFactory for a minimal contract fixture exposing
// an Increment/Reset execute ABI, a Count query, and a cron_execute entry
// point that increments by one, used to exercise the plain
// instantiate/execute/query path and cron scheduling without any bank or
// fee involvement. It schedules no submessages itself; its reply entry
// point records the last submessage result under "last_reply".
func Counter() vm.NativeFactory {
	return func(env vm.NativeEnv) vm.NativeHandler {
		return func(entryPoint string, ctx vm.GuestContext, params ...[]byte) ([]byte, error) {
			switch entryPoint {
			case "instantiate":
				var m counterInstantiate
				if len(params) > 0 && len(params[0]) > 0 {
					if err := json.Unmarshal(params[0], &m); err != nil {
						return nil, err
					}
				}
				if err := counterValue.Save(env.Storage, m.Initial); err != nil {
					return nil, err
				}
				return json.Marshal(struct{}{})
			case "execute":
				return counterDo(env, params[0])
			case "query":
				return counterAsk(env, params[0])
			case "cron_execute":
				cur, _, err := counterValue.May(env.Storage)
				if err != nil {
					return nil, err
				}
				if err := counterValue.Save(env.Storage, cur+1); err != nil {
					return nil, err
				}
				return json.Marshal(struct{}{})
			case "reply":
				var msg counterReplyMsg
				if err := json.Unmarshal(params[0], &msg); err != nil {
					return nil, err
				}
				status := "ok"
				if msg.Result.Err != "" {
					status = "err:" + msg.Result.Err
				}
				if err := counterLastReply.Save(env.Storage, status); err != nil {
					return nil, err
				}
				return json.Marshal(struct{}{})
			default:
				return nil, fmt.Errorf("fixtures: counter has no entry point %q", entryPoint)
			}
		}
	}
}

// incrementGasCost is charged against env.Gas for every Increment call,
// standing in for the host-import cost table a real guest would be metered
// against.
const incrementGasCost = 1000

func counterDo(env vm.NativeEnv, raw []byte) ([]byte, error) {
	var req counterExecute
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	switch {
	case req.Increment != nil:
		if err := env.Gas.Consume(incrementGasCost); err != nil {
			return nil, err
		}
		cur, _, err := counterValue.May(env.Storage)
		if err != nil {
			return nil, err
		}
		next := cur + req.Increment.By
		if err := counterValue.Save(env.Storage, next); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})
	case req.Reset != nil:
		if err := counterValue.Save(env.Storage, 0); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})
	default:
		return nil, fmt.Errorf("fixtures: counter execute must populate exactly one variant")
	}
}

func counterAsk(env vm.NativeEnv, raw []byte) ([]byte, error) {
	var req counterQuery
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	if req.Count == nil {
		return nil, fmt.Errorf("fixtures: counter query must populate exactly one variant")
	}
	cur, _, err := counterValue.May(env.Storage)
	if err != nil {
		return nil, err
	}
	return json.Marshal(counterCountResponse{Count: cur})
}
