package fixtures

import (
	"encoding/json"
	"fmt"

	"chainkernel/vm"
)

// senderAuthenticateResponse mirrors txapp.AuthenticateResponse without
// importing txapp, which would create an import cycle (txapp's own tests
// import fixtures).
type senderAuthenticateResponse struct {
	RequestBackrun bool `json:"request_backrun"`
}

// Account returns the NativeFactory for an account-abstraction contract
// fixture: tx.Sender is itself a contract address, and this is the
// simplest one, authenticating every transaction unconditionally and
// optionally requesting the backrun phase. failBackrun makes backrun
// always return an error, exercising spec.md §4.8's rule that a failed
// backrun reverts only its own phase rather than the whole transaction.
func Account(requestBackrun, failBackrun bool) vm.NativeFactory {
	return func(env vm.NativeEnv) vm.NativeHandler {
		return func(entryPoint string, ctx vm.GuestContext, params ...[]byte) ([]byte, error) {
			switch entryPoint {
			case "instantiate":
				return json.Marshal(struct{}{})
			case "authenticate":
				data, err := json.Marshal(senderAuthenticateResponse{RequestBackrun: requestBackrun})
				if err != nil {
					return nil, err
				}
				resp := struct {
					Data json.RawMessage `json:"data"`
				}{Data: data}
				return json.Marshal(resp)
			case "backrun":
				if failBackrun {
					return nil, fmt.Errorf("fixtures: backrun intentionally failed")
				}
				return json.Marshal(struct{}{})
			default:
				return nil, fmt.Errorf("fixtures: account has no entry point %q", entryPoint)
			}
		}
	}
}
