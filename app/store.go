package app

import (
	"encoding/json"

	"chainkernel/pkg/apperror"
	"chainkernel/wire"
)

// StoreQuery answers the /store path of spec.md §6: a raw read against the
// physical store, with an optional JSON-encoded Merkle proof against the
// JMT's current root.
//
// req.AtRootHash may only name the current root: Tree.Prove only proves
// against the tree's current committed root (see DESIGN.md's Open
// Questions), so a request naming any other root fails rather than
// silently proving against the wrong root.
func (a *App) StoreQuery(req wire.StoreRequest) (wire.StoreResponse, error) {
	if req.AtRootHash != nil && *req.AtRootHash != a.Tree.RootHash() {
		return wire.StoreResponse{}, apperror.StdError("app: historical root proofs are not supported, only the current root")
	}

	value, ok, err := a.Physical.Get(req.Key)
	if err != nil {
		return wire.StoreResponse{}, apperror.WrapStdError(err, "app: store query read")
	}
	if !ok {
		value = nil
	}

	resp := wire.StoreResponse{Value: value}
	if req.WithProof {
		proof, err := a.Tree.Prove(req.Key)
		if err != nil {
			return wire.StoreResponse{}, apperror.WrapStdError(err, "app: build store proof")
		}
		encoded, err := json.Marshal(proof)
		if err != nil {
			return wire.StoreResponse{}, apperror.WrapStdError(err, "app: encode store proof")
		}
		resp.Proof = encoded
	}
	return resp, nil
}
