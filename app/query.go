package app

import (
	"chainkernel/wire"
)

// Query answers a read-only request against the most recently committed
// state, per spec.md §4.5 and §6's /app path. block is normally a.LastBlock
// — callers that need a query to observe a different height's metadata (a
// historical WasmSmart call replaying at the tip's state but reporting an
// earlier block, for instance) may pass any BlockInfo, since the committed
// data queried is always the current tip regardless.
func (a *App) Query(block wire.BlockInfo, q wire.Query) wire.QueryResponse {
	shared := a.committedShared()
	querier := a.Engine.QuerierFor(shared, block, gasTrackerForQuery())

	result, err := querier.Answer(q)
	if err != nil {
		return wire.QueryResponse{Ok: false, Err: err.Error()}
	}
	return wire.QueryResponse{Ok: true, Result: result}
}
