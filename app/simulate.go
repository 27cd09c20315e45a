package app

import (
	"chainkernel/sdkcontext"
	"chainkernel/store"
	"chainkernel/wire"
)

// Simulate runs tx through the full five-phase lifecycle against the
// current committed state under AuthSimulate, per spec.md §4.8's note that
// simulation never commits: the Batched layer it runs against is built,
// used, and discarded regardless of outcome.
func (a *App) Simulate(unsigned wire.UnsignedTx) (wire.SimulateResponse, error) {
	tx := wire.Tx{
		Sender:   unsigned.Sender,
		GasLimit: unsigned.GasLimit,
		Msgs:     unsigned.Msgs,
		Data:     unsigned.Data,
	}

	scratch := store.NewBatched(a.Physical)
	scratchShared := store.NewShared(scratch)

	outcome, err := a.Engine.RunTx(scratchShared, a.LastBlock, tx, sdkcontext.AuthSimulate)
	if err != nil {
		return wire.SimulateResponse{}, err
	}
	return wire.SimulateResponse{Outcome: outcome}, nil
}
