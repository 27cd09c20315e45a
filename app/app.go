// Package app implements the kernel's top-level deterministic state
// transition function of spec.md §2: App ties the committed JMT, the
// physical key-value store txapp executes against, and the transaction
// lifecycle engine into one FinalizeBlock entry point, plus the /app,
// /store and /simulate query paths of spec.md §6.
//
// Grounded structurally on the teacher's core/virtual_machine.go
// SandboxManager pattern of a single long-lived owner wiring together
// shorter-lived per-call state, generalized here from a VM-instance
// registry to the block-level orchestration of store.Batched, jmt.Tree
// and txapp.Engine described in spec.md §2's data-flow paragraph and
// §9's shared-interior-mutable-state guidance.
package app

import (
	"sort"

	"github.com/sirupsen/logrus"

	"chainkernel/gas"
	"chainkernel/jmt"
	"chainkernel/pkg/apperror"
	"chainkernel/registry"
	"chainkernel/sdkcontext"
	"chainkernel/store"
	"chainkernel/txapp"
	"chainkernel/vm"
	"chainkernel/wire"
)

// App is a pure function of (prev_state_root, block_header, []tx) once
// constructed: given the same Physical/Tree contents and the same inputs,
// FinalizeBlock produces byte-identical outputs, per spec.md §2.
type App struct {
	ChainID  string
	Physical store.KVStore
	Tree     *jmt.Tree
	Engine   *txapp.Engine
	Reg      *registry.Registry
	Logger   *logrus.Logger

	// LastBlock is the BlockInfo most recently finalized (or the genesis
	// block, once InitGenesis has run), used as the context for /app and
	// /store queries issued between blocks.
	LastBlock wire.BlockInfo
}

// New constructs an App. physical is the raw key-value store backing
// committed contract/core state; treeBacking is a separate KVStore the JMT
// uses for its own node/value bookkeeping — kept distinct per spec.md §9
// ("mirror this Batched's writes into a second structure keyed differently
// from the parent store"), so the physical store never needs to understand
// JMT node encoding to answer a plain read.
func New(chainID string, physical, treeBacking store.KVStore, reg *registry.Registry, vmImpl vm.Vm, api sdkcontext.Api, queryDepth, messageDepth uint32, logger *logrus.Logger) *App {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &App{
		ChainID:  chainID,
		Physical: physical,
		Tree:     jmt.NewTree(treeBacking),
		Engine:   txapp.New(chainID, reg, vmImpl, api, queryDepth, messageDepth, logger),
		Reg:      reg,
		Logger:   logger,
	}
}

// InitGenesis seeds the chain's configuration and commits it as version 0,
// per spec.md §3's versioning rule ("a fresh chain starts at version 0
// after the genesis batch is committed"). seed runs first, against the
// same cache the resulting config is written into, and returns the config
// to commit — letting a caller bootstrap core contracts (the bank, the
// taxman) and only then name their freshly-derived addresses in the
// ChainConfig it hands back. Physical store and JMT must move together,
// so genesis contract deployment belongs inside seed rather than in a
// flush the caller performs on its own beforehand. InitGenesis must be
// called exactly once, before the first FinalizeBlock.
func (a *App) InitGenesis(genesisTime int64, seed func(store.Shared) (wire.ChainConfig, error)) (wire.BlockOutcome, error) {
	if a.Tree.Version() != 0 || a.Tree.RootHash() != jmt.EmptyTreeHash {
		return wire.BlockOutcome{}, apperror.AppError("app: InitGenesis called on a non-empty chain")
	}
	block := wire.BlockInfo{Height: 0, Time: genesisTime}

	blockBatched := store.NewBatched(a.Physical)
	blockShared := store.NewShared(blockBatched)

	cfg, err := seed(blockShared)
	if err != nil {
		return wire.BlockOutcome{}, apperror.WrapStdError(err, "app: init genesis seed")
	}

	coreRW := store.NewProvider(blockShared, txapp.CoreNamespace(), true)
	if err := a.Reg.SetConfig(coreRW, cfg); err != nil {
		return wire.BlockOutcome{}, apperror.WrapStdError(err, "app: init genesis config")
	}

	root, err := a.commit(blockBatched)
	if err != nil {
		return wire.BlockOutcome{}, err
	}
	a.LastBlock = block
	return wire.BlockOutcome{NewStateRoot: root}, nil
}

// FinalizeBlock is the App's central operation: it runs every tx through
// the five-phase lifecycle in block order, then every cron job due at this
// height, accumulating writes in one block-wide cache layered on the
// committed physical store, and finally flushes that cache into both the
// physical store and the JMT, producing the new state root. Per spec.md
// §5, this never parallelizes across transactions — each RunTx call
// completes before the next begins.
func (a *App) FinalizeBlock(block wire.BlockInfo, txs []wire.Tx) (wire.BlockOutcome, error) {
	blockBatched := store.NewBatched(a.Physical)
	blockShared := store.NewShared(blockBatched)

	txOutcomes := make([]wire.TxOutcome, 0, len(txs))
	for _, tx := range txs {
		outcome, err := a.Engine.RunTx(blockShared, block, tx, sdkcontext.AuthFinalize)
		if err != nil {
			// RunTx has already discarded this tx's own cache (including
			// the finalize_fee-failed case); a non-nil error here is
			// purely the operator-visible signal that an invariant was
			// violated, per spec.md §4.8's S4 rule. The block continues.
			a.Logger.WithFields(logrus.Fields{
				"height": block.Height,
				"sender": tx.Sender.String(),
			}).Errorf("app: tx rolled back as an invariant violation: %s", err)
		}
		txOutcomes = append(txOutcomes, outcome)
	}

	cronOutcomes, err := a.runCronJobs(blockShared, block)
	if err != nil {
		return wire.BlockOutcome{}, err
	}

	root, err := a.commit(blockBatched)
	if err != nil {
		return wire.BlockOutcome{}, err
	}
	a.LastBlock = block
	return wire.BlockOutcome{NewStateRoot: root, TxOutcomes: txOutcomes, CronOutcomes: cronOutcomes}, nil
}

// runCronJobs invokes every contract registered in the chain config's
// Cronjobs map whose interval divides the current block height, in
// deterministic (address-sorted) order — map iteration order in Go is
// randomized, and App must be a pure function of its inputs per spec.md
// §2, so any iteration over ChainConfig.Cronjobs must be sorted first.
func (a *App) runCronJobs(shared store.Shared, block wire.BlockInfo) ([]wire.CronOutcome, error) {
	cfg, err := a.Engine.ChainConfig(shared)
	if err != nil {
		return nil, apperror.WrapStdError(err, "app: load chain config for cron")
	}
	if len(cfg.Cronjobs) == 0 {
		return nil, nil
	}

	due := make([]wire.Address, 0, len(cfg.Cronjobs))
	for addr, interval := range cfg.Cronjobs {
		if interval == 0 {
			continue
		}
		if block.Height%interval == 0 {
			due = append(due, addr)
		}
	}
	sort.Slice(due, func(i, j int) bool { return lessAddress(due[i], due[j]) })

	outcomes := make([]wire.CronOutcome, 0, len(due))
	for _, addr := range due {
		outcomes = append(outcomes, a.Engine.RunCron(shared, block, addr))
	}
	return outcomes, nil
}

func lessAddress(a, b wire.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// commit promotes blockBatched's accumulated writes into both the
// physical store and the JMT, producing the new root. ops is read before
// either side is mutated, so the JMT batch and the physical flush apply
// the exact same diff.
func (a *App) commit(blockBatched *store.Batched) (wire.Hash, error) {
	ops := blockBatched.Ops()
	batch := &jmt.Batch{}
	for _, op := range ops {
		if op.IsDelete {
			batch.Delete(op.Key)
		} else {
			batch.Insert(op.Key, op.Value)
		}
	}

	if _, _, err := a.Tree.Flush(batch); err != nil {
		return wire.Hash{}, apperror.AppError("app: flush state commitment batch: %s", err)
	}
	if err := blockBatched.Flush(); err != nil {
		a.Tree.Discard()
		return wire.Hash{}, apperror.AppError("app: flush physical store batch: %s", err)
	}
	if err := a.Tree.Commit(); err != nil {
		return wire.Hash{}, apperror.AppError("app: commit state commitment batch: %s", err)
	}
	return a.Tree.RootHash(), nil
}

// committedShared returns a fresh, read-only-by-convention Shared handle
// directly over the physical store, for query paths that must not create
// a Batched overlay — every query context built on it is itself
// constructed with stateMutable=false regardless.
func (a *App) committedShared() store.Shared {
	return store.NewShared(a.Physical)
}

// gasTrackerForQuery returns a fresh unlimited gas tracker, since queries
// run outside of any transaction's gas budget but still meter nested
// WasmSmart calls for the adapter's own bookkeeping.
func gasTrackerForQuery() *gas.Tracker {
	return gas.NewTracker(nil)
}
