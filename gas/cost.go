package gas

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// HostImport identifies one host-ABI call the VM adapter meters, per
// spec.md §4.4's fixed import set.
type HostImport int

const (
	CostDBRead HostImport = iota
	CostDBScanRecord
	CostDBWrite
	CostDBRemove
	CostHashByte
	CostSigVerify
	CostModuleLoad
	CostInstruction
)

// DefaultCost is charged for any HostImport that has slipped through the
// cracks, deliberately punitive and logged exactly once per missing entry
// — the same convention as the teacher's core/gas_table.go DefaultGasCost.
const DefaultCost uint64 = 100_000

// CostTable maps every HostImport to its fixed base rate. Rates are
// chain configuration: production deployments may tune them, but every
// honest implementation executing the same transaction must use the same
// table for the result to be deterministic across validators.
type CostTable struct {
	rates map[HostImport]uint64

	mu     sync.Mutex
	warned map[HostImport]bool
}

// DefaultCostTable returns the kernel's baseline cost schedule.
func DefaultCostTable() *CostTable {
	return &CostTable{
		rates: map[HostImport]uint64{
			CostDBRead:       100,
			CostDBScanRecord: 50,
			CostDBWrite:      200,
			CostDBRemove:     150,
			CostHashByte:     1,
			CostSigVerify:    2_000,
			CostModuleLoad:   50_000,
			CostInstruction:  1,
		},
		warned: make(map[HostImport]bool),
	}
}

// Cost returns the base gas cost for op. An op with no configured rate
// charges DefaultCost and is logged once.
func (t *CostTable) Cost(op HostImport) uint64 {
	if c, ok := t.rates[op]; ok {
		return c
	}
	t.mu.Lock()
	if !t.warned[op] {
		t.warned[op] = true
		logrus.Warnf("gas: missing cost for host import %d – charging default %d", op, DefaultCost)
	}
	t.mu.Unlock()
	return DefaultCost
}
