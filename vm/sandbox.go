package vm

import "fmt"

// Sandbox bounds how many times a guest may recurse into a smart query
// through query_chain before the host refuses, per spec.md §4.4's
// query_depth limit. Adapted from the teacher's
// core/vm_sandbox_management.go SandboxInfo/StartSandbox pattern:
// repurposed from a free-standing global registry keyed by contract
// address into per-Instance state threaded through BuildInstance. The
// analogous message-depth limit on the write path is enforced by
// txapp's submessage dispatcher, not here — the write path never nests
// inside a single Instance the way query_chain does.
type Sandbox struct {
	maxQueryDepth uint32
	queryDepth    uint32
}

// NewSandbox returns a Sandbox enforcing maxQueryDepth.
func NewSandbox(maxQueryDepth uint32) *Sandbox {
	return &Sandbox{maxQueryDepth: maxQueryDepth}
}

// EnterQuery records one more level of query recursion, failing once
// maxQueryDepth is reached.
func (s *Sandbox) EnterQuery() error {
	if s.queryDepth >= s.maxQueryDepth {
		return fmt.Errorf("vm: query depth exceeds limit of %d", s.maxQueryDepth)
	}
	s.queryDepth++
	return nil
}

// ExitQuery releases one level of query recursion.
func (s *Sandbox) ExitQuery() {
	if s.queryDepth > 0 {
		s.queryDepth--
	}
}
