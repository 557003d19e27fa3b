// Package policy types the boundary between this module and the
// surrounding hardware-independent scheduler/capsule manager — an
// external collaborator this module consumes actions from and exposes
// state to, but never implements. The shape is grounded directly on
// internal/hv's Hypervisor/VirtualMachine/VirtualCPU interfaces, narrowed
// to the handful of operations the trap dispatcher, SBI handler, and
// emulator need from it, so those packages can be unit-tested against a
// fake policy the same way internal/hv/riscv/riscv.go is tested against
// hv's interfaces.
package policy

import "github.com/tinyrange/rvmonitor/internal/sbi"

// Hypervisor is the top-level policy handle: the set of capsules
// currently partitioned out of the physical platform.
type Hypervisor interface {
	Capsule(id uint64) (Capsule, bool)
}

// Capsule is an isolated execution environment: one or more vCPUs
// sharing a contiguous RAM area and a synthesized device tree.
type Capsule interface {
	ID() uint64
	RAMBase() uint64
	RAMSize() uint64
	VirtualCPU(id int) (VirtualCPU, bool)
}

// VirtualCPU is a single virtual core within a Capsule. Dispatch is
// called once per trap that resolves to an sbi.Action the monitor itself
// cannot satisfy (console I/O, lifecycle changes, cross-capsule service
// calls); the policy layer is responsible for carrying it out and, for
// actions that produce a result the guest should see, folding that
// result back into the vCPU's register state before it resumes.
type VirtualCPU interface {
	ID() int
	Dispatch(action sbi.Action) error
}
