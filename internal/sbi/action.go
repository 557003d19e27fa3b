// Package sbi decodes the Supervisor Binary Interface call convention and
// emits an abstract Action for the surrounding policy layer to act on.
// Grounded on the teacher's software SBI handler
// (internal/hv/riscv/rv64/sbi.go) for the extension/function layout, but
// restructured as pure decoding: this handler never touches a console or
// scheduler directly, it only classifies the call and a hands back a
// value describing what the policy layer should do.
package sbi

import "github.com/tinyrange/rvmonitor/internal/timer"

// Error is an SBI return code. Negative values indicate failure; zero is
// success. All failures surface to the guest through the a0 register —
// the handler never halts the monitor on a bad call.
type Error int64

const (
	Success          Error = 0
	Failed           Error = -1
	NotSupported     Error = -2
	InvalidParam     Error = -3
	Denied           Error = -4
	InvalidAddress   Error = -5
	AlreadyAvailable Error = -6
)

// ActionKind tags the variant of Action a call produced.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionYield
	ActionTerminate
	ActionRestart
	ActionTimerIRQAt
	ActionOutputChar
	ActionInputChar
	ActionConsoleBufferWriteChar
	ActionConsoleBufferReadChar
	ActionHypervisorBufferReadChar
	ActionRegisterService
	ActionUnknown
)

// Action is the tagged value emitted to the policy layer. Only the fields
// relevant to Kind are meaningful.
type Action struct {
	Kind        ActionKind
	TimerTarget timer.TimerValue
	Char        byte
	CapsuleID   uint64
	ServiceID   uint64
	Ext, Fn     uint64
}

// Result is what a Handle call returns: the register values to write back
// (a0 = error code, a1 = value, optionally a2 for vendor calls), and the
// Action the policy layer should perform.
type Result struct {
	Err      Error
	Value    uint64
	Extra    uint64
	HasExtra bool
	Action   Action
}

// Failed overwrites r's return value with a failure code, preserving its
// Action. For use by the policy layer once it has inspected the action and
// decided the call cannot be honored.
func (r Result) Failed(reason Error) Result {
	r.Err = reason
	r.Value = 0
	r.HasExtra = false
	return r
}

// WithResult overwrites r's return value with a successful result,
// preserving its Action.
func (r Result) WithResult(value uint64) Result {
	r.Err = Success
	r.Value = value
	r.HasExtra = false
	return r
}

// WithResult1Extra overwrites r's return value with a successful result
// plus a second result word in a2, for vendor calls that return two values.
func (r Result) WithResult1Extra(value, extra uint64) Result {
	r.Err = Success
	r.Value = value
	r.Extra = extra
	r.HasExtra = true
	return r
}

// WithResultAsError places value directly in the a0 error slot as a
// success indicator, for guest kernels that read their "success" result
// out of the error register instead of a1.
func (r Result) WithResultAsError(value uint64) Result {
	r.Err = Error(value)
	r.Value = 0
	r.HasExtra = false
	return r
}

// Registers is the subset of the SBI call convention this package reads
// and writes: a7/a6 select the call, a0..a5 carry arguments in, and
// a0/a1/a2 carry the result back out.
type Registers interface {
	GetX(n int) uint64
	SetX(n int, v uint64)
}

// Apply writes r's return values into regs following the SBI convention.
func (r Result) Apply(regs Registers) {
	regs.SetX(10, uint64(int64(r.Err)))
	regs.SetX(11, r.Value)
	if r.HasExtra {
		regs.SetX(12, r.Extra)
	}
}
