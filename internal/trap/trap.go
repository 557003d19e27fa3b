// Package trap decodes the machine-mode cause CSR into a portable Trap
// record and acknowledges interrupt-class causes, grounded on the cause
// table and trap-entry shape of the teacher's software CPU
// (internal/hv/riscv/rv64/cpu.go), restyled around the monitor's use of a
// real hardware mcause register rather than a software-raised exception.
package trap

import "github.com/tinyrange/rvmonitor/internal/csr"

// Severity is a hint to the policy layer about whether a trap should
// default to terminating the guest.
type Severity int

const (
	Fatal Severity = iota
	NonFatal
)

// Type distinguishes a synchronous exception from an asynchronous interrupt.
type Type int

const (
	Exception Type = iota
	Interrupt
)

// Cause enumerates the trap causes this monitor understands by name. Codes
// it does not recognize map to CauseUnknown rather than being rejected.
type Cause int

const (
	CauseInsnAddrMisaligned Cause = iota
	CauseInsnAccessFault
	CauseIllegalInsn
	CauseBreakpoint
	CauseLoadAddrMisaligned
	CauseLoadAccessFault
	CauseStoreAddrMisaligned
	CauseStoreAccessFault
	CauseEcallFromU
	CauseEcallFromS
	CauseEcallFromM
	CauseInsnPageFault
	CauseLoadPageFault
	CauseStorePageFault
	CauseSSoftwareInt
	CauseMSoftwareInt
	CauseSTimerInt
	CauseMTimerInt
	CauseSExternalInt
	CauseMExternalInt
	CauseUnknown
)

// Trap is the portable record the dispatcher hands to the policy layer.
type Trap struct {
	Severity      Severity
	Type          Type
	Cause         Cause
	FromPrivilege uint8
	PC            uint64
	SP            uint64
}

// TrapContext is the 32-element register array the low-level entry stub
// stacks on trap entry; slot 2 holds the stack pointer (x2/sp), matching
// the RISC-V calling convention. Mutating a slot at dispatch time directly
// affects the value loaded into the corresponding x-register on return.
type TrapContext struct {
	Registers [32]uint64
}

const regSP = 2

// GetX and SetX give TrapContext the same register-access shape
// sbi.Registers expects, so a trap's stacked context can be passed
// straight into an SBI result's Apply without an adapter type.
func (ctx *TrapContext) GetX(n int) uint64    { return ctx.Registers[n] }
func (ctx *TrapContext) SetX(n int, v uint64) { ctx.Registers[n] = v }

const (
	mstatusMPPShift = 11
	mstatusMPPMask  = 0x3
)

type causeEntry struct {
	severity Severity
	cause    Cause
}

// exceptionTable and interruptTable are the static (type, code) -> cause
// mapping the dispatcher consults; codes absent from either map to
// CauseUnknown/NonFatal rather than causing a lookup failure.
var exceptionTable = map[uint64]causeEntry{
	0:  {Fatal, CauseInsnAddrMisaligned},
	1:  {Fatal, CauseInsnAccessFault},
	2:  {Fatal, CauseIllegalInsn},
	3:  {NonFatal, CauseBreakpoint},
	4:  {Fatal, CauseLoadAddrMisaligned},
	5:  {Fatal, CauseLoadAccessFault},
	6:  {Fatal, CauseStoreAddrMisaligned},
	7:  {Fatal, CauseStoreAccessFault},
	8:  {NonFatal, CauseEcallFromU},
	9:  {NonFatal, CauseEcallFromS},
	11: {NonFatal, CauseEcallFromM},
	12: {NonFatal, CauseInsnPageFault},
	13: {NonFatal, CauseLoadPageFault},
	15: {NonFatal, CauseStorePageFault},
}

var interruptTable = map[uint64]causeEntry{
	1:  {NonFatal, CauseSSoftwareInt},
	3:  {NonFatal, CauseMSoftwareInt},
	5:  {NonFatal, CauseSTimerInt},
	7:  {NonFatal, CauseMTimerInt},
	9:  {NonFatal, CauseSExternalInt},
	11: {NonFatal, CauseMExternalInt},
}

// Dispatch decodes mcause (with mepc and mstatus supplying pc and
// from_privilege) into a Trap. It always returns, for every possible
// 64-bit mcause value.
func Dispatch(mcause, mepc, mstatus uint64, ctx *TrapContext) Trap {
	const topBit = uint64(1) << 63
	isInterrupt := mcause&topBit != 0
	code := mcause &^ topBit

	var kind Type
	var entry causeEntry
	var ok bool
	if isInterrupt {
		kind = Interrupt
		entry, ok = interruptTable[code]
	} else {
		kind = Exception
		entry, ok = exceptionTable[code]
	}
	if !ok {
		entry = causeEntry{NonFatal, CauseUnknown}
	}

	return Trap{
		Severity:      entry.severity,
		Type:          kind,
		Cause:         entry.cause,
		FromPrivilege: uint8((mstatus >> mstatusMPPShift) & mstatusMPPMask),
		PC:            mepc,
		SP:            ctx.Registers[regSP],
	}
}

// Acknowledge clears the pending bit in mip matching t's cause for
// software, timer, and external interrupts. Exceptions self-clear and
// unmapped causes are ignored silently.
func Acknowledge(t Trap) {
	if t.Type != Interrupt {
		return
	}
	var bit uint64
	switch t.Cause {
	case CauseSSoftwareInt:
		bit = 1 << 1
	case CauseMSoftwareInt:
		bit = 1 << 3
	case CauseSTimerInt:
		bit = 1 << 5
	case CauseMTimerInt:
		bit = 1 << 7
	case CauseSExternalInt:
		bit = 1 << 9
	case CauseMExternalInt:
		bit = 1 << 11
	default:
		return
	}
	csr.ClearMask(csr.Mip, bit)
}
