// Package vcpu models one virtual CPU's supervisor-mode register file and
// its save/restore against trap context, grounded on the teacher's CPU
// state struct (internal/hv/riscv/rv64/cpu.go) but narrowed to exactly the
// supervisor-visible subset a machine-mode monitor owns on a real core,
// plus the lazy floating-point dirty-bit tracking a software emulator
// never needed because it owned every register already.
package vcpu

import (
	"sync"

	"github.com/tinyrange/rvmonitor/internal/csr"
	"github.com/tinyrange/rvmonitor/internal/trap"
)

// PrivSupervisor is the privilege level every fresh SupervisorState returns
// to; the monitor never hands a vCPU to anything but supervisor mode.
const PrivSupervisor uint8 = 1

// SupervisorState is a complete snapshot of one vCPU: the CSRs a guest
// kernel can see, its integer registers, and the machine-mode fields that
// govern where and in what mode execution resumes.
type SupervisorState struct {
	Sstatus    uint64
	Sie        uint64
	Stvec      uint64
	Scounteren uint64
	Sscratch   uint64
	Sepc       uint64
	Scause     uint64
	Stval      uint64
	Sip        uint64
	Satp       uint64

	// Delegation masks, relevant only when the N-extension is present;
	// saved and restored alongside the rest of the supervisor CSR set.
	Medeleg uint64
	Mideleg uint64

	RetPC   uint64
	RetMode uint8

	// X[0] is never populated: x0 is hardwired to zero and never stacked.
	X [32]uint64
}

// NewSupervisorState builds a fresh vCPU register file per the Linux boot
// protocol: a0 = hart ID, a1 = device-tree blob physical address,
// a2 = total vCPU count, privilege pinned to supervisor, entry at
// kernelEntry.
func NewSupervisorState(hartID, dtbAddr, vcpuCount, kernelEntry uint64) *SupervisorState {
	s := &SupervisorState{
		RetPC:   kernelEntry,
		RetMode: PrivSupervisor,
	}
	s.X[10] = hartID
	s.X[11] = dtbAddr
	s.X[12] = vcpuCount
	return s
}

// SaveCPU stores the twelve supervisor CSRs and x1..x31 from the stacked
// trap context into s. Must only be called from trap context: it assumes
// ctx reflects the register-stacking layout the low-level entry stub
// establishes.
func SaveCPU(ctx *trap.TrapContext, s *SupervisorState) {
	s.Sstatus = csr.Read(csr.Sstatus)
	s.Sie = csr.Read(csr.Sie)
	s.Stvec = csr.Read(csr.Stvec)
	s.Scounteren = csr.Read(csr.Scounteren)
	s.Sscratch = csr.Read(csr.Sscratch)
	s.Sepc = csr.Read(csr.Sepc)
	s.Scause = csr.Read(csr.Scause)
	s.Stval = csr.Read(csr.Stval)
	s.Sip = csr.Read(csr.Sip)
	s.Satp = csr.Read(csr.Satp)
	s.Medeleg = csr.Read(csr.Medeleg)
	s.Mideleg = csr.Read(csr.Mideleg)

	for i := 1; i < 32; i++ {
		s.X[i] = ctx.Registers[i]
	}
}

// LoadCPU restores s's CSRs and general registers, writing x1..x31 back
// into the stacked trap context so the low-level stub returns with them.
func LoadCPU(ctx *trap.TrapContext, s *SupervisorState) {
	csr.Write(csr.Sstatus, s.Sstatus)
	csr.Write(csr.Sie, s.Sie)
	csr.Write(csr.Stvec, s.Stvec)
	csr.Write(csr.Scounteren, s.Scounteren)
	csr.Write(csr.Sscratch, s.Sscratch)
	csr.Write(csr.Sepc, s.Sepc)
	csr.Write(csr.Scause, s.Scause)
	csr.Write(csr.Stval, s.Stval)
	csr.Write(csr.Sip, s.Sip)
	csr.Write(csr.Satp, s.Satp)
	csr.Write(csr.Medeleg, s.Medeleg)
	csr.Write(csr.Mideleg, s.Mideleg)

	for i := 1; i < 32; i++ {
		ctx.Registers[i] = s.X[i]
	}
}

// FPWidth tags which variant of SupervisorFPState a vCPU was built with,
// chosen once from CPU feature bits at creation and never changed.
type FPWidth int

const (
	FPAbsent FPWidth = iota
	FP32
	FP64
)

// SupervisorFPState is a vCPU's floating-point register file and control
// word. Width is fixed at creation; F holds 32 lanes regardless of width,
// with the upper half of each unused under FP32.
type SupervisorFPState struct {
	Width  FPWidth
	F      [32]uint64
	Fflags uint8
	Frm    uint8
}

// mstatus.FS field: the hardware's own dirty-tracking for the FP register
// file. This CSR field is shared with the hardware — read as an input to
// decide whether to save, then written as an output to mark state clean.
const (
	fsOff     = 0
	fsInitial = 1
	fsClean   = 2
	fsDirty   = 3

	mstatusFSShift = 13
	mstatusFSMask  = 0x3
)

// FPBackend performs the actual FP register file transfer, which on real
// hardware requires fmv/fsd-class instructions the low-level stub supplies.
// Swappable for the same reason csr.Backend is: tests substitute a fake.
type FPBackend interface {
	ReadFP() (regs [32]uint64, fflags, frm uint8)
	WriteFP(regs [32]uint64, fflags, frm uint8)
}

var (
	fpMu      sync.RWMutex
	fpBackend FPBackend = noFPBackend{}
)

// SetFPBackend installs the FP register transfer backend.
func SetFPBackend(b FPBackend) {
	fpMu.Lock()
	defer fpMu.Unlock()
	fpBackend = b
}

// SaveFP saves f0..f31 and the FP control/status word into s, but only if
// mstatus reports the FP state as dirty. If s's variant is absent, or the
// hardware reports the FP state as off, it returns immediately without
// touching s.
func SaveFP(mstatus uint64, s *SupervisorFPState) {
	if s.Width == FPAbsent {
		return
	}
	fs := (mstatus >> mstatusFSShift) & mstatusFSMask
	if fs != fsDirty {
		return
	}
	fpMu.RLock()
	regs, fflags, frm := fpBackend.ReadFP()
	fpMu.RUnlock()
	s.F = regs
	s.Fflags = fflags
	s.Frm = frm
}

// LoadCPUAndFP restores CPU state via LoadCPU, then — if fp's variant is
// present and the restored sstatus does not report FP as off — restores
// the FP registers and marks the live FP state field clean, so the next
// SaveFP can tell whether the guest dirtied any register this quantum.
func LoadCPUAndFP(ctx *trap.TrapContext, s *SupervisorState, fp *SupervisorFPState) {
	LoadCPU(ctx, s)

	if fp.Width == FPAbsent {
		return
	}
	fs := (s.Sstatus >> mstatusFSShift) & mstatusFSMask
	if fs == fsOff {
		return
	}

	fpMu.RLock()
	fpBackend.WriteFP(fp.F, fp.Fflags, fp.Frm)
	fpMu.RUnlock()

	csr.ClearMask(csr.Mstatus, mstatusFSMask<<mstatusFSShift)
	csr.Set(csr.Mstatus, fsClean<<mstatusFSShift)
}

type noFPBackend struct{}

func (noFPBackend) ReadFP() (regs [32]uint64, fflags, frm uint8) { return }
func (noFPBackend) WriteFP([32]uint64, uint8, uint8)             {}
