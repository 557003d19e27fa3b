// Package csr provides atomic read/write/clear primitives over the
// architectural control and status registers the monitor itself runs
// with — mstatus, mie/mip, the PMP address/config pairs, and friends.
//
// Register selection is static: every call site names a register ID known
// at compile time, matching how the teacher's software CSR file
// (internal/hv/riscv/rv64/csr.go) switches on a constant rather than
// dispatching dynamically. The actual instruction that reads or writes a
// machine-mode register (csrrs/csrrw/csrrc) is a single privileged
// instruction the low-level boot stub supplies — out of scope here per
// spec §1 — so this package talks to a Backend the stub installs at boot.
// Tests install an in-memory Backend instead.
package csr

import "sync"

// ID names an architectural CSR by its 12-bit address, exactly as the
// RISC-V privileged spec encodes it (e.g. 0x300 for mstatus).
type ID uint16

// Supervisor-mode CSRs that make up a guest's SupervisorState (§3).
const (
	Sstatus    ID = 0x100
	Sie        ID = 0x104
	Stvec      ID = 0x105
	Scounteren ID = 0x106
	Sscratch   ID = 0x140
	Sepc       ID = 0x141
	Scause     ID = 0x142
	Stval      ID = 0x143
	Sip        ID = 0x144
	Satp       ID = 0x180
)

// Machine-mode CSRs the monitor itself reads and writes.
const (
	Mstatus  ID = 0x300
	Misa     ID = 0x301
	Medeleg  ID = 0x302
	Mideleg  ID = 0x303
	Mie      ID = 0x304
	Mtvec    ID = 0x305
	Mscratch ID = 0x340
	Mepc     ID = 0x341
	Mcause   ID = 0x342
	Mtval    ID = 0x343
	Mip      ID = 0x344
	Mhartid  ID = 0xF14
)

// pmpCfgBase and pmpAddrBase are the first CSR addresses in each table;
// the spec calls these "small static tables keyed by index" (§4.1).
// Eight pmpcfgN CSRs (0x3A0..0x3A7 on RV64, holding 8 entries each) and
// 64 pmpaddrN CSRs (0x3B0..0x3EF) cover the architectural maximum.
const (
	pmpCfgBase  ID = 0x3A0
	pmpAddrBase ID = 0x3B0

	maxPMPCfgRegs  = 8
	maxPMPAddrRegs = 64
)

// PMPCfgCSR returns the CSR ID for pmpcfgN, or false if n is out of range.
// Unknown indices are silently ignored by the caller, per spec §7.
func PMPCfgCSR(n int) (ID, bool) {
	if n < 0 || n >= maxPMPCfgRegs {
		return 0, false
	}
	return pmpCfgBase + ID(n), true
}

// PMPAddrCSR returns the CSR ID for pmpaddrN, or false if n is out of range.
func PMPAddrCSR(n int) (ID, bool) {
	if n < 0 || n >= maxPMPAddrRegs {
		return 0, false
	}
	return pmpAddrBase + ID(n), true
}

// Backend performs the actual register access. Production firmware wires
// this to assembly-level csrrs/csrrw/csrrc instructions supplied by the
// boot stub; it is a package variable rather than a build-tag-selected
// function so unit tests can substitute a fake without a separate build.
type Backend interface {
	ReadCSR(id ID) uint64
	WriteCSR(id ID, val uint64)
	SetCSR(id ID, mask uint64)
	ClearCSR(id ID, mask uint64)
}

var (
	mu      sync.RWMutex
	backend Backend = noBackend{}
)

// SetBackend installs the CSR backend used by Read/Write/Clear. Called once
// at boot with the real hardware backend, or by tests with a fake.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backend = b
}

// Read atomically reads the named CSR. Unknown IDs return 0 rather than
// panicking — the only callers are the monitor's own code with static
// inputs, per spec §7.
func Read(id ID) uint64 {
	mu.RLock()
	defer mu.RUnlock()
	return backend.ReadCSR(id)
}

// Write atomically replaces the named CSR's value.
func Write(id ID, val uint64) {
	mu.RLock()
	defer mu.RUnlock()
	backend.WriteCSR(id, val)
}

// Set atomically ORs mask into the named CSR (the hardware CSRRS form).
func Set(id ID, mask uint64) {
	mu.RLock()
	defer mu.RUnlock()
	backend.SetCSR(id, mask)
}

// ClearMask atomically clears the bits in mask from the named CSR (CSRRC).
func ClearMask(id ID, mask uint64) {
	mu.RLock()
	defer mu.RUnlock()
	backend.ClearCSR(id, mask)
}

// noBackend is installed until SetBackend is called; every operation is a
// silent no-op/zero, matching the "unknown register" failure mode in §7
// rather than panicking before boot has wired a real backend.
type noBackend struct{}

func (noBackend) ReadCSR(ID) uint64   { return 0 }
func (noBackend) WriteCSR(ID, uint64) {}
func (noBackend) SetCSR(ID, uint64)   {}
func (noBackend) ClearCSR(ID, uint64) {}
