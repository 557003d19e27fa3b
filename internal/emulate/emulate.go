// Package emulate synthesizes the narrow set of instructions this
// platform's hardware does not implement, invoked only on an
// IllegalInstruction trap. Grounded on the teacher's software instruction
// decode style (internal/hv/riscv/rv64/execute.go's opcode/funct3
// switch), narrowed from a full instruction set to the two patterns a
// bare-metal monitor actually needs to fill in: reading the real-time
// counter and waiting for an interrupt.
package emulate

import (
	"github.com/tinyrange/rvmonitor/internal/csr"
	"github.com/tinyrange/rvmonitor/internal/mmu"
	"github.com/tinyrange/rvmonitor/internal/timer"
	"github.com/tinyrange/rvmonitor/internal/trap"
)

// Result mirrors the walker/emulator error enumeration: CantAccess is
// produced whenever an address fails PMP validation or translation.
type Result int

const (
	Success Result = iota
	CantEmulate
	CantAccess
	IllegalInstruction
	Yield
)

const (
	wfiEncoding = 0x1050_0073

	opSystem    = 0x73
	funct3CSRRS = 0x2
	csrTime     = 0xC01
)

// Memory performs the privileged instruction-word fetch at a physical
// address, in the privilege mode that raised the trap — an external
// helper the low-level stub supplies, so that an access fault during the
// fetch belongs to the guest rather than the monitor.
type Memory interface {
	ReadInsn(addr uint64) (uint32, bool)
}

// Emulate decodes the 32-bit instruction at mepc and performs it if it
// matches a supported pattern. If the trap came from supervisor mode, mepc
// is first translated through the page-table walker and validated against
// PMP; any failure there returns CantAccess before any instruction is read.
func Emulate(fromSupervisor bool, satp, mepc uint64, table mmu.Memory, pmp mmu.Validator, fetch Memory, ctx *trap.TrapContext) Result {
	fetchAddr := mepc
	if fromSupervisor {
		paddr, ok := mmu.Translate(table, pmp, satp, mepc)
		if !ok {
			return CantAccess
		}
		fetchAddr = paddr
	}

	insn, ok := fetch.ReadInsn(fetchAddr)
	if !ok {
		return CantAccess
	}

	if insn == wfiEncoding {
		csr.Write(csr.Mepc, mepc+4)
		return Yield
	}

	if rd, csrID, rs1, ok := decodeCSRRS(insn); ok && csrID == csrTime && rs1 == 0 {
		return emulateReadTime(rd, mepc, ctx)
	}

	return IllegalInstruction
}

func emulateReadTime(rd uint32, mepc uint64, ctx *trap.TrapContext) Result {
	now, nowOK := timer.GetPinnedTimerNow()
	freq, freqOK := timer.GetPinnedTimerFreq()
	if !nowOK || !freqOK {
		return CantEmulate
	}
	if rd != 0 {
		ctx.Registers[rd] = now.ToExact(freq)
	}
	csr.Write(csr.Mepc, mepc+4)
	return Success
}

// decodeCSRRS extracts the rd/csr/rs1 fields of a csrrs instruction,
// reporting ok=false for anything that isn't SYSTEM/CSRRS.
func decodeCSRRS(insn uint32) (rd, csrID, rs1 uint32, ok bool) {
	if insn&0x7f != opSystem {
		return 0, 0, 0, false
	}
	if (insn>>12)&0x7 != funct3CSRRS {
		return 0, 0, 0, false
	}
	rd = (insn >> 7) & 0x1f
	rs1 = (insn >> 15) & 0x1f
	csrID = (insn >> 20) & 0xfff
	return rd, csrID, rs1, true
}
