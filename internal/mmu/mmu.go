// Package mmu translates guest supervisor virtual addresses to physical
// addresses by walking guest-controlled page tables, without ever trusting
// a page-table entry's contents to place a read outside validated memory.
//
// Grounded on the teacher's software walker
// (internal/hv/riscv/rv64/mmu.go), stripped of its TLB and A/D-bit update
// logic: this walker resolves addresses only, it does not implement a
// full two-stage MMU, and every table dereference is gated on a PMP
// validator rather than an unchecked bus read.
package mmu

// Mode selects the page-table structure satp.MODE names.
type Mode int

const (
	Bare Mode = iota
	Sv32
	Sv39
	Sv48
)

// DecodeSatpMode extracts the translation mode from a 64-bit satp value
// (bits 63:60, per the Sv39/Sv48 encoding of the privileged spec).
func DecodeSatpMode(satp uint64) Mode {
	switch (satp >> 60) & 0xf {
	case 8:
		return Sv39
	case 9:
		return Sv48
	default:
		return Bare
	}
}

const (
	pageSize  = 4096
	pageShift = 12
	vpnBits   = 9
	vpnMask   = 0x1ff
	ppnMask   = (uint64(1) << 44) - 1

	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
)

// Memory reads a little-endian 64-bit word of guest physical memory.
// Callers must validate the address with a Validator before calling ReadU64;
// the walker never reads memory it has not first cleared against PMP.
type Memory interface {
	ReadU64(addr uint64) (val uint64, ok bool)
}

// Validator gates every physical address the walker wants to dereference.
// internal/physmem.Protector implements this.
type Validator interface {
	ValidatePhysAddr(addr uint64) (uint64, bool)
	ValidateRange(addr, size uint64) bool
}

// Translate resolves vaddr to a physical address using the table rooted by
// satp, failing closed (ok=false) on any invalid entry, PMP-violating
// table address, or unsupported mode. It performs no caching, writes no
// access/dirty bits and enforces no R/W/X or U permissions: it only
// resolves the address.
func Translate(mem Memory, pmp Validator, satp uint64, vaddr uint64) (paddr uint64, ok bool) {
	switch DecodeSatpMode(satp) {
	case Bare:
		return pmp.ValidatePhysAddr(vaddr)
	case Sv39:
		return walkSv39(mem, pmp, satp, vaddr)
	default:
		// Sv32 and Sv48 are stubs: no mapping until implemented.
		return 0, false
	}
}

func walkSv39(mem Memory, pmp Validator, satp uint64, vaddr uint64) (uint64, bool) {
	rootPPN := satp & ppnMask
	tableAddr := rootPPN << pageShift

	for level := 2; level >= 0; level-- {
		if !pmp.ValidateRange(tableAddr, pageSize) {
			return 0, false
		}

		vpn := (vaddr >> (pageShift + level*vpnBits)) & vpnMask
		entryAddr := tableAddr + vpn*8

		pte, ok := mem.ReadU64(entryAddr)
		if !ok {
			return 0, false
		}
		if pte&pteV == 0 {
			return 0, false
		}

		rwx := pte & (pteR | pteW | pteX)
		if rwx == 0 {
			// Pointer to the next level table.
			tableAddr = ((pte >> 10) & ppnMask) << pageShift
			continue
		}

		if pte&pteR == 0 && pte&pteX == 0 {
			// W-only is reserved.
			return 0, false
		}

		leafPPN := (pte >> 10) & ppnMask
		if level > 0 {
			lowMask := uint64(1)<<uint(level*vpnBits) - 1
			if leafPPN&lowMask != 0 {
				// Misaligned superpage.
				return 0, false
			}
			vpnLow := (vaddr >> pageShift) & lowMask
			leafPPN = (leafPPN &^ lowMask) | vpnLow
		}

		return (leafPPN << pageShift) | (vaddr & (pageSize - 1)), true
	}

	return 0, false
}
