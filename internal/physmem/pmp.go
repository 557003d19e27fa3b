package physmem

import (
	"sync"

	"github.com/tinyrange/rvmonitor/internal/csr"
)

// Access enumerates the permission combinations a PMP region can grant.
type Access int

const (
	NoAccess Access = iota
	Read
	ReadWrite
	ReadExecute
	ReadWriteExecute
)

// pmpcfg byte layout: bits 0-2 are R/W/X, bits 3-4 are the address-matching
// mode (TOR = top-of-range = 0b01), bit 7 is lock. Region IDs map to entry
// IDs 1:1 via entry = 2*region (§3): the base entry of the pair carries no
// flags and mode off, the end entry carries the access flags ORed with TOR.
const (
	flagR   = 1 << 0
	flagW   = 1 << 1
	flagX   = 1 << 2
	modeTOR = 1 << 3
)

func (a Access) flags() uint8 {
	switch a {
	case Read:
		return flagR
	case ReadWrite:
		return flagR | flagW
	case ReadExecute:
		return flagR | flagX
	case ReadWriteExecute:
		return flagR | flagW | flagX
	default:
		return 0
	}
}

// MaxRegions is the architectural maximum of PMP region pairs this monitor
// programs, per §6's "up to 8 regions" PMP layout.
const MaxRegions = 8

type activeRegion struct {
	valid  bool
	base   uint64
	end    uint64
	access Access
}

// Protector owns the PMP state for one physical core. PMP CSRs are
// per-core (§5: "no sharing"), so each running core has its own Protector.
type Protector struct {
	mu      sync.Mutex
	regions [MaxRegions]activeRegion
}

// NewProtector returns a Protector with no active regions.
func NewProtector() *Protector {
	return &Protector{}
}

// Protect programs the PMP entry pair for regionID in top-of-range mode,
// covering [base, end), then issues a full TLB flush as required after any
// PMP reconfiguration (§5).
func (p *Protector) Protect(regionID int, base, end uint64, access Access) bool {
	if regionID < 0 || regionID >= MaxRegions || base > end {
		return false
	}
	baseEntry := 2 * regionID
	endEntry := baseEntry + 1

	writeEntry(baseEntry, base, 0)
	writeEntry(endEntry, end, access.flags()|modeTOR)

	Fence()

	p.mu.Lock()
	p.regions[regionID] = activeRegion{valid: true, base: base, end: end, access: access}
	p.mu.Unlock()
	return true
}

// writeEntry programs one PMP entry's address CSR (shifted right by two,
// i.e. word-aligned per §3) and its config byte within the packed pmpcfgN
// register that holds it.
func writeEntry(entry int, addr uint64, cfg uint8) {
	addrID, ok := csr.PMPAddrCSR(entry)
	if !ok {
		return
	}
	csr.Write(addrID, addr>>2)

	cfgRegIndex := entry / 8
	byteIndex := uint(entry % 8)
	cfgID, ok := csr.PMPCfgCSR(cfgRegIndex)
	if !ok {
		return
	}
	shift := byteIndex * 8
	mask := uint64(0xff) << shift
	csr.ClearMask(cfgID, mask)
	csr.Set(cfgID, uint64(cfg)<<shift)
}

// ValidatePhysAddr returns addr if it falls strictly inside one of the
// Protector's currently programmed regions, or ok=false otherwise. The
// walker and emulator use this to sanitize every guest-derived pointer
// before it is dereferenced, not just the first one (§3, §9).
func (p *Protector) ValidatePhysAddr(addr uint64) (val uint64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.regions {
		if r.valid && addr >= r.base && addr < r.end {
			return addr, true
		}
	}
	return 0, false
}

// ValidateRange reports whether the full half-open range [addr, addr+size)
// lies within a single active region — used when a caller needs to read
// more than one byte (e.g. a page table) without straddling a boundary.
func (p *Protector) ValidateRange(addr, size uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size == 0 {
		return false
	}
	end := addr + size
	for _, r := range p.regions {
		if r.valid && addr >= r.base && end <= r.end {
			return true
		}
	}
	return false
}

// Snapshot captures the monitor's current PMP and address-translation CSR
// state for diagnostics. Grounded on original_source/src/physmem.rs's
// PhysRAMState, which exists purely "for debugging purposes" — it plays no
// role in any invariant.
type Snapshot struct {
	PMPCfg  [4]uint64
	PMPAddr [4]uint64
	Satp    uint64
	Sstatus uint64
	Stvec   uint64
}

// TakeSnapshot reads the first four pmpcfg/pmpaddr pairs plus satp,
// sstatus, and stvec through the installed csr.Backend.
func TakeSnapshot() Snapshot {
	var s Snapshot
	for i := 0; i < 4; i++ {
		if id, ok := csr.PMPCfgCSR(i); ok {
			s.PMPCfg[i] = csr.Read(id)
		}
		if id, ok := csr.PMPAddrCSR(i); ok {
			s.PMPAddr[i] = csr.Read(id)
		}
	}
	s.Satp = csr.Read(csr.Satp)
	s.Sstatus = csr.Read(csr.Sstatus)
	s.Stvec = csr.Read(csr.Stvec)
	return s
}

// Fence issues the read/write I/O fence operation callers must use for
// ordering against MMIO, and the full TLB flush required after any PMP
// reconfiguration. On real hardware this is a single `sfence.vma`
// instruction. It is a package-level hook, separate from package csr's
// Backend and a no-op until replaced, so tests can observe it.
var Fence = func() {}

// Fence issues the read/write I/O fence callers must use for ordering
// against MMIO before reads that depend on a prior write's effects
// becoming visible (§1's Barriers, §5's Ordering). It is a method on
// Protector, rather than a bare package function, so that call sites
// reach it the same way they reach Protect and ValidatePhysAddr — off
// the same per-core object the PMP state itself lives on, even though
// the underlying instruction has no PMP-specific effect.
func (p *Protector) Fence() {
	Fence()
}

// RegionAccess reports the access mode active for regionID, if any.
func (p *Protector) RegionAccess(regionID int) (Access, bool) {
	if regionID < 0 || regionID >= MaxRegions {
		return NoAccess, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.regions[regionID]
	return r.access, r.valid
}
