package mmu_test

import (
	"testing"

	"github.com/tinyrange/rvmonitor/internal/mmu"
)

// fakeMemory is a flat byte-addressable physical memory backing a page
// table for walker tests.
type fakeMemory struct {
	words map[uint64]uint64
}

func newFakeMemory() *fakeMemory { return &fakeMemory{words: make(map[uint64]uint64)} }

func (m *fakeMemory) ReadU64(addr uint64) (uint64, bool) {
	v, ok := m.words[addr]
	return v, ok
}

func (m *fakeMemory) setPTE(tableAddr uint64, index uint64, pte uint64) {
	m.words[tableAddr+index*8] = pte
}

// allowAll validates every address, standing in for a PMP Protector whose
// region covers all of guest RAM.
type allowAll struct{}

func (allowAll) ValidatePhysAddr(addr uint64) (uint64, bool) { return addr, true }
func (allowAll) ValidateRange(uint64, uint64) bool           { return true }

// denyAll validates nothing, modeling a guest with no active PMP region.
type denyAll struct{}

func (denyAll) ValidatePhysAddr(uint64) (uint64, bool) { return 0, false }
func (denyAll) ValidateRange(uint64, uint64) bool      { return false }

func satpSv39(rootAddr uint64) uint64 {
	return (uint64(8) << 60) | (rootAddr >> 12)
}

const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
)

func TestBareIdentityWithinPMPRegion(t *testing.T) {
	mem := newFakeMemory()
	paddr, ok := mmu.Translate(mem, allowAll{}, 0 /* Bare */, 0x1234)
	if !ok || paddr != 0x1234 {
		t.Fatalf("Translate(Bare) = %#x, %v", paddr, ok)
	}
}

func TestBareRejectsOutsidePMP(t *testing.T) {
	mem := newFakeMemory()
	if _, ok := mmu.Translate(mem, denyAll{}, 0, 0x1234); ok {
		t.Fatal("Bare mode should fail closed without an active PMP region")
	}
}

func TestSv39SuperpageLeaf(t *testing.T) {
	const root = 0x1000
	mem := newFakeMemory()

	// Level-2 entry for VPN[2]=0 is a valid 1 GiB superpage leaf, R=1.
	const leafPPN = uint64(0x40000) // low 18 bits are zero: aligned 1 GiB superpage
	mem.setPTE(root, 0, pteV|pteR|(leafPPN<<10))

	satp := satpSv39(root)
	paddr, ok := mmu.Translate(mem, allowAll{}, satp, 0)
	if !ok {
		t.Fatal("expected successful translation")
	}
	want := leafPPN << 12
	if paddr != want {
		t.Fatalf("paddr = %#x, want %#x", paddr, want)
	}
}

func TestSv39WOnlyLeafRejected(t *testing.T) {
	const root = 0x1000
	mem := newFakeMemory()
	const leafPPN = 0x1000
	mem.setPTE(root, 0, pteV|pteW|(leafPPN<<10))

	satp := satpSv39(root)
	if _, ok := mmu.Translate(mem, allowAll{}, satp, 0); ok {
		t.Fatal("W-only leaf is reserved and must fail")
	}
}

func TestSv39ThreeLevelWalk(t *testing.T) {
	const l2, l1, l0 = 0x1000, 0x2000, 0x3000
	mem := newFakeMemory()

	vaddr := uint64(0x40201000) // vpn2=1, vpn1=1, vpn0=1, offset=0
	vpn2 := (vaddr >> 30) & 0x1ff
	vpn1 := (vaddr >> 21) & 0x1ff
	vpn0 := (vaddr >> 12) & 0x1ff

	mem.setPTE(l2, vpn2, pteV|(l1>>12)<<10)
	mem.setPTE(l1, vpn1, pteV|(l0>>12)<<10)
	const leafPPN = 0x55
	mem.setPTE(l0, vpn0, pteV|pteR|pteW|pteX|(leafPPN<<10))

	satp := satpSv39(l2)
	paddr, ok := mmu.Translate(mem, allowAll{}, satp, vaddr)
	if !ok {
		t.Fatal("expected successful three-level translation")
	}
	want := (leafPPN << 12) | (vaddr & 0xfff)
	if paddr != want {
		t.Fatalf("paddr = %#x, want %#x", paddr, want)
	}
}

func TestSv39InvalidEntryFails(t *testing.T) {
	const root = 0x1000
	mem := newFakeMemory()
	mem.setPTE(root, 0, 0) // V bit clear

	satp := satpSv39(root)
	if _, ok := mmu.Translate(mem, allowAll{}, satp, 0); ok {
		t.Fatal("invalid PTE must fail the walk")
	}
}

func TestSv39PMPViolatingTableAddressFails(t *testing.T) {
	const root = 0x1000
	mem := newFakeMemory()
	mem.setPTE(root, 0, pteV|pteR|(uint64(0x1000)<<10))

	satp := satpSv39(root)
	if _, ok := mmu.Translate(mem, denyAll{}, satp, 0); ok {
		t.Fatal("walker must fail closed when the root table fails PMP validation")
	}
}

func TestSv48IsNoMappingStub(t *testing.T) {
	mem := newFakeMemory()
	sv48Satp := uint64(9) << 60
	if _, ok := mmu.Translate(mem, allowAll{}, sv48Satp, 0x1000); ok {
		t.Fatal("Sv48 must be a no-mapping stub")
	}
	if mmu.DecodeSatpMode(sv48Satp) != mmu.Sv48 {
		t.Fatal("expected DecodeSatpMode to report Sv48")
	}
}
