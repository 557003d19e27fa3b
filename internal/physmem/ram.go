// Package physmem iterates usable physical RAM and programs per-core PMP
// access windows, grounded on diosix's physmem.rs (original_source) and
// restyled in the teacher's (internal/hv/riscv/rv64) constant-table idiom.
package physmem

// RAMArea is a contiguous physical memory region.
type RAMArea struct {
	Base uint64
	Size uint64
}

// End returns the address one past the last byte of the area.
func (a RAMArea) End() uint64 { return a.Base + a.Size }

// Contains reports whether addr lies in [Base, End).
func (a RAMArea) Contains(addr uint64) bool {
	return addr >= a.Base && addr < a.End()
}

// PerCPUReserved is the size of the per-core private block the monitor
// reserves out of its own footprint (stack, trap scratch area, vCPU slot).
const PerCPUReserved uint64 = 1 << 20 // 1 MiB/core, mirrors PHYS_MEM_PER_CPU

// Footprint returns the monitor's own reserved region: its code+data
// range extended by one PerCPUReserved block per physical core.
func Footprint(codeStart, codeEnd uint64, cpuCount int) RAMArea {
	end := codeEnd + uint64(cpuCount)*PerCPUReserved
	return RAMArea{Base: codeStart, Size: end - codeStart}
}

// Iterator walks a total RAM area, yielding allocatable sub-areas that
// skip the monitor's footprint. Call Next until ok is false.
type Iterator struct {
	total     RAMArea
	footprint RAMArea
	pos       uint64
	done      bool
}

// NewIterator returns an Iterator over total, skipping footprint.
func NewIterator(total, footprint RAMArea) *Iterator {
	return &Iterator{total: total, footprint: footprint, pos: total.Base}
}

// Next returns the next allocatable sub-area, or ok=false once the total
// area is exhausted.
func (it *Iterator) Next() (area RAMArea, ok bool) {
	if it.done {
		return RAMArea{}, false
	}
	if it.pos >= it.total.End() {
		it.done = true
		return RAMArea{}, false
	}
	if it.pos < it.total.Base {
		it.pos = it.total.Base
	}
	// Inside the footprint: jump past it before yielding anything.
	if it.footprint.Contains(it.pos) {
		it.pos = it.footprint.End()
	}

	if it.pos < it.footprint.Base {
		// Below the footprint: yield up to its start, then skip over it.
		area = RAMArea{Base: it.pos, Size: it.footprint.Base - it.pos}
		it.pos = it.footprint.End()
		return area, true
	}

	if it.pos >= it.footprint.End() {
		// Clear of the footprint: yield the rest of total RAM.
		area = RAMArea{Base: it.pos, Size: it.total.End() - it.pos}
		it.pos = it.total.End()
		return area, true
	}

	it.done = true
	return RAMArea{}, false
}

// Remaining sums the size of every area NewIterator(total, footprint) would
// still yield from the iterator's current position — the original's
// total_available() summary used to size initial capsule allocations.
func (it *Iterator) Remaining() uint64 {
	clone := *it
	var total uint64
	for {
		area, ok := clone.Next()
		if !ok {
			return total
		}
		total += area.Size
	}
}
