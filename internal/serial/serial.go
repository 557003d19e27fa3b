// Package serial abstracts a guest-facing debug console behind a
// compatible-string dispatch, grounded on original_source's serial.rs
// (a Controllers enum matched against a device-tree compat string) and
// on the teacher's 16550 register layout (internal/hv/riscv/rv64/uart.go).
// A second concrete controller is added beside the NS16550a arm so the
// dispatch has more than one implementation to choose between.
package serial

import "strings"

// Bus performs single-byte MMIO access to a serial controller's register
// window. Production firmware wires this to the real address space;
// tests substitute a fake in-memory map.
type Bus interface {
	ReadU8(addr uint64) uint8
	WriteU8(addr uint64, val uint8)
}

// Controller is a hardware-specific serial chip driver.
type Controller interface {
	// SendByte transmits one byte, blocking semantics left to the
	// caller; returns false if the byte could not be sent.
	SendByte(b byte) bool
	// ReadByte returns the next received byte, or ok=false if none is
	// pending.
	ReadByte() (b byte, ok bool)
}

// Port is a discovered debug console: a base address, an address-space
// size, the device-tree compatible string that selected it, and the
// concrete chip driver.
type Port struct {
	Base   uint64
	Size   uint64
	Compat string
	chip   Controller
}

// New selects a Controller implementation for compat and returns a Port
// bound to it, or ok=false if no driver matches.
func New(base, size uint64, compat string, bus Bus) (p *Port, ok bool) {
	switch {
	case strings.Contains(compat, "16550a"):
		return &Port{Base: base, Size: size, Compat: compat, chip: &NS16550a{bus: bus, base: base}}, true
	case strings.Contains(compat, "sifive,uart0"):
		return &Port{Base: base, Size: size, Compat: compat, chip: &SiFiveUART{bus: bus, base: base}}, true
	default:
		return nil, false
	}
}

// Write sends msg one byte at a time, stopping at the first byte the
// controller refuses.
func (p *Port) Write(msg string) bool {
	for i := 0; i < len(msg); i++ {
		if !p.chip.SendByte(msg[i]) {
			return false
		}
	}
	return true
}

// Read returns the next received byte, if any.
func (p *Port) Read() (byte, bool) {
	return p.chip.ReadByte()
}
