//go:build unix

// Package hostio backs the monitor's MMIO-shaped bus interfaces
// (serial.Bus, timer.Bus, testexit.Bus) with an anonymous mmap'd region
// on the development host, grounded on the teacher's use of
// golang.org/x/sys/unix (internal/hv/kvm's AllocateMemory) for raw
// memory mapping on the host side of a hypervisor backend. It exists
// only for cmd/rvmonitor-sim and package tests that want a byte-true
// MMIO stand-in rather than a map-based fake.
package hostio

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a flat, anonymously mapped block of host memory that stands
// in for a physical address range. Addresses passed to its accessor
// methods are physical addresses within [Base, Base+len(mem)); callers
// are responsible for keeping the monitor's own address decisions
// (RAM areas, MMIO windows) inside that span.
type Region struct {
	Base uint64
	mem  []byte
}

// NewRegion mmaps an anonymous, zero-filled region of size bytes
// addressed starting at base.
func NewRegion(base uint64, size int) (*Region, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("hostio: mmap %d bytes: %w", size, err)
	}
	return &Region{Base: base, mem: mem}, nil
}

// Close unmaps the region. Safe to call once; a second call returns an
// error from the underlying munmap rather than panicking.
func (r *Region) Close() error {
	return unix.Munmap(r.mem)
}

func (r *Region) offset(addr uint64) (int, bool) {
	if addr < r.Base || addr-r.Base >= uint64(len(r.mem)) {
		return 0, false
	}
	return int(addr - r.Base), true
}

// ReadU8 implements serial.Bus.
func (r *Region) ReadU8(addr uint64) uint8 {
	off, ok := r.offset(addr)
	if !ok {
		return 0
	}
	return r.mem[off]
}

// WriteU8 implements serial.Bus.
func (r *Region) WriteU8(addr uint64, val uint8) {
	if off, ok := r.offset(addr); ok {
		r.mem[off] = val
	}
}

// ReadU64 implements timer.Bus.
func (r *Region) ReadU64(addr uint64) uint64 {
	off, ok := r.offset(addr)
	if !ok || off+8 > len(r.mem) {
		return 0
	}
	return binary.LittleEndian.Uint64(r.mem[off:])
}

// WriteU64 implements timer.Bus.
func (r *Region) WriteU64(addr uint64, val uint64) {
	off, ok := r.offset(addr)
	if !ok || off+8 > len(r.mem) {
		return
	}
	binary.LittleEndian.PutUint64(r.mem[off:], val)
}

// WriteU32 implements testexit.Bus.
func (r *Region) WriteU32(addr uint64, val uint32) {
	off, ok := r.offset(addr)
	if !ok || off+4 > len(r.mem) {
		return
	}
	binary.LittleEndian.PutUint32(r.mem[off:], val)
}

// ReadU32 reads back a word written by WriteU32, used by the host
// harness to observe the test-exit result without a second device.
func (r *Region) ReadU32(addr uint64) uint32 {
	off, ok := r.offset(addr)
	if !ok || off+4 > len(r.mem) {
		return 0
	}
	return binary.LittleEndian.Uint32(r.mem[off:])
}
