// Package csrtest provides an in-memory csr.Backend for unit tests that
// exercise code built on package csr without real privileged hardware.
package csrtest

import (
	"sync"

	"github.com/tinyrange/rvmonitor/internal/csr"
)

// Fake is a map-backed csr.Backend. The zero value is ready to use.
type Fake struct {
	mu   sync.Mutex
	regs map[csr.ID]uint64
}

func New() *Fake {
	return &Fake{regs: make(map[csr.ID]uint64)}
}

func (f *Fake) ReadCSR(id csr.ID) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[id]
}

func (f *Fake) WriteCSR(id csr.ID, val uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[id] = val
}

func (f *Fake) SetCSR(id csr.ID, mask uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[id] |= mask
}

func (f *Fake) ClearCSR(id csr.ID, mask uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[id] &^= mask
}
