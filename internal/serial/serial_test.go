package serial_test

import (
	"testing"

	"github.com/tinyrange/rvmonitor/internal/serial"
)

type fakeBus struct {
	regs map[uint64]uint8
}

func newFakeBus() *fakeBus { return &fakeBus{regs: map[uint64]uint8{}} }

func (b *fakeBus) ReadU8(addr uint64) uint8    { return b.regs[addr] }
func (b *fakeBus) WriteU8(addr uint64, v uint8) { b.regs[addr] = v }

func TestNewRejectsUnknownCompatible(t *testing.T) {
	_, ok := serial.New(0x1000_0000, 0x100, "vendor,mystery-chip", newFakeBus())
	if ok {
		t.Fatal("expected no driver for unknown compatible string")
	}
}

func TestNS16550aWriteAndRead(t *testing.T) {
	bus := newFakeBus()
	bus.regs[0x1000_0005] = 0x20 // LSR: THR empty
	p, ok := serial.New(0x1000_0000, 0x8, "ns16550a", bus)
	if !ok {
		t.Fatal("expected NS16550a driver to match")
	}

	if !p.Write("hi") {
		t.Fatal("Write should succeed when THR is empty")
	}
	if got := bus.regs[0x1000_0000]; got != 'i' {
		t.Fatalf("THR = %q, want 'i' (last byte written)", got)
	}

	bus.regs[0x1000_0005] = 0x21 // LSR: data ready | THR empty
	bus.regs[0x1000_0000] = 'x'
	b, ok := p.Read()
	if !ok || b != 'x' {
		t.Fatalf("Read() = %q, %v, want 'x', true", b, ok)
	}
}

func TestNS16550aWriteFailsWhenTHRNotEmpty(t *testing.T) {
	bus := newFakeBus()
	p, _ := serial.New(0x1000_0000, 0x8, "16550a", bus)

	if p.Write("x") {
		t.Fatal("Write should fail when THR empty bit is clear")
	}
}

func TestSiFiveUARTWriteAndRead(t *testing.T) {
	bus := newFakeBus()
	p, ok := serial.New(0x1001_0000, 0x1000, "sifive,uart0", bus)
	if !ok {
		t.Fatal("expected SiFiveUART driver to match")
	}

	if !p.Write("a") {
		t.Fatal("Write should succeed when txdata full bit is clear")
	}
	if got := bus.regs[0x1001_0000]; got != 'a' {
		t.Fatalf("txdata = %q, want 'a'", got)
	}

	bus.regs[0x1001_0000+3] = 0x80 // txdata full
	if p.Write("b") {
		t.Fatal("Write should fail when txdata full bit is set")
	}

	bus.regs[0x1001_0004] = 'z'
	b, ok := p.Read()
	if !ok || b != 'z' {
		t.Fatalf("Read() = %q, %v, want 'z', true", b, ok)
	}

	bus.regs[0x1001_0004+3] = 0x80 // rxdata empty
	if _, ok := p.Read(); ok {
		t.Fatal("Read should fail when rxdata empty bit is set")
	}
}
