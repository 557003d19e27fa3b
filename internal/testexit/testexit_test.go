package testexit_test

import (
	"testing"

	"github.com/tinyrange/rvmonitor/internal/testexit"
)

type fakeBus struct {
	addr uint64
	val  uint32
}

func (b *fakeBus) WriteU32(addr uint64, val uint32) {
	b.addr = addr
	b.val = val
}

func TestExitPassWritesMagicWord(t *testing.T) {
	b := &fakeBus{}
	testexit.SetBus(b)

	testexit.Exit(true, 0)

	if b.addr != testexit.Address {
		t.Fatalf("addr = %#x, want %#x", b.addr, testexit.Address)
	}
	if b.val != 0x5555 {
		t.Fatalf("val = %#x, want 0x5555", b.val)
	}
}

func TestExitFailEncodesCodeInUpperBits(t *testing.T) {
	b := &fakeBus{}
	testexit.SetBus(b)

	testexit.Exit(false, 7)

	want := uint32(0x3333) | (7 << 16)
	if b.val != want {
		t.Fatalf("val = %#x, want %#x", b.val, want)
	}
}

func TestExitFailCodeTruncatesToLower16Bits(t *testing.T) {
	b := &fakeBus{}
	testexit.SetBus(b)

	testexit.Exit(false, 0x1_0001)

	want := uint32(0x3333) | (1 << 16)
	if b.val != want {
		t.Fatalf("val = %#x, want %#x", b.val, want)
	}
}
