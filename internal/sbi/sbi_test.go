package sbi_test

import (
	"testing"

	"github.com/tinyrange/rvmonitor/internal/csr"
	"github.com/tinyrange/rvmonitor/internal/csr/csrtest"
	"github.com/tinyrange/rvmonitor/internal/sbi"
)

// S1: guest issues SBI get_spec_version -> a0=0, a1=2.
func TestGetSpecVersion(t *testing.T) {
	r := sbi.Handle(sbi.Args{Ext: 0x10, Fn: 0})
	if r.Err != sbi.Success || r.Value != 2 {
		t.Fatalf("get_spec_version result = %+v", r)
	}
}

// S2: guest issues SBI timer-set with a0=T -> handler emits
// TimerIRQAt(Exact(T)), a0=0, supervisor timer IRQ enabled and cleared.
func TestTimerSet(t *testing.T) {
	csr.SetBackend(csrtest.New())
	csr.Write(csr.Sip, 1<<5) // pending before the call

	r := sbi.Handle(sbi.Args{Ext: 0x54494D45, Fn: 0, A0: 12345, ISABits: 64})

	if r.Err != sbi.Success {
		t.Fatalf("timer-set error = %v", r.Err)
	}
	if r.Action.Kind != sbi.ActionTimerIRQAt {
		t.Fatalf("Action.Kind = %v, want ActionTimerIRQAt", r.Action.Kind)
	}
	if r.Action.TimerTarget.ToExact(1) != 12345 {
		t.Fatalf("TimerTarget = %+v, want ticks=12345", r.Action.TimerTarget)
	}
	if got := csr.Read(csr.Sie); got&(1<<5) == 0 {
		t.Fatal("timer-set must enable sie.STIE")
	}
	if got := csr.Read(csr.Sip); got&(1<<5) != 0 {
		t.Fatal("timer-set must clear sip.STIP")
	}
}

func TestTimerSet32BitSplitsAcrossA0A1(t *testing.T) {
	csr.SetBackend(csrtest.New())
	target := uint64(0x1_0000_0005)
	r := sbi.Handle(sbi.Args{
		Ext: 0x54494D45, Fn: 0,
		A0: uint64(uint32(target)), A1: target >> 32,
		ISABits: 32,
	})
	if r.Action.TimerTarget.ToExact(1) != target {
		t.Fatalf("reconstructed target = %#x, want %#x", r.Action.TimerTarget.ToExact(1), target)
	}
}

// S8 / property 8: probe_extension(e) returns e for every supported e,
// 0 otherwise.
func TestProbeExtensionTotality(t *testing.T) {
	supported := []uint64{0x10, 0x54494D45, 0x52464E43, 0x53525354, 0x01, 0x02, 0x0A000005}
	for _, e := range supported {
		if got := sbi.ProbeExtension(e); got != e {
			t.Fatalf("ProbeExtension(%#x) = %#x, want %#x", e, got, e)
		}
	}
	unsupported := []uint64{0x00, 0x99, 0x48534D, 0xffff_ffff}
	for _, e := range unsupported {
		if got := sbi.ProbeExtension(e); got != 0 {
			t.Fatalf("ProbeExtension(%#x) = %#x, want 0", e, got)
		}
	}
}

func TestUnknownExtensionReturnsNotSupported(t *testing.T) {
	r := sbi.Handle(sbi.Args{Ext: 0x7777, Fn: 0})
	if r.Err != sbi.NotSupported {
		t.Fatalf("Err = %v, want NotSupported", r.Err)
	}
	if r.Action.Kind != sbi.ActionUnknown || r.Action.Ext != 0x7777 {
		t.Fatalf("Action = %+v", r.Action)
	}
}

func TestSystemResetShutdownAndReboot(t *testing.T) {
	r := sbi.Handle(sbi.Args{Ext: 0x53525354, Fn: 0, A0: 0})
	if r.Action.Kind != sbi.ActionTerminate {
		t.Fatalf("shutdown Action = %+v, want ActionTerminate", r.Action)
	}

	r = sbi.Handle(sbi.Args{Ext: 0x53525354, Fn: 0, A0: 1})
	if r.Action.Kind != sbi.ActionRestart {
		t.Fatalf("cold reboot Action = %+v, want ActionRestart", r.Action)
	}
}

func TestLegacyPutcharAndGetchar(t *testing.T) {
	r := sbi.Handle(sbi.Args{Ext: 0x01, A0: uint64('x')})
	if r.Action.Kind != sbi.ActionOutputChar || r.Action.Char != 'x' {
		t.Fatalf("putchar Action = %+v", r.Action)
	}

	r = sbi.Handle(sbi.Args{Ext: 0x02})
	if r.Action.Kind != sbi.ActionInputChar {
		t.Fatalf("getchar Action = %+v", r.Action)
	}
}

func TestVendorConsoleBufferWrite(t *testing.T) {
	r := sbi.Handle(sbi.Args{Ext: 0x0A000005, Fn: 2, A0: uint64('!'), A1: 7})
	if r.Action.Kind != sbi.ActionConsoleBufferWriteChar || r.Action.Char != '!' || r.Action.CapsuleID != 7 {
		t.Fatalf("vendor console write Action = %+v", r.Action)
	}
}

func TestResultHelpersPreserveAction(t *testing.T) {
	base := sbi.Handle(sbi.Args{Ext: 0x01, A0: uint64('z')})

	failed := base.Failed(sbi.Denied)
	if failed.Err != sbi.Denied || failed.Action.Kind != sbi.ActionOutputChar {
		t.Fatalf("Failed() = %+v", failed)
	}

	withResult := base.WithResult(42)
	if withResult.Err != sbi.Success || withResult.Value != 42 {
		t.Fatalf("WithResult() = %+v", withResult)
	}

	withExtra := base.WithResult1Extra(1, 2)
	if !withExtra.HasExtra || withExtra.Extra != 2 {
		t.Fatalf("WithResult1Extra() = %+v", withExtra)
	}

	asError := base.WithResultAsError(9)
	if asError.Err != sbi.Error(9) {
		t.Fatalf("WithResultAsError() = %+v", asError)
	}
}

type fakeRegs struct {
	x [32]uint64
}

func (r *fakeRegs) GetX(n int) uint64    { return r.x[n] }
func (r *fakeRegs) SetX(n int, v uint64) { r.x[n] = v }

func TestApplyWritesRegisterConvention(t *testing.T) {
	regs := &fakeRegs{}
	r := sbi.Result{Err: sbi.InvalidParam, Value: 5, Extra: 6, HasExtra: true}
	r.Apply(regs)

	if int64(regs.x[10]) != int64(sbi.InvalidParam) {
		t.Fatalf("a0 = %d, want %d", int64(regs.x[10]), int64(sbi.InvalidParam))
	}
	if regs.x[11] != 5 {
		t.Fatalf("a1 = %d, want 5", regs.x[11])
	}
	if regs.x[12] != 6 {
		t.Fatalf("a2 = %d, want 6", regs.x[12])
	}
}
