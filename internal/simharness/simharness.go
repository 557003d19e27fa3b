// Package simharness runs a deterministic smoke sequence against the
// trap dispatcher, SBI handler and platform discovery code, standing in
// for real hardware so cmd/rvmonitor-sim — and this package's own tests
// — can exercise the monitor's hot path without booting real RISC-V
// machine mode. The sequence itself (discover devices, take one
// synthesized ecall trap, run it through the SBI handler, confirm the
// guest-visible result) is the host-side analogue of what
// internal/hv/riscv/riscv_test.go does against the teacher's software
// CPU: drive the real dispatch code with a scripted trap.
package simharness

import (
	"fmt"
	"log/slog"

	"github.com/tinyrange/rvmonitor/internal/platform"
	"github.com/tinyrange/rvmonitor/internal/sbi"
	"github.com/tinyrange/rvmonitor/internal/testexit"
	"github.com/tinyrange/rvmonitor/internal/trap"
	"github.com/tinyrange/rvmonitor/internal/vcpu"
)

// Bus is the union of every MMIO-shaped interface the harness needs: a
// byte bus for the discovered console, a 64-bit bus for the discovered
// CLINT, and a 32-bit write for the test-exit word. hostio.Region
// satisfies it, as does any fake combining the three.
type Bus interface {
	ReadU8(addr uint64) uint8
	WriteU8(addr uint64, val uint8)
	ReadU64(addr uint64) uint64
	WriteU64(addr uint64, val uint64)
	WriteU32(addr uint64, val uint32)
}

const ecallFromSCause = 9

// Run discovers the platform from dtb, takes one synthesized
// supervisor-ecall trap requesting the SBI spec version, and reports
// whether the SBI handler answered it the way a real guest expects. It
// returns the populated Devices alongside the pass/fail verdict so a
// caller can log discovery details either way.
func Run(logger *slog.Logger, dtb []byte, bus Bus) (devices *platform.Devices, pass bool, err error) {
	devices, err = platform.Discover(dtb, bus, bus)
	if err != nil {
		return nil, false, fmt.Errorf("discover platform: %w", err)
	}

	logger.Info("platform discovered",
		slog.Int("cores", devices.CoreCount),
		slog.Int("ram_areas", len(devices.RAM)),
		slog.Bool("console", devices.Console != nil),
		slog.Bool("scheduler_timer", devices.SchedulerTimer != nil),
		slog.Uint64("errata_known", devices.ErrataKnown),
		slog.Uint64("errata_fixed", devices.ErrataFixed),
	)

	state := vcpu.NewSupervisorState(0, 0, uint64(devices.CoreCount), 0)

	ctx := &trap.TrapContext{}
	ctx.SetX(17, 0x10) // a7: base extension
	ctx.SetX(16, 0)    // a6: get_spec_version

	tr := trap.Dispatch(ecallFromSCause, state.Sepc, 0, ctx)
	if tr.Type != trap.Exception || tr.Cause != trap.CauseEcallFromS {
		logger.Warn("unexpected trap cause from synthesized ecall", slog.Any("cause", tr.Cause))
		testexit.SetBus(bus)
		testexit.Exit(false, 1)
		return devices, false, nil
	}

	result := sbi.Handle(sbi.Args{Ext: ctx.GetX(17), Fn: ctx.GetX(16)})
	result.Apply(ctx)

	pass = result.Err == sbi.Success && ctx.GetX(11) == 2
	testexit.SetBus(bus)
	testexit.Exit(pass, 1)

	return devices, pass, nil
}
