package sbi

import "github.com/tinyrange/rvmonitor/internal/timer"

// Extension IDs this handler recognizes.
const (
	extBase          = 0x10
	extTimer         = 0x54494D45 // "TIME"
	extRFence        = 0x52464E43 // "RFNC"
	extSRST          = 0x53525354 // "SRST"
	extLegacyPutchar = 0x01
	extLegacyGetchar = 0x02
	extVendor        = 0x0A000000 + implID
)

// Base extension function IDs.
const (
	baseGetSpecVersion = 0
	baseGetImplID      = 1
	baseGetImplVersion = 2
	baseProbeExtension = 3
	baseGetMvendorID   = 4
	baseGetMarchID     = 5
	baseGetMimplID     = 6
)

const (
	implID      = 5
	implVersion = 0x0001_0000
	specVersion = 2
)

// System reset function/type values, per the SRST extension.
const (
	srstSystemReset    = 0
	srstTypeShutdown   = 0
	srstTypeColdReboot = 1
	srstTypeWarmReboot = 2
)

// Vendor extension function IDs (0x0A000005): not a real SBI extension,
// a private one this monitor defines for capsule-to-capsule console
// plumbing and its own log buffer.
const (
	vendorYield              = 0
	vendorRegisterService    = 1
	vendorConsoleWriteChar   = 2
	vendorConsoleReadChar    = 3
	vendorHypervisorReadChar = 4
)

var supportedExtensions = map[uint64]bool{
	extBase:          true,
	extTimer:         true,
	extRFence:        true,
	extSRST:          true,
	extLegacyPutchar: true,
	extLegacyGetchar: true,
	extVendor:        true,
}

// ProbeExtension reports whether e is implemented. The newer SBI variant
// returns the extension ID itself rather than a 0/1 flag; this monitor
// follows that variant, per the property that probe_extension(e) == e for
// every supported e.
func ProbeExtension(e uint64) uint64 {
	if supportedExtensions[e] {
		return e
	}
	return 0
}

// Args carries the decoded SBI call convention: a7 = Ext, a6 = Fn,
// a0..a5 = arguments. ISABits distinguishes 32-bit guests, whose timer
// calls split a 64-bit target across a0/a1.
type Args struct {
	Ext        uint64
	Fn         uint64
	A0, A1, A2 uint64
	A3, A4, A5 uint64
	ISABits    int
}

// Handle decodes one SBI call and returns the Result the caller should
// apply to the guest's registers, after the policy layer has acted on its
// Action. It never blocks, schedules, or allocates.
func Handle(args Args) Result {
	switch args.Ext {
	case extLegacyPutchar:
		return Result{Err: Success, Action: Action{Kind: ActionOutputChar, Char: byte(args.A0)}}

	case extLegacyGetchar:
		return Result{Err: Success, Action: Action{Kind: ActionInputChar}}

	case extBase:
		return handleBase(args)

	case extTimer:
		return handleTimer(args)

	case extRFence:
		// Every RFence call returns success without issuing any fence:
		// neither a local fence.i/sfence.vma nor a cross-core shootdown
		// is performed here.
		return Result{Err: Success}

	case extSRST:
		return handleSRST(args)

	case extVendor:
		return handleVendor(args)

	default:
		return Result{
			Err:    NotSupported,
			Action: Action{Kind: ActionUnknown, Ext: args.Ext, Fn: args.Fn},
		}
	}
}

func handleBase(args Args) Result {
	switch args.Fn {
	case baseGetSpecVersion:
		return Result{Err: Success, Value: specVersion}
	case baseGetImplID:
		return Result{Err: Success, Value: implID}
	case baseGetImplVersion:
		return Result{Err: Success, Value: implVersion}
	case baseProbeExtension:
		return Result{Err: Success, Value: ProbeExtension(args.A0)}
	case baseGetMvendorID, baseGetMarchID, baseGetMimplID:
		return Result{Err: Success, Value: 0}
	default:
		return Result{Err: NotSupported}
	}
}

func timerTarget(args Args) uint64 {
	if args.ISABits == 32 {
		return args.A0 | (args.A1 << 32)
	}
	return args.A0
}

func handleTimer(args Args) Result {
	if args.Fn != 0 {
		return Result{Err: NotSupported}
	}
	target := timerTarget(args)

	timer.ClearSupervisorTimer()
	timer.EnableSupervisorTimer()

	return Result{
		Err: Success,
		Action: Action{
			Kind:        ActionTimerIRQAt,
			TimerTarget: timer.Exact(target),
		},
	}
}

func handleSRST(args Args) Result {
	if args.Fn != srstSystemReset {
		return Result{Err: NotSupported}
	}
	switch args.A0 {
	case srstTypeShutdown:
		return Result{Err: Success, Action: Action{Kind: ActionTerminate}}
	case srstTypeColdReboot, srstTypeWarmReboot:
		return Result{Err: Success, Action: Action{Kind: ActionRestart}}
	default:
		return Result{Err: InvalidParam}
	}
}

func handleVendor(args Args) Result {
	switch args.Fn {
	case vendorYield:
		return Result{Err: Success, Action: Action{Kind: ActionYield}}
	case vendorRegisterService:
		return Result{Err: Success, Action: Action{Kind: ActionRegisterService, ServiceID: args.A0}}
	case vendorConsoleWriteChar:
		return Result{
			Err:    Success,
			Action: Action{Kind: ActionConsoleBufferWriteChar, Char: byte(args.A0), CapsuleID: args.A1},
		}
	case vendorConsoleReadChar:
		return Result{Err: Success, Action: Action{Kind: ActionConsoleBufferReadChar}}
	case vendorHypervisorReadChar:
		return Result{Err: Success, Action: Action{Kind: ActionHypervisorBufferReadChar}}
	default:
		return Result{
			Err:    NotSupported,
			Action: Action{Kind: ActionUnknown, Ext: args.Ext, Fn: args.Fn},
		}
	}
}
