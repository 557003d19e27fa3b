// Command rvmonitor-sim is the host-side harness: it loads a flattened
// device tree on the development host and drives platform discovery, the
// trap dispatcher and the SBI handler the same way real machine-mode firmware would,
// using an mmap'd region in place of physical MMIO. It never runs on
// real RISC-V hardware; production firmware calls the internal/ packages
// directly from its own trap entry stub.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tinyrange/rvmonitor/internal/hostio"
	"github.com/tinyrange/rvmonitor/internal/monlog"
	"github.com/tinyrange/rvmonitor/internal/simharness"
	"golang.org/x/term"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	dtbPath := fs.String("dtb", "", "Flattened device tree blob to load")
	debug := fs.Bool("debug", false, "Enable debug logging")
	busSize := fs.Int("bus-size", 0x1000_0000, "Size in bytes of the simulated physical address space")
	interactive := fs.Bool("interactive", false, "Put the host terminal in raw mode for the synthesized debug console")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if *dtbPath == "" {
		fs.Usage()
		os.Exit(1)
	}

	if *interactive && term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvmonitor-sim: enable raw mode: %v\n", err)
			os.Exit(1)
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	}

	dtb, err := os.ReadFile(*dtbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvmonitor-sim: read dtb: %v\n", err)
		os.Exit(1)
	}

	logger := monlog.New(os.Stderr, *debug)

	bus, err := hostio.NewRegion(0, *busSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvmonitor-sim: %v\n", err)
		os.Exit(1)
	}
	defer bus.Close()

	_, pass, err := simharness.Run(logger, dtb, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvmonitor-sim: %v\n", err)
		os.Exit(1)
	}
	if !pass {
		os.Exit(1)
	}
}
