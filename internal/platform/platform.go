// Package platform builds the Devices aggregate spec.md describes: a
// parsed device tree plus the handful of cached essentials the rest of
// the monitor needs without re-walking the tree on every access.
// Grounded directly on original_source's devices.rs Devices::new, which
// performs exactly this discovery (sum logical core IDs under /cpus,
// collect /memory@* reg chunks, find a /soc/clint@* node for the
// scheduler timer, choose a debug console via /chosen/stdout-path or
// /aliases/serial0..3, look up errata by /model) against the teacher's
// fdt package rather than the original's devicetree crate.
package platform

import (
	"fmt"
	"strings"

	"github.com/tinyrange/rvmonitor/internal/errata"
	"github.com/tinyrange/rvmonitor/internal/fdt"
	"github.com/tinyrange/rvmonitor/internal/physmem"
	"github.com/tinyrange/rvmonitor/internal/serial"
	"github.com/tinyrange/rvmonitor/internal/timer"
)

// Devices is the platform inventory built once at boot from the
// firmware-supplied device tree and held for the monitor's lifetime.
type Devices struct {
	Model     string
	CoreCount int
	RAM       []physmem.RAMArea

	Console        *serial.Port // nil if no compatible console was found
	SchedulerTimer *timer.Timer // nil if no CLINT node was found

	ErrataKnown uint64
	ErrataFixed uint64
}

// Discover parses blob and populates a Devices from it. serialBus and
// timerBus back whatever console/timer MMIO discovery finds; either may
// be nil if the caller has no console or no CLINT to offer (Discover
// then leaves Console/SchedulerTimer nil).
func Discover(blob []byte, serialBus serial.Bus, timerBus timer.Bus) (*Devices, error) {
	root, err := fdt.Parse(blob)
	if err != nil {
		return nil, err
	}

	d := &Devices{}
	d.Model, _ = root.PropertyString("model")
	d.ErrataKnown, d.ErrataFixed = errata.Lookup(d.Model)
	d.CoreCount = countCores(root)
	d.RAM = collectRAM(root)

	if serialBus != nil {
		d.Console = findConsole(root, serialBus)
	}
	if timerBus != nil {
		d.SchedulerTimer = findSchedulerTimer(root, timerBus)
	}

	return d, nil
}

// countCores sums, over every /cpus/cpu* node, the number of logical core
// IDs its "reg" property lists — not the node count, since a single
// physical-core node can enumerate more than one hart in "reg".
func countCores(root fdt.Node) int {
	cpus, ok := root.Find("cpus")
	if !ok {
		return 0
	}
	addressCells := 1
	if vals, ok := cpus.PropertyU32("#address-cells"); ok && len(vals) > 0 {
		addressCells = int(vals[0])
	}

	count := 0
	for _, cpu := range cpus.FindPrefix("cpu@") {
		ids, err := cpu.PropertyU64Cells("reg", addressCells)
		if err != nil {
			continue
		}
		count += len(ids)
	}
	return count
}

func collectRAM(root fdt.Node) []physmem.RAMArea {
	var areas []physmem.RAMArea
	for _, mem := range root.FindPrefix("memory@") {
		cells, err := mem.PropertyU64Cells("reg", 2)
		if err != nil || len(cells)%2 != 0 {
			continue
		}
		for i := 0; i+1 < len(cells); i += 2 {
			areas = append(areas, physmem.RAMArea{Base: cells[i], Size: cells[i+1]})
		}
	}
	return areas
}

// findConsole resolves the debug console the way firmware does: prefer
// /chosen/stdout-path, then fall back to /aliases/serial0..serial3 in
// order. Neither mechanism is a substring search over the whole tree —
// both name one specific node, so that's the only node ever tried.
func findConsole(root fdt.Node, bus serial.Bus) *serial.Port {
	if chosen, ok := root.Find("chosen"); ok {
		if path, ok := chosen.PropertyString("stdout-path"); ok {
			if node, ok := resolveNodePath(root, path); ok {
				if port, ok := consolePort(node, bus); ok {
					return port
				}
			}
		}
	}

	if aliases, ok := root.Find("aliases"); ok {
		for i := 0; i < 4; i++ {
			path, ok := aliases.PropertyString(fmt.Sprintf("serial%d", i))
			if !ok {
				continue
			}
			if node, ok := resolveNodePath(root, path); ok {
				if port, ok := consolePort(node, bus); ok {
					return port
				}
			}
		}
	}

	return nil
}

// resolveNodePath follows a /chosen/stdout-path value, which may carry a
// trailing ":options" suffix (stripped) and may itself be an alias name
// rather than a full path, resolved through /aliases in that case.
func resolveNodePath(root fdt.Node, path string) (fdt.Node, bool) {
	if i := strings.IndexByte(path, ':'); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		aliases, ok := root.Find("aliases")
		if !ok {
			return fdt.Node{}, false
		}
		aliased, ok := aliases.PropertyString(path)
		if !ok {
			return fdt.Node{}, false
		}
		if i := strings.IndexByte(aliased, ':'); i >= 0 {
			aliased = aliased[:i]
		}
		path = aliased
	}
	return root.Find(strings.TrimPrefix(path, "/"))
}

// consolePort builds a serial.Port from a node's own compatible/reg
// properties, the shape both stdout-path and every serial alias resolve to.
func consolePort(node fdt.Node, bus serial.Bus) (*serial.Port, bool) {
	compat, ok := node.PropertyString("compatible")
	if !ok {
		return nil, false
	}
	cells, err := node.PropertyU64Cells("reg", 2)
	if err != nil || len(cells) < 2 {
		return nil, false
	}
	return serial.New(cells[0], cells[1], compat, bus)
}

// findSchedulerTimer locates the first /soc/clint@* node and builds a
// Timer bound to it. The timer's frequency comes from the owning /cpus
// node's timebase-frequency property, defaulting to 10MHz (the common
// QEMU/SiFive value) if absent.
func findSchedulerTimer(root fdt.Node, bus timer.Bus) *timer.Timer {
	soc, ok := root.Find("soc")
	if !ok {
		return nil
	}
	clints := soc.FindPrefix("clint@")
	if len(clints) == 0 {
		return nil
	}
	node := clints[0]
	cells, err := node.PropertyU64Cells("reg", 2)
	if err != nil || len(cells) < 1 {
		return nil
	}

	freq := uint64(10_000_000)
	if cpus, ok := root.Find("cpus"); ok {
		if hz, ok := cpus.PropertyU32("timebase-frequency"); ok && len(hz) > 0 {
			freq = uint64(hz[0])
		}
	}

	timer.SetBus(bus)
	t := &timer.Timer{ControllerBase: cells[0], FrequencyHz: freq, HartID: 0}
	return t
}

// findByCompatible performs a depth-first search for the first node
// whose "compatible" property contains any of substrs, returning the
// matching substring alongside the node.
func findByCompatible(n fdt.Node, substrs []string) (match fdt.Node, compat string, ok bool) {
	if c, has := n.PropertyString("compatible"); has {
		for _, want := range substrs {
			if strings.Contains(c, want) {
				return n, want, true
			}
		}
	}
	for _, child := range n.Children {
		if m, c, ok := findByCompatible(child, substrs); ok {
			return m, c, true
		}
	}
	return fdt.Node{}, "", false
}
