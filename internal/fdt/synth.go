package fdt

import "strings"

// GuestConfig describes the capsule a synthesized device tree should
// advertise to its guest kernel.
type GuestConfig struct {
	Cores             int
	RAMBase, RAMSize  uint64
	ISA               string // the host's riscv,isa string, lower-cased by Synthesize
	Bits              int    // 32 or 64
	TimebaseFrequency uint32
	BootCPUID         uint32
}

// Synthesize builds a reduced flattened device tree for a single capsule,
// grounded on the node-by-node shape a real RISC-V guest tree uses: one
// memory node sized to the capsule's RAM area, one cpu@N node per vCPU each
// with its own interrupt-controller child, and a /chosen node selecting the
// SBI console. There is no PLIC/CLINT/UART node: the capsule's console and
// timer are mediated through SBI, not MMIO passthrough, so nothing in the
// guest's tree names physical peripherals it cannot touch directly.
func Synthesize(cfg GuestConfig) []byte {
	mmuType := "riscv,sv48"
	if cfg.Bits == 32 {
		mmuType = "riscv,sv32"
	}

	root := Node{
		Name: "",
		Properties: map[string]Property{
			"#address-cells": {U32: []uint32{2}},
			"#size-cells":    {U32: []uint32{2}},
		},
	}

	chosen := Node{
		Name: "chosen",
		Properties: map[string]Property{
			"bootargs": {Strings: []string{"console=hvc0"}},
			"boot-cpu": {U32: []uint32{cfg.BootCPUID}},
		},
	}
	root.Children = append(root.Children, chosen)

	cpus := Node{
		Name: "cpus",
		Properties: map[string]Property{
			"#address-cells":     {U32: []uint32{1}},
			"#size-cells":        {U32: []uint32{0}},
			"timebase-frequency": {U32: []uint32{cfg.TimebaseFrequency}},
		},
	}
	for i := 0; i < cfg.Cores; i++ {
		cpu := Node{
			Name: nodeNameHex("cpu", uint64(i)),
			Properties: map[string]Property{
				"device_type": {Strings: []string{"cpu"}},
				"reg":         {U32: []uint32{uint32(i)}},
				"status":      {Strings: []string{"okay"}},
				"compatible":  {Strings: []string{"riscv"}},
				"mmu-type":    {Strings: []string{mmuType}},
				"riscv,isa":   {Strings: []string{strings.ToLower(cfg.ISA)}},
			},
			Children: []Node{{
				Name: "interrupt-controller",
				Properties: map[string]Property{
					"#interrupt-cells":     {U32: []uint32{1}},
					"interrupt-controller": {Flag: true},
					"compatible":           {Strings: []string{"riscv,cpu-intc"}},
				},
			}},
		}
		cpus.Children = append(cpus.Children, cpu)
	}
	root.Children = append(root.Children, cpus)

	memory := Node{
		Name: nodeNameHex("memory", cfg.RAMBase),
		Properties: map[string]Property{
			"device_type": {Strings: []string{"memory"}},
			"reg":         {U64: []uint64{cfg.RAMBase, cfg.RAMSize}},
		},
	}
	root.Children = append(root.Children, memory)

	blob, err := Build(root)
	if err != nil {
		// Synthesize only ever constructs well-formed properties above;
		// a Build failure here means this function itself is broken.
		panic(err)
	}
	return blob
}

func nodeNameHex(prefix string, unit uint64) string {
	const hex = "0123456789abcdef"
	if unit == 0 {
		return prefix + "@0"
	}
	var digits []byte
	for unit > 0 {
		digits = append([]byte{hex[unit&0xf]}, digits...)
		unit >>= 4
	}
	return prefix + "@" + string(digits)
}
