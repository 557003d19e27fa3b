package fdt

import "testing"

func TestBuildParseRoundTrip(t *testing.T) {
	root := Node{
		Name: "",
		Properties: map[string]Property{
			"#address-cells": {U32: []uint32{2}},
		},
		Children: []Node{
			{
				Name: "memory@80000000",
				Properties: map[string]Property{
					"device_type": {Strings: []string{"memory"}},
					"reg":         {U64: []uint64{0x8000_0000, 0x1000_0000}},
				},
			},
		},
	}

	blob, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	parsed, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cells, ok := parsed.PropertyU32("#address-cells")
	if !ok || len(cells) != 1 || cells[0] != 2 {
		t.Fatalf("#address-cells = %v, %v", cells, ok)
	}

	mem, ok := parsed.Find("memory@80000000")
	if !ok {
		t.Fatalf("memory@80000000 not found in parsed tree")
	}
	reg, err := mem.PropertyU64Cells("reg", 2)
	if err != nil {
		t.Fatalf("PropertyU64Cells: %v", err)
	}
	if len(reg) != 2 || reg[0] != 0x8000_0000 || reg[1] != 0x1000_0000 {
		t.Fatalf("reg = %#x", reg)
	}

	devType, ok := mem.PropertyString("device_type")
	if !ok || devType != "memory" {
		t.Fatalf("device_type = %q, %v", devType, ok)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	if _, err := Parse([]byte("not an fdt blob at all, padded out")); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestSynthesizeGuestTree(t *testing.T) {
	blob := Synthesize(GuestConfig{
		Cores:             2,
		RAMBase:           0x8000_0000,
		RAMSize:           0x800_0000,
		ISA:               "RV64IMAFDC",
		Bits:              64,
		TimebaseFrequency: 10_000_000,
		BootCPUID:         0,
	})

	root, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse synthesized blob: %v", err)
	}

	cpus, ok := root.Find("cpus")
	if !ok {
		t.Fatal("missing /cpus node")
	}
	cpuNodes := cpus.FindPrefix("cpu@")
	if len(cpuNodes) != 2 {
		t.Fatalf("expected 2 cpu nodes, got %d", len(cpuNodes))
	}

	isa, ok := cpuNodes[0].PropertyString("riscv,isa")
	if !ok || isa != "rv64imafdc" {
		t.Fatalf("riscv,isa = %q, %v, want lower-cased", isa, ok)
	}

	mmuType, ok := cpuNodes[0].PropertyString("mmu-type")
	if !ok || mmuType != "riscv,sv48" {
		t.Fatalf("mmu-type = %q, %v", mmuType, ok)
	}

	if _, ok := cpuNodes[0].Find("interrupt-controller"); !ok {
		t.Fatal("cpu node missing interrupt-controller child")
	}

	chosen, ok := root.Find("chosen")
	if !ok {
		t.Fatal("missing /chosen node")
	}
	bootargs, ok := chosen.PropertyString("bootargs")
	if !ok || bootargs != "console=hvc0" {
		t.Fatalf("bootargs = %q, %v", bootargs, ok)
	}

	mem, ok := root.Find("memory@80000000")
	if !ok {
		t.Fatal("missing memory node")
	}
	reg, err := mem.PropertyU64Cells("reg", 2)
	if err != nil || reg[0] != 0x8000_0000 || reg[1] != 0x800_0000 {
		t.Fatalf("memory reg = %#x, err=%v", reg, err)
	}
}

func Test32BitMMUType(t *testing.T) {
	blob := Synthesize(GuestConfig{Cores: 1, Bits: 32, ISA: "RV32IMAC"})
	root, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cpus, _ := root.Find("cpus")
	cpuNodes := cpus.FindPrefix("cpu@")
	mmuType, _ := cpuNodes[0].PropertyString("mmu-type")
	if mmuType != "riscv,sv32" {
		t.Fatalf("mmu-type = %q, want riscv,sv32", mmuType)
	}
}
