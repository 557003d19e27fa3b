// Package errata tags platforms with known hardware bugs that need
// mitigation in software. The bit assignments and the SiFive HiFive
// Unleashed A00 seed data are carried over from original_source's
// errata.rs; the registry itself is moved out of source into a yaml
// config so new platforms can be added without a rebuild.
package errata

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bit positions within the known/fixed bitfields. Erratum that don't need
// mitigating in the monitor aren't listed, per original_source's comment.
const (
	BitSiFiveFU540Rock3   = 0 // E51 CPU atomic operations not ordered correctly
	BitSiFiveFU540CCache1 = 1 // L2 ECC failed address reporting flawed
	BitSiFiveFU540I2C1    = 2 // I2C interrupt cannot be cleared
)

var bitNames = map[string]uint64{
	"sifive_fu540_c000_rock_3":   BitSiFiveFU540Rock3,
	"sifive_fu540_c000_ccache_1": BitSiFiveFU540CCache1,
	"sifive_fu540_c000_i2c_1":    BitSiFiveFU540I2C1,
}

type platformEntry struct {
	Match string   `yaml:"match"`
	Known []string `yaml:"known"`
	Fixed []string `yaml:"fixed"`
}

type registry struct {
	Platforms []platformEntry `yaml:"platforms"`
}

//go:embed errata.yaml
var defaultRegistryYAML []byte

// Lookup returns the known/fixed errata bitfields for a platform whose
// device-tree "model" string contains one of the built-in registry's
// match substrings. An unmatched model returns (0, 0).
func Lookup(model string) (known, fixed uint64) {
	return LookupIn(defaultRegistryYAML, model)
}

// LookupIn performs the same lookup as Lookup against an explicit registry
// document, for callers loading errata data from a boot-time config file
// instead of the built-in default.
func LookupIn(registryYAML []byte, model string) (known, fixed uint64) {
	var reg registry
	if err := yaml.Unmarshal(registryYAML, &reg); err != nil {
		return 0, 0
	}
	for _, p := range reg.Platforms {
		if p.Match == "" || !strings.Contains(model, p.Match) {
			continue
		}
		known |= bitsFor(p.Known)
		fixed |= bitsFor(p.Fixed)
	}
	return known, fixed
}

func bitsFor(names []string) uint64 {
	var mask uint64
	for _, n := range names {
		if bit, ok := bitNames[n]; ok {
			mask |= 1 << bit
		}
	}
	return mask
}
