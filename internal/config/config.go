// Package config loads the monitor's optional boot-time configuration
// blob, grounded on internal/bundle's metadata-yaml shape
// (ccbundle.yaml's tagged struct plus yaml.Unmarshal). Unlike the
// errata registry, which the firmware always embeds, this file is
// optional: the boot stub may pass it alongside the device tree to
// override defaults, or pass nothing and let DefaultBoot apply.
package config

import "gopkg.in/yaml.v3"

// BootConfig carries the handful of settings spec.md leaves to the
// surrounding firmware build rather than hardcoding: how much of each
// core's RAM area the monitor reserves for its own per-core state, and
// which physical console, if any, overrides the one device-tree
// discovery would otherwise select.
type BootConfig struct {
	PerCoreReservedBytes uint64 `yaml:"perCoreReservedBytes"`
	DebugConsoleCompat   string `yaml:"debugConsoleCompat,omitempty"`
}

// DefaultBoot returns the configuration used when no boot config blob is
// supplied: a 64KiB per-core reservation and device-tree discovery left
// to pick the console.
func DefaultBoot() BootConfig {
	return BootConfig{PerCoreReservedBytes: 64 * 1024}
}

// LoadBoot parses a boot config document, falling back to DefaultBoot's
// values for anything the document doesn't set.
func LoadBoot(data []byte) (BootConfig, error) {
	cfg := DefaultBoot()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return BootConfig{}, err
	}
	return cfg, nil
}
