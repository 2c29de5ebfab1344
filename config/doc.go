// Package config is the Configuration & Preset Resolver: an immutable
// per-run Config, the three built-in presets (minimal, balanced,
// aggressive), and per-function effective-configuration resolution under
// auto-select's size cap.
package config
