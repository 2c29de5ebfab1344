// SPDX-License-Identifier: MIT

package config

// Option mutates a Config during New, the same functional-options shape the
// teacher's builder.BuilderOption uses. Unlike the teacher's WithAmplitude /
// WithFrequency / WithNoise (which panic on an out-of-range value), every
// Option here clamps into range instead: these values originate from an
// external driver's config surface (out of scope, spec §1), and spec §4.E
// frames this layer as the one that "normalizes the active configuration" —
// clamping is that normalization, not a place to fail fast.
type Option func(*Config)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// New builds a Config from Default plus opts, applied in order.
func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTechniques enables exactly the given techniques and disables every
// other one.
func WithTechniques(techs ...Technique) Option {
	return func(c *Config) {
		t := make(Toggles, len(allTechniques))
		for _, tech := range techs {
			t[tech] = true
		}
		c.Toggles = t
	}
}

// WithTechnique toggles a single technique without touching the rest.
func WithTechnique(tech Technique, enabled bool) Option {
	return func(c *Config) {
		if c.Toggles == nil {
			c.Toggles = make(Toggles)
		}
		c.Toggles[tech] = enabled
	}
}

// WithCycles clamps the number of obfuscation cycles to [1,10] (spec §5).
func WithCycles(n int) Option {
	return func(c *Config) { c.Cycles = clampInt(n, 1, 10) }
}

// WithBogusPercent clamps the bogus-code insertion rate to [0,100].
func WithBogusPercent(pct int) Option {
	return func(c *Config) { c.BogusPercent = clampInt(pct, 0, 100) }
}

// WithFakeLoopCount clamps the number of fake loops injected per function to [0,50].
func WithFakeLoopCount(n int) Option {
	return func(c *Config) { c.FakeLoopCount = clampInt(n, 0, 50) }
}

// WithMBALevel clamps the mixed-boolean-arithmetic substitution depth to [1,5].
func WithMBALevel(level int) Option {
	return func(c *Config) { c.MBALevel = clampInt(level, 1, 5) }
}

// WithFlattenProb clamps the flatten-prob setting to [0,100]. The value is
// recorded in the Config and shown in the report; Flatten does not read it
// and flattens every eligible function.
func WithFlattenProb(pct int) Option {
	return func(c *Config) { c.FlattenProb = clampInt(pct, 0, 100) }
}

// WithVMLevel clamps the vm-level setting to [0,3]. Only auto-select's
// growth estimate reads it; Virtualize emits one level of bytecode whatever
// its value.
func WithVMLevel(level int) Option {
	return func(c *Config) { c.VMLevel = clampInt(level, 0, 3) }
}

// WithPolyVariants clamps the polymorphic clone count to [1,20].
func WithPolyVariants(n int) Option {
	return func(c *Config) { c.PolyVariants = clampInt(n, 1, 20) }
}

// WithStringScheme selects the string-encryption cipher; an unrecognized
// value falls back to SchemeWeakXOR rather than erroring.
func WithStringScheme(scheme StringScheme) Option {
	return func(c *Config) {
		switch scheme {
		case SchemeWeakXOR, SchemeRC4Simple, SchemeRC4Derived:
			c.StringScheme = scheme
		default:
			c.StringScheme = SchemeWeakXOR
		}
	}
}

// WithPBKDF2Iters clamps the key-derivation iteration count to [1,100000].
func WithPBKDF2Iters(n int) Option {
	return func(c *Config) { c.PBKDF2Iters = clampInt(n, 1, 100000) }
}

// WithDecryptAtStartup toggles whether encrypted strings are decrypted by an
// injected constructor at load time. When false no decrypt constructor is
// emitted and nothing decrypts the strings; there is no lazy decryption.
func WithDecryptAtStartup(atStartup bool) Option {
	return func(c *Config) { c.DecryptAtStartup = atStartup }
}

// WithSizeMode selects a named growth ceiling; an unrecognized value falls
// back to SizeNone (uncapped).
func WithSizeMode(mode SizeMode) Option {
	return func(c *Config) {
		switch mode {
		case SizeMinimal:
			c.SizeMode, c.MaxGrowthPct = mode, 50
		case SizeBalanced:
			c.SizeMode, c.MaxGrowthPct = mode, 200
		case SizeAggressive:
			c.SizeMode, c.MaxGrowthPct = mode, 1000
		default:
			c.SizeMode, c.MaxGrowthPct = SizeNone, 0
		}
	}
}

// WithMaxGrowthPct sets an explicit growth ceiling directly, overriding
// whatever WithSizeMode computed; negative values clamp to 0 (uncapped is
// expressed via SizeMode, not a negative number).
func WithMaxGrowthPct(pct int) Option {
	return func(c *Config) {
		if pct < 0 {
			pct = 0
		}
		c.MaxGrowthPct = pct
	}
}

// WithAutoSelect toggles auto-select's per-function greedy technique drop
// under the active size cap (spec §4.E).
func WithAutoSelect(enabled bool) Option {
	return func(c *Config) { c.AutoSelect = enabled }
}

// WithReportPath records a report path in the Config. Nothing in this module
// reads it: pipeline.Run always builds the report, and report.WriteTo writes
// it to whatever io.Writer the caller supplies.
func WithReportPath(path string) Option {
	return func(c *Config) { c.ReportPath = path }
}
