// SPDX-License-Identifier: MIT
//
// Package config is the Configuration & Preset Resolver (spec §4.E): an
// immutable per-run Config, the three built-in presets, and the per-function
// effective-configuration resolution auto-select performs under a size cap.
//
// Construction follows the teacher's functional-options idiom
// (builder.BuilderOption / builder.newBuilderConfig in
// _examples/katalvlaran-lvlath/builder), adapted so that, unlike the
// teacher's WithIDScheme/WithRand (which panic on a nil/invalid input per
// its "99-rules"), Option constructors here normalize instead of panicking:
// spec §4.E describes this layer as one that "normalizes the active
// configuration", and a config value is user input arriving from an
// external driver (out of scope, spec §1), not a programmer error.
package config

// StringScheme selects the string-encryption cipher (spec §3, §6).
type StringScheme string

const (
	SchemeWeakXOR    StringScheme = "weak-xor"
	SchemeRC4Simple  StringScheme = "rc4-simple"
	SchemeRC4Derived StringScheme = "rc4-derived"
)

// SizeMode bounds how much instruction-count growth auto-select tolerates.
type SizeMode string

const (
	SizeNone       SizeMode = "none"
	SizeMinimal    SizeMode = "minimal"
	SizeBalanced   SizeMode = "balanced"
	SizeAggressive SizeMode = "aggressive"
)

// Technique names one of the 16 independently toggleable transformations
// (spec §2's sixteen interacting transformations).
type Technique string

const (
	TechControlFlow      Technique = "control-flow"
	TechBogusCode        Technique = "bogus-code"
	TechFakeLoops        Technique = "fake-loops"
	TechInstrSub         Technique = "instr-sub"
	TechFlatten          Technique = "flatten"
	TechMBA              Technique = "mba"
	TechConstObf         Technique = "const-obf"
	TechVirtualize       Technique = "virtualize"
	TechPolymorphic      Technique = "polymorphic"
	TechMetamorphic      Technique = "metamorphic"
	TechStringEncryption Technique = "string-encryption"
	TechIndirectCalls    Technique = "indirect-calls"
	TechAntiDebug        Technique = "anti-debug"
	TechAntiAnalysis     Technique = "anti-analysis"
	TechAntiTamper       Technique = "anti-tamper"
	TechDynamicObf       Technique = "dynamic-obf"
)

// allTechniques is the fixed, ordered 16-technique set.
var allTechniques = []Technique{
	TechControlFlow, TechBogusCode, TechFakeLoops, TechInstrSub, TechFlatten,
	TechMBA, TechConstObf, TechVirtualize, TechPolymorphic, TechMetamorphic,
	TechStringEncryption, TechIndirectCalls, TechAntiDebug, TechAntiAnalysis,
	TechAntiTamper, TechDynamicObf,
}

// Techniques returns the fixed 16-technique set in canonical order.
func Techniques() []Technique { return append([]Technique(nil), allTechniques...) }

// Toggles enables or disables each of the 16 techniques.
type Toggles map[Technique]bool

func (t Toggles) clone() Toggles {
	out := make(Toggles, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Enabled reports whether tech is on; an absent key defaults to false.
func (t Toggles) Enabled(tech Technique) bool { return t[tech] }

// Config is the immutable per-run record of spec §3's Configuration.
type Config struct {
	Toggles Toggles

	Cycles int

	BogusPercent  int
	FakeLoopCount int
	MBALevel      int
	FlattenProb   int
	VMLevel       int
	PolyVariants  int

	StringScheme StringScheme
	PBKDF2Iters  int

	DecryptAtStartup bool

	SizeMode     SizeMode
	MaxGrowthPct int

	AutoSelect bool
	ReportPath string
}

// Default returns the spec §6 configuration-surface defaults, with every
// technique disabled (callers enable what they want via Option, or start
// from a Preset).
func Default() Config {
	return Config{
		Toggles:          make(Toggles),
		Cycles:           3,
		BogusPercent:     30,
		FakeLoopCount:    5,
		MBALevel:         3,
		FlattenProb:      80,
		VMLevel:          2,
		PolyVariants:     5,
		StringScheme:     SchemeWeakXOR,
		PBKDF2Iters:      1000,
		DecryptAtStartup: true,
		SizeMode:         SizeNone,
		MaxGrowthPct:     200,
		AutoSelect:       true,
	}
}
