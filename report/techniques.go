// SPDX-License-Identifier: MIT
package report

import "github.com/irobf/obfuscator/config"
import "github.com/irobf/obfuscator/metrics"

// techniqueInfo binds one of the 16 techniques to everything the report
// needs to render it: its canonical name (spec §6's bit-exact string), its
// fixed effectiveness weight, the metric key its counter lives under (empty
// when the technique has none, see anti-tamper below), and a short narrative
// line.
type techniqueInfo struct {
	Technique config.Technique
	Name      string
	Weight    int
	Metric    metrics.Key
	Narrative string
}

// techniqueTable is the fixed, ordered 16-technique report catalogue (spec
// §6's canonical-name list). Three techniques — constant obfuscation,
// indirect function calls, and anti-tamper protection — appear in the
// canonical name list but not in §6's weight table; they carry Weight 0 and
// are excluded from both the numerator and the denominator of the
// effectiveness score (see effectivenessScore in report.go), rather than
// guessing a weight the spec never gives.
var techniqueTable = []techniqueInfo{
	{config.TechControlFlow, "Control Flow Obfuscation", 15, metrics.ControlFlowObfs,
		"Injects opaque predicates that branch identically at runtime but resist static resolution."},
	{config.TechStringEncryption, "String Encryption", 10, metrics.StringEncrypts,
		"Encrypts constant string data in place, restored by an injected load-time constructor."},
	{config.TechBogusCode, "Bogus Code Generation", 12, metrics.BogusInstrs,
		"Interleaves dead instructions that never affect a block's observable result."},
	{config.TechFakeLoops, "Fake Loop Insertion", 8, metrics.FakeLoops,
		"Wraps blocks in loops that always execute exactly once, inflating apparent control flow."},
	{config.TechInstrSub, "Instruction Substitution", 7, metrics.InstrSubs,
		"Replaces multiplications and divisions by powers of two with shift instructions."},
	{config.TechFlatten, "Control Flow Flattening", 18, metrics.FlattenedFunctions,
		"Collapses a function's block graph into one dispatcher switch driven by a state variable."},
	{config.TechMBA, "Mixed Boolean Arithmetic (MBA)", 14, metrics.MBATransforms,
		"Rewrites arithmetic as algebraic identities mixing bitwise and arithmetic operators."},
	{config.TechAntiDebug, "Anti-Debug Protection", 10, metrics.AntiDebug,
		"Probes for an attached debugger at function entry and diverts execution on detection."},
	{config.TechIndirectCalls, "Indirect Function Calls", 0, metrics.IndirectCalls,
		"Routes direct calls through a function-pointer table populated at load time."},
	{config.TechConstObf, "Constant Obfuscation", 0, metrics.ConstObfs,
		"Replaces literal constants with equivalent runtime-computed expressions."},
	{config.TechAntiTamper, "Anti-Tamper Protection", 0, "",
		"Stores a compile-time checksum and compares it at runtime before proceeding."},
	{config.TechVirtualize, "Code Virtualization", 20, metrics.VirtualizedFunctions,
		"Replaces a function's body with bytecode executed by a synthesized interpreter."},
	{config.TechPolymorphic, "Polymorphic Code Generation", 16, metrics.PolymorphicVariants,
		"Clones each function into behaviorally equivalent variants with randomized structure."},
	{config.TechAntiAnalysis, "Anti-Analysis Detection", 11, metrics.AntiAnalysis,
		"Probes for known analysis-tool modules and diverts execution on detection."},
	{config.TechMetamorphic, "Metamorphic Transformations", 13, metrics.Metamorphic,
		"Randomizes instruction and block layout while preserving semantics."},
	{config.TechDynamicObf, "Dynamic Obfuscation", 12, metrics.DynamicObfs,
		"Registers a load-time constructor that performs inert but analysis-hostile work."},
}

// totalPossibleWeight is the fixed denominator of the effectiveness score:
// the sum of every technique's weight in techniqueTable, computed once.
var totalPossibleWeight = func() int {
	sum := 0
	for _, t := range techniqueTable {
		sum += t.Weight
	}
	return sum
}()
