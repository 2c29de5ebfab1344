// SPDX-License-Identifier: MIT
//
// Package transform is the Function-Level Transform Suite (spec §4.F): the
// ten obfuscating rewrites that take one function plus an effective
// configuration and leave it verifier-clean. Most mutation goes through
// irutil's builders and ir.BasicBlock.InsertAt; MBA and instruction
// substitution splice a block's instruction slice directly.
//
// Grounded on the teacher's algorithms packages (bfs.BFS, dfs.DFS in
// _examples/katalvlaran-lvlath): each transform here is structurally a
// small graph walk over a function's blocks, built the same
// visited/snapshot-then-mutate way those walk core.Graph.
package transform

import (
	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

// Context bundles the per-run resources every transform needs: the shared
// deterministic RNG, the metrics recorder, the effective configuration
// already resolved for the function being transformed (spec §4.E output),
// and the one Namer pipeline.Run owns for its lifetime so fresh names replay
// identically across runs (spec §8 property 7).
type Context struct {
	RNG     *rng.Source
	Metrics *metrics.Recorder
	Cfg     config.Config
	Module  *ir.Module
	Names   *irutil.Namer
}

// Func is one function-level transform: it mutates fn in place and reports
// whether it changed anything.
type Func func(fn *ir.Function, ctx Context) bool

// Registry maps each function-level technique to its implementation, in the
// fixed application order spec §4.H's pipeline driver requires.
var Registry = []struct {
	Technique config.Technique
	Apply     Func
}{
	{config.TechControlFlow, ControlFlowOpaquePredicates},
	{config.TechBogusCode, BogusCode},
	{config.TechFakeLoops, FakeLoops},
	{config.TechInstrSub, InstructionSubstitution},
	{config.TechFlatten, Flatten},
	{config.TechMBA, MixedBooleanArithmetic},
	{config.TechConstObf, ConstantObfuscation},
	{config.TechVirtualize, Virtualize},
	{config.TechPolymorphic, nil}, // applied module-wide by the pipeline; see polymorphic.go
	{config.TechMetamorphic, Metamorphic},
}

// insertBeforeTerminator inserts insts, in order, immediately before b's
// current terminator. Opaque predicates use this to add the predicate's
// computation to a block instead of Append, since Append would place
// new instructions after the terminator and break the "exactly one
// terminator, always last" invariant ir.Verify checks.
func insertBeforeTerminator(b *ir.BasicBlock, insts ...*ir.Instruction) {
	idx := len(b.Instructions) - 1
	if idx < 0 {
		idx = 0
	}
	for _, inst := range insts {
		b.InsertAt(idx, inst)
		idx++
	}
}
