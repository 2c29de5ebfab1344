// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// FakeLoops runs fake-loop-count times (spec §4.F): each round picks a block
// whose terminator has at least one successor, splices a dead self-loop
// onto one of that successor edges, and rewires the edge through it. The
// predicate guarding the self-loop is always false — `(n*(n+1)) mod 2 == 1`
// never holds, since one of two consecutive integers is always even — so
// control reaches fake-exit in zero iterations and behavior is unchanged.
func FakeLoops(fn *ir.Function, ctx Context) bool {
	modified := false
	for i := 0; i < ctx.Cfg.FakeLoopCount; i++ {
		candidates := candidateBlocks(fn)
		if len(candidates) == 0 {
			break
		}
		src := candidates[ctx.RNG.Intn(len(candidates))]
		term := src.Terminator()
		succIdx := ctx.RNG.Intn(len(term.Successors))
		original := term.Successors[succIdx]

		fakeLoop := irutil.CreateBlock(fn, ctx.Names.FreshName("fake.loop"))
		fakeExit := irutil.CreateBlock(fn, ctx.Names.FreshName("fake.exit"))

		pred := buildAlwaysFalsePredicate(fakeLoop, ctx)
		irutil.TerminateBr(fakeLoop, pred, fakeLoop, fakeExit)
		irutil.TerminateBrUncond(fakeExit, original)

		term.Successors[succIdx] = fakeLoop

		ctx.Metrics.Inc(metrics.FakeLoops)
		modified = true
	}
	return modified
}

// candidateBlocks returns every block in fn whose terminator currently has
// at least one successor (branch targets to splice a fake loop onto).
func candidateBlocks(fn *ir.Function) []*ir.BasicBlock {
	var out []*ir.BasicBlock
	for _, b := range irutil.SnapshotBlocks(fn) {
		if len(b.Successors()) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// buildAlwaysFalsePredicate appends the instructions computing
// `(n*(n+1)) mod 2 == 1` to b and returns the i1 result value. Structurally
// identical to controlflow.go's always-true build, with the final
// comparison flipped.
func buildAlwaysFalsePredicate(b *ir.BasicBlock, ctx Context) ir.Value {
	n := int64(ctx.RNG.Intn(1 << 20))
	nPtr := ctx.Names.FreshName("fl.n.ptr")
	nName := ctx.Names.FreshName("fl.n")
	n1Name := ctx.Names.FreshName("fl.n1")
	prodName := ctx.Names.FreshName("fl.prod")
	bitName := ctx.Names.FreshName("fl.bit")
	predName := ctx.Names.FreshName("fl.pred")

	b.Append(ir.NewInstruction(ir.OpAlloca, nPtr, "i32*"))
	b.Append(&ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(nPtr), ir.ConstValue(n)}})
	b.Append(ir.NewInstruction(ir.OpLoad, nName, "i32", ir.LocalValue(nPtr)))
	b.Append(ir.NewInstruction(ir.OpAdd, n1Name, "i32", ir.LocalValue(nName), ir.ConstValue(1)))
	b.Append(ir.NewInstruction(ir.OpMul, prodName, "i32", ir.LocalValue(nName), ir.LocalValue(n1Name)))
	b.Append(ir.NewInstruction(ir.OpAnd, bitName, "i32", ir.LocalValue(prodName), ir.ConstValue(1)))
	b.Append(ir.NewInstruction(ir.OpICmp, predName, "i1", ir.LocalValue(bitName), ir.ConstValue(1)))
	return ir.LocalValue(predName)
}
