// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// ControlFlowOpaquePredicates rewrites every conditional branch's condition
// to `original AND predicate`, where predicate is the always-true
// `((n*(n+1)) mod 2) == 0` built from freshly stored local state so no later
// dead-code pass can fold it away (spec §4.F). n*(n+1) is always even since
// one of two consecutive integers is even, so `mod 2 == 0`, expressed here
// as `& 1 == 0`, is a tautology — the AND never changes which way the
// branch goes.
func ControlFlowOpaquePredicates(fn *ir.Function, ctx Context) bool {
	modified := false
	for _, b := range irutil.SnapshotBlocks(fn) {
		term := b.Terminator()
		if term == nil || term.Op != ir.OpBr {
			continue
		}

		n := int64(ctx.RNG.Intn(1 << 20))
		nName := ctx.Names.FreshName("opaque.n")
		nPtr := ctx.Names.FreshName("opaque.n.ptr")
		n1Name := ctx.Names.FreshName("opaque.n1")
		prodName := ctx.Names.FreshName("opaque.prod")
		bitName := ctx.Names.FreshName("opaque.bit")
		predName := ctx.Names.FreshName("opaque.pred")
		andName := ctx.Names.FreshName("opaque.and")

		alloca := ir.NewInstruction(ir.OpAlloca, nPtr, "i32*")
		store := &ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(nPtr), ir.ConstValue(n)}}
		load := ir.NewInstruction(ir.OpLoad, nName, "i32", ir.LocalValue(nPtr))
		add1 := ir.NewInstruction(ir.OpAdd, n1Name, "i32", ir.LocalValue(nName), ir.ConstValue(1))
		mul := ir.NewInstruction(ir.OpMul, prodName, "i32", ir.LocalValue(nName), ir.LocalValue(n1Name))
		bit := ir.NewInstruction(ir.OpAnd, bitName, "i32", ir.LocalValue(prodName), ir.ConstValue(1))
		pred := ir.NewInstruction(ir.OpICmp, predName, "i1", ir.LocalValue(bitName), ir.ConstValue(0))

		origCond := term.Operands[0]
		and := ir.NewInstruction(ir.OpAnd, andName, "i1", origCond, ir.LocalValue(predName))

		insertBeforeTerminator(b, alloca, store, load, add1, mul, bit, pred, and)
		term.Operands[0] = ir.LocalValue(andName)

		ctx.Metrics.Inc(metrics.ControlFlowObfs)
		modified = true
	}
	return modified
}
