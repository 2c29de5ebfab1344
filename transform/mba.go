// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// MixedBooleanArithmetic rewrites every `add a, b` into
// `(a XOR b) + 2*(a AND b)` and every `sub a, b` into
// `(a XOR b) - 2*(NOT a AND b)` (spec §4.F) — bitwise identities that hold
// at every width. mba-level controls how many times the outer combining
// add/sub is itself re-expanded, nesting the identity into itself for a
// deeper (and proportionally larger) rewrite.
func MixedBooleanArithmetic(fn *ir.Function, ctx Context) bool {
	modified := false
	for _, b := range fn.Blocks {
		for i := 0; i < len(b.Instructions); i++ {
			inst := b.Instructions[i]
			if inst.Op != ir.OpAdd && inst.Op != ir.OpSub || len(inst.Operands) != 2 {
				continue
			}
			var built []*ir.Instruction
			appendFn := func(in *ir.Instruction) { built = append(built, in) }

			if inst.Op == ir.OpAdd {
				buildMBAAdd(ctx.Names, appendFn, inst.Operands[0], inst.Operands[1], inst.Type, inst.Result, ctx.Cfg.MBALevel)
			} else {
				buildMBASub(ctx.Names, appendFn, inst.Operands[0], inst.Operands[1], inst.Type, inst.Result, ctx.Cfg.MBALevel)
			}

			b.Instructions = append(b.Instructions[:i], append(built, b.Instructions[i+1:]...)...)
			i += len(built) - 1

			ctx.Metrics.Inc(metrics.MBATransforms)
			modified = true
		}
	}
	return modified
}

// buildMBAAdd appends the XOR/AND/shl/add sequence computing a+b via
// appendFn, re-expanding the final add depth times so the result still
// carries resultName as its SSA name.
func buildMBAAdd(names *irutil.Namer, appendFn func(*ir.Instruction), a, b ir.Value, typ, resultName string, depth int) {
	if depth < 1 {
		depth = 1
	}
	xorName := names.FreshName("mba.xor")
	andName := names.FreshName("mba.and")
	and2Name := names.FreshName("mba.and2")

	appendFn(ir.NewInstruction(ir.OpXor, xorName, typ, a, b))
	appendFn(ir.NewInstruction(ir.OpAnd, andName, typ, a, b))
	appendFn(ir.NewInstruction(ir.OpShl, and2Name, typ, ir.LocalValue(andName), ir.ConstValue(1)))

	if depth == 1 {
		appendFn(ir.NewInstruction(ir.OpAdd, resultName, typ, ir.LocalValue(xorName), ir.LocalValue(and2Name)))
		return
	}
	buildMBAAdd(names, appendFn, ir.LocalValue(xorName), ir.LocalValue(and2Name), typ, resultName, depth-1)
}

// buildMBASub appends the XOR/NOT/AND/shl/sub sequence computing a-b via
// appendFn, re-expanding the final sub depth times.
func buildMBASub(names *irutil.Namer, appendFn func(*ir.Instruction), a, b ir.Value, typ, resultName string, depth int) {
	if depth < 1 {
		depth = 1
	}
	xorName := names.FreshName("mba.xor")
	notName := names.FreshName("mba.not")
	andName := names.FreshName("mba.and")
	and2Name := names.FreshName("mba.and2")

	appendFn(ir.NewInstruction(ir.OpXor, xorName, typ, a, b))
	appendFn(ir.NewInstruction(ir.OpNot, notName, typ, a))
	appendFn(ir.NewInstruction(ir.OpAnd, andName, typ, ir.LocalValue(notName), b))
	appendFn(ir.NewInstruction(ir.OpShl, and2Name, typ, ir.LocalValue(andName), ir.ConstValue(1)))

	if depth == 1 {
		appendFn(ir.NewInstruction(ir.OpSub, resultName, typ, ir.LocalValue(xorName), ir.LocalValue(and2Name)))
		return
	}
	buildMBASub(names, appendFn, ir.LocalValue(xorName), ir.LocalValue(and2Name), typ, resultName, depth-1)
}
