// SPDX-License-Identifier: MIT
package transform

import (
	"math/bits"

	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/metrics"
)

// InstructionSubstitution rewrites `mul x, C` into `shl x, log2(C)` and
// `udiv`/`sdiv x, C` into a logical or arithmetic right shift, wherever C is
// a power of two (spec §4.F). Early-increment iteration over each block's
// index so a just-replaced instruction never derails the walk.
func InstructionSubstitution(fn *ir.Function, ctx Context) bool {
	modified := false
	for _, b := range fn.Blocks {
		for i := 0; i < len(b.Instructions); i++ {
			inst := b.Instructions[i]
			replacement := substitute(inst)
			if replacement == nil {
				continue
			}
			b.Instructions[i] = replacement
			ctx.Metrics.Inc(metrics.InstrSubs)
			modified = true
		}
	}
	return modified
}

// substitute returns the shift-form replacement for inst if it is a
// power-of-two mul/udiv/sdiv, or nil if inst is left untouched.
func substitute(inst *ir.Instruction) *ir.Instruction {
	if len(inst.Operands) != 2 {
		return nil
	}
	c, isConst := inst.Operands[1].IsConst()
	if !isConst || c <= 0 || c&(c-1) != 0 {
		return nil
	}
	shiftAmt := ir.ConstValue(int64(bits.TrailingZeros64(uint64(c))))

	switch inst.Op {
	case ir.OpMul:
		return ir.NewInstruction(ir.OpShl, inst.Result, inst.Type, inst.Operands[0], shiftAmt)
	case ir.OpUDiv:
		return ir.NewInstruction(ir.OpLShr, inst.Result, inst.Type, inst.Operands[0], shiftAmt)
	case ir.OpSDiv:
		return ir.NewInstruction(ir.OpAShr, inst.Result, inst.Type, inst.Operands[0], shiftAmt)
	default:
		return nil
	}
}
