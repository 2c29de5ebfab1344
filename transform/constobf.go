// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// ConstantObfuscation replaces every use of an integer constant k outside
// {-1, 0, 1} with `((k*7) stored through a local, reloaded) / 7` (spec
// §4.F): storing k*7 through fresh local memory and dividing the reload by
// 7 recovers k, but the literal k itself never appears in the instruction
// stream, defeating a naive constant scan.
func ConstantObfuscation(fn *ir.Function, ctx Context) bool {
	modified := false
	for _, b := range fn.Blocks {
		for i := 0; i < len(b.Instructions); i++ {
			inst := b.Instructions[i]
			for opIdx, operand := range inst.Operands {
				k, isConst := operand.IsConst()
				if !isConst || k == -1 || k == 0 || k == 1 {
					continue
				}

				ptr := ctx.Names.FreshName("cobf.ptr")
				loaded := ctx.Names.FreshName("cobf.loaded")
				div := ctx.Names.FreshName("cobf.div")

				seq := []*ir.Instruction{
					ir.NewInstruction(ir.OpAlloca, ptr, inst.Type+"*"),
					{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(ptr), ir.ConstValue(k * 7)}},
					ir.NewInstruction(ir.OpLoad, loaded, inst.Type, ir.LocalValue(ptr)),
					ir.NewInstruction(ir.OpSDiv, div, inst.Type, ir.LocalValue(loaded), ir.ConstValue(7)),
				}
				for j, s := range seq {
					b.InsertAt(i+j, s)
				}
				i += len(seq)

				inst.Operands[opIdx] = ir.LocalValue(div)
				ctx.Metrics.Inc(metrics.ConstObfs)
				modified = true
			}
		}
	}
	return modified
}
