// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// Metamorphic reorders fn's non-entry blocks and inserts no-op
// alloca+store pairs after a pseudo-randomly selected subset of
// instructions (spec §4.F). Block layout is shuffled, not the CFG itself —
// every terminator's successor pointers are untouched, so only fn.Blocks'
// slice order changes, and the entry block stays first since Entry() reads
// index 0.
func Metamorphic(fn *ir.Function, ctx Context) bool {
	modified := false

	if len(fn.Blocks) > 1 {
		tail := append([]*ir.BasicBlock(nil), fn.Blocks[1:]...)
		ctx.RNG.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
		fn.Blocks = append(fn.Blocks[:1:1], tail...)
		modified = true
	}

	for _, b := range fn.Blocks {
		for i := 0; i < len(b.Instructions); i++ {
			inst := b.Instructions[i]
			if inst.Op.IsTerminator() || int(inst.Op)%3 != 0 {
				continue
			}
			ptr := ctx.Names.FreshName("meta.noop.ptr")
			alloca := ir.NewInstruction(ir.OpAlloca, ptr, "i32*")
			store := &ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(ptr), ir.ConstValue(0)}}
			b.InsertAt(i+1, alloca)
			b.InsertAt(i+2, store)
			i += 2
			ctx.Metrics.Inc(metrics.Metamorphic)
			modified = true
		}
	}
	return modified
}
