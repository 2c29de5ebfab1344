// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// BogusCode inserts, at the start of every block with at least two
// instructions, max(1, floor(block.size * bogus-percent / 100))
// dummy-allocation/dead-store/unused-load tuples (spec §8 Testable Property
// 8's exact formula). Each tuple allocates fresh local storage, stores an
// arbitrary constant into it, and reloads it into an unused SSA value — no
// call, and no store to anything reachable from the rest of the function,
// so the tuple is unobservable.
func BogusCode(fn *ir.Function, ctx Context) bool {
	modified := false
	for _, b := range irutil.SnapshotBlocks(fn) {
		size := len(b.Instructions)
		if size < 2 {
			continue
		}
		count := size * ctx.Cfg.BogusPercent / 100
		if count < 1 {
			count = 1
		}

		insertAt := 0
		for i := 0; i < count; i++ {
			ptr := ctx.Names.FreshName("bogus.ptr")
			val := ctx.Names.FreshName("bogus.val")
			k := int64(ctx.RNG.Intn(1 << 16))

			alloca := ir.NewInstruction(ir.OpAlloca, ptr, "i32*")
			store := &ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(ptr), ir.ConstValue(k)}}
			load := ir.NewInstruction(ir.OpLoad, val, "i32", ir.LocalValue(ptr))

			b.InsertAt(insertAt, alloca)
			b.InsertAt(insertAt+1, store)
			b.InsertAt(insertAt+2, load)
			insertAt += 3

			ctx.Metrics.Add(metrics.BogusInstrs, 3)
			modified = true
		}
	}
	return modified
}
