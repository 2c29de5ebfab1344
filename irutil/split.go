// SPDX-License-Identifier: MIT
package irutil

import "github.com/irobf/obfuscator/ir"

// SplitBlockAt splits b into two blocks at instruction index idx: the
// returned head block keeps instructions [0:idx) and falls straight through
// (unconditional branch) into the returned tail block, which keeps
// instructions [idx:) including b's original terminator. idx is clamped to
// [0, len(b.Instructions)].
//
// The tail block is inserted into fn.Blocks immediately after head so the
// module's natural order is preserved (spec §5). head is b itself, mutated
// in place — existing *ir.BasicBlock pointers to b remain valid and now
// refer to the head half, which is what every caller that "splits the entry
// block at the first non-prologue instruction" (spec §4.G anti-debug/anti-
// analysis) expects.
func SplitBlockAt(names *Namer, b *ir.BasicBlock, idx int) (head, tail *ir.BasicBlock) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(b.Instructions) {
		idx = len(b.Instructions)
	}

	fn := b.Parent
	tail = &ir.BasicBlock{
		Label:        names.FreshName(b.Label + ".split"),
		Instructions: append([]*ir.Instruction(nil), b.Instructions[idx:]...),
		Parent:       fn,
	}
	b.Instructions = b.Instructions[:idx:idx]
	TerminateBrUncond(b, tail)

	if fn != nil {
		insertAfter(fn, b, tail)
	}
	return b, tail
}

// insertAfter places newBlock immediately following existing in fn.Blocks.
func insertAfter(fn *ir.Function, existing, newBlock *ir.BasicBlock) {
	for i, blk := range fn.Blocks {
		if blk == existing {
			fn.Blocks = append(fn.Blocks, nil)
			copy(fn.Blocks[i+2:], fn.Blocks[i+1:])
			fn.Blocks[i+1] = newBlock
			return
		}
	}
	fn.Blocks = append(fn.Blocks, newBlock)
}
