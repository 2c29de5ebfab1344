// SPDX-License-Identifier: MIT
//
// iterate.go centralizes the "snapshot-first" idiom spec §9 calls for:
// "Every traversal that may erase or insert must use an early-increment or
// snapshot-first idiom; specify this as a layer of helpers (A) rather than
// ad-hoc inline." The block-walking transforms use SnapshotBlocks; the
// transforms that insert or replace instructions inside a block (MBA,
// instruction substitution, constant obfuscation, metamorphic) instead walk
// the live slice by index and step the index past what they insert.
package irutil

import "github.com/irobf/obfuscator/ir"

// SnapshotBlocks returns a copy of fn.Blocks as it stands right now. A
// transform that may add new blocks mid-traversal (opaque predicates, bogus
// code, fake loops, flattening) ranges over this snapshot, so newly added
// blocks are never themselves visited in the same pass.
func SnapshotBlocks(fn *ir.Function) []*ir.BasicBlock {
	return append([]*ir.BasicBlock(nil), fn.Blocks...)
}

// SnapshotInstructions returns a copy of b.Instructions as it stands right
// now, for a walk that replaces or inserts instructions in the block.
func SnapshotInstructions(b *ir.BasicBlock) []*ir.Instruction {
	return append([]*ir.Instruction(nil), b.Instructions...)
}

// ReplaceInstruction swaps the instruction at b's current position of old
// for replacement, found by pointer identity, so positions shifted by an
// earlier insertion do not matter. If old is not found, it is a no-op.
func ReplaceInstruction(b *ir.BasicBlock, old, replacement *ir.Instruction) {
	for i, inst := range b.Instructions {
		if inst == old {
			b.Instructions[i] = replacement
			return
		}
	}
}
