// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// Flatten collapses a function's control flow into a single dispatch
// switch over a "state" local (spec §4.F). Unlike the skeleton spec §9
// documents — which builds the dispatcher and switch cases but never
// rewires a predecessor to use them, leaving the produced IR verifier-clean
// but semantically wrong — this rewires every edge between original
// blocks: each edge is redirected through a small trampoline that stores
// the edge's target state and branches to the dispatcher, and the
// dispatcher's switch cases jump straight to the real original blocks.
// Terminal terminators (ret, unreachable) are left untouched since they
// never hand control to another block.
func Flatten(fn *ir.Function, ctx Context) bool {
	original := irutil.SnapshotBlocks(fn)
	if len(original) < 3 {
		return false
	}

	stateOf := make(map[*ir.BasicBlock]int64, len(original))
	for i, b := range original {
		stateOf[b] = int64(i)
	}

	statePtr := ctx.Names.FreshName("flatten.state.ptr")
	dispatcher := irutil.CreateBlock(fn, ctx.Names.FreshName("flatten.dispatch"))
	newEntry := prependBlock(fn, ctx.Names.FreshName("flatten.entry"))

	newEntry.Append(ir.NewInstruction(ir.OpAlloca, statePtr, "i32*"))
	newEntry.Append(&ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(statePtr), ir.ConstValue(stateOf[original[0]])}})
	irutil.TerminateBrUncond(newEntry, dispatcher)

	stateLoad := ctx.Names.FreshName("flatten.state")
	dispatcher.Append(ir.NewInstruction(ir.OpLoad, stateLoad, "i32", ir.LocalValue(statePtr)))
	cases := make(map[int64]*ir.BasicBlock, len(original))
	for b, state := range stateOf {
		cases[state] = b
	}
	irutil.TerminateSwitch(dispatcher, ir.LocalValue(stateLoad), original[0], cases)

	for _, b := range original {
		rewireBlockToDispatcher(fn, b, statePtr, dispatcher, stateOf, ctx.Names)
	}

	ctx.Metrics.Inc(metrics.FlattenedFunctions)
	return true
}

// rewireBlockToDispatcher redirects every non-terminal successor edge of b
// through a fresh trampoline that records its target's state and jumps to
// dispatcher.
func rewireBlockToDispatcher(fn *ir.Function, b *ir.BasicBlock, statePtr string, dispatcher *ir.BasicBlock, stateOf map[*ir.BasicBlock]int64, names *irutil.Namer) {
	term := b.Terminator()
	if term == nil || !term.Op.IsTerminator() {
		return
	}
	switch term.Op {
	case ir.OpRet, ir.OpUnreachable:
		return
	}
	for i, succ := range term.Successors {
		if succ == dispatcher {
			continue
		}
		state, known := stateOf[succ]
		if !known {
			continue
		}
		trampoline := irutil.CreateBlock(fn, names.FreshName("flatten.tramp"))
		trampoline.Append(&ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(statePtr), ir.ConstValue(state)}})
		irutil.TerminateBrUncond(trampoline, dispatcher)
		term.Successors[i] = trampoline
	}
	if term.Op == ir.OpSwitch {
		for k, target := range term.Cases {
			if target == dispatcher {
				continue
			}
			state, known := stateOf[target]
			if !known {
				continue
			}
			trampoline := irutil.CreateBlock(fn, names.FreshName("flatten.tramp"))
			trampoline.Append(&ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ir.LocalValue(statePtr), ir.ConstValue(state)}})
			irutil.TerminateBrUncond(trampoline, dispatcher)
			term.Cases[k] = trampoline
		}
	}
}

// prependBlock inserts a fresh, empty block at the front of fn.Blocks so it
// becomes the function's new entry, shifting every other block (including
// the old entry) one position later.
func prependBlock(fn *ir.Function, label string) *ir.BasicBlock {
	b := &ir.BasicBlock{Label: label, Parent: fn}
	fn.Blocks = append(fn.Blocks, nil)
	copy(fn.Blocks[1:], fn.Blocks[:len(fn.Blocks)-1])
	fn.Blocks[0] = b
	return b
}
