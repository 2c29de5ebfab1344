// SPDX-License-Identifier: MIT
package irutil

import "github.com/irobf/obfuscator/ir"

// CloneFunction deep-clones fn under newName: every block and instruction is
// copied, and every block-to-block successor reference is remapped to point
// into the clone rather than the original (spec §4.A's "clone-function
// (deep, with value remapping)"). Local value names are left unchanged —
// they are scoped to the owning function, so a clone's locals never collide
// with the original's.
//
// The returned function has Generated set: spec §3's Original-Function Set
// invariant requires that a generated artifact — a polymorphic variant, a VM
// interpreter, any helper the pass synthesizes — is never itself eligible
// for further transformation, in any later cycle (spec §3 invariant 5, §5's
// "polymorphic cloning only applies to original functions").
func CloneFunction(fn *ir.Function, newName string) *ir.Function {
	clone := &ir.Function{
		Name:          newName,
		Params:        append([]ir.Param(nil), fn.Params...),
		RetType:       fn.RetType,
		IsDeclaration: fn.IsDeclaration,
		Linkage:       fn.Linkage,
		Generated:     true,
	}
	if fn.IsDeclaration {
		return clone
	}

	blockMap := make(map[*ir.BasicBlock]*ir.BasicBlock, len(fn.Blocks))
	clone.Blocks = make([]*ir.BasicBlock, len(fn.Blocks))
	for i, b := range fn.Blocks {
		nb := &ir.BasicBlock{Label: b.Label, Parent: clone}
		clone.Blocks[i] = nb
		blockMap[b] = nb
	}

	for i, b := range fn.Blocks {
		nb := clone.Blocks[i]
		nb.Instructions = make([]*ir.Instruction, len(b.Instructions))
		for j, inst := range b.Instructions {
			nb.Instructions[j] = cloneInstruction(inst, blockMap)
		}
	}
	return clone
}

func cloneInstruction(inst *ir.Instruction, blockMap map[*ir.BasicBlock]*ir.BasicBlock) *ir.Instruction {
	nc := &ir.Instruction{
		Op:       inst.Op,
		Result:   inst.Result,
		Type:     inst.Type,
		Operands: append([]ir.Value(nil), inst.Operands...),
		Callee:   inst.Callee,
	}
	if len(inst.Successors) > 0 {
		nc.Successors = make([]*ir.BasicBlock, len(inst.Successors))
		for i, s := range inst.Successors {
			nc.Successors[i] = blockMap[s]
		}
	}
	if len(inst.Cases) > 0 {
		nc.Cases = make(map[int64]*ir.BasicBlock, len(inst.Cases))
		for k, s := range inst.Cases {
			nc.Cases[k] = blockMap[s]
		}
	}
	if len(inst.Metadata) > 0 {
		nc.Metadata = make(map[string]string, len(inst.Metadata))
		for k, v := range inst.Metadata {
			nc.Metadata[k] = v
		}
	}
	return nc
}
