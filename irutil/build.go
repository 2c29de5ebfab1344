// SPDX-License-Identifier: MIT
//
// Package irutil is the IR Utility Layer (spec §4.A): the shared builders
// and mutation helpers the transforms use. Some transforms also splice a
// BasicBlock's instruction slice directly (MBA, instruction substitution),
// but no caller outside this package appends to a Module's constructors
// array — that is what keeps AppendGlobalConstructor the single writer
// spec §9 calls for ("the A-layer's append-global-constructor
// helper must be the single writer to prevent clobbering").
//
// Contract (spec §4.A): every mutation here either leaves the module
// verifier-clean or is a programmer error (a type mismatch or a dangling
// use), in which case the whole pass aborts — there is no partial-mutation
// recovery.
package irutil

import (
	"fmt"

	"github.com/irobf/obfuscator/ir"
)

// Namer hands out fresh local/block names, unique within its own lifetime.
// One pipeline.Run call owns exactly one Namer, created fresh at the start
// of Run and threaded through transform.Context/modtransform.Context
// alongside the RNG, so two Run calls on the same (module, configuration)
// hand out the identical name sequence (spec §8 property 7: "two runs...
// produce byte-identical IR output"). A package-level counter would instead
// keep counting across every Run call a process makes, so the Nth Run of a
// process would never match the first.
type Namer struct {
	seq int
}

// NewNamer returns a Namer starting its sequence at zero.
func NewNamer() *Namer { return &Namer{} }

// FreshName returns a name of the form prefix+".N", unique within n's
// lifetime. Used wherever a transform needs "fresh local storage" so that no
// later dead-code pass can fold a value back to a known constant (spec
// §4.F's opaque-predicate and constant-obfuscation requirements).
func (n *Namer) FreshName(prefix string) string {
	n.seq++
	return fmt.Sprintf("%s.%d", prefix, n.seq)
}

// BuildArith appends an arithmetic/bitwise binary instruction (add, sub,
// mul, udiv, sdiv, shl, lshr, ashr, and, or, xor) to block and returns it.
func BuildArith(b *ir.BasicBlock, op ir.Op, result, typ string, lhs, rhs ir.Value) *ir.Instruction {
	inst := ir.NewInstruction(op, result, typ, lhs, rhs)
	b.Append(inst)
	return inst
}

// BuildUnary appends a unary instruction (not, cast) to block.
func BuildUnary(b *ir.BasicBlock, op ir.Op, result, typ string, operand ir.Value) *ir.Instruction {
	inst := ir.NewInstruction(op, result, typ, operand)
	b.Append(inst)
	return inst
}

// BuildAlloca appends a stack-allocation instruction and returns its pointer result.
func BuildAlloca(b *ir.BasicBlock, result, typ string) *ir.Instruction {
	inst := ir.NewInstruction(ir.OpAlloca, result, typ+"*")
	b.Append(inst)
	return inst
}

// BuildLoad appends a load from ptr.
func BuildLoad(b *ir.BasicBlock, result, typ string, ptr ir.Value) *ir.Instruction {
	inst := ir.NewInstruction(ir.OpLoad, result, typ, ptr)
	b.Append(inst)
	return inst
}

// BuildStore appends a store of val into ptr. Stores are void: Result is empty.
func BuildStore(b *ir.BasicBlock, ptr, val ir.Value) *ir.Instruction {
	inst := &ir.Instruction{Op: ir.OpStore, Type: "void", Operands: []ir.Value{ptr, val}}
	b.Append(inst)
	return inst
}

// BuildICmp appends an integer comparison, result type "i1".
func BuildICmp(b *ir.BasicBlock, result string, lhs, rhs ir.Value) *ir.Instruction {
	inst := ir.NewInstruction(ir.OpICmp, result, "i1", lhs, rhs)
	b.Append(inst)
	return inst
}

// BuildCall appends a direct call to callee with args. result is empty for void calls.
func BuildCall(b *ir.BasicBlock, result, typ, callee string, args ...ir.Value) *ir.Instruction {
	inst := &ir.Instruction{Op: ir.OpCall, Result: result, Type: typ, Callee: callee, Operands: args}
	b.Append(inst)
	return inst
}

// BuildGEP appends a getelementptr-style address computation over base.
func BuildGEP(b *ir.BasicBlock, result, typ string, base ir.Value, indices ...ir.Value) *ir.Instruction {
	operands := append([]ir.Value{base}, indices...)
	inst := ir.NewInstruction(ir.OpGEP, result, typ, operands...)
	b.Append(inst)
	return inst
}

// TerminateBr replaces b's terminator with a conditional branch. Any
// existing terminator is overwritten (callers that need the old condition
// preserved must read it before calling TerminateBr — this is exactly how
// control-flow opaque predicates rewrite the branch condition in place,
// spec §4.F).
func TerminateBr(b *ir.BasicBlock, cond ir.Value, ifTrue, ifFalse *ir.BasicBlock) *ir.Instruction {
	inst := &ir.Instruction{Op: ir.OpBr, Type: "void", Operands: []ir.Value{cond}, Successors: []*ir.BasicBlock{ifTrue, ifFalse}}
	setTerminator(b, inst)
	return inst
}

// TerminateBrUncond replaces b's terminator with an unconditional branch to target.
func TerminateBrUncond(b *ir.BasicBlock, target *ir.BasicBlock) *ir.Instruction {
	inst := &ir.Instruction{Op: ir.OpBrUncond, Type: "void", Successors: []*ir.BasicBlock{target}}
	setTerminator(b, inst)
	return inst
}

// TerminateSwitch replaces b's terminator with a multi-way dispatch on cond:
// cases maps a literal state value to its target block, def is the default target.
func TerminateSwitch(b *ir.BasicBlock, cond ir.Value, def *ir.BasicBlock, cases map[int64]*ir.BasicBlock) *ir.Instruction {
	inst := &ir.Instruction{
		Op:         ir.OpSwitch,
		Type:       "void",
		Operands:   []ir.Value{cond},
		Successors: []*ir.BasicBlock{def},
		Cases:      cases,
	}
	setTerminator(b, inst)
	return inst
}

// TerminateRet replaces b's terminator with a return of val (val is nil for
// a void return).
func TerminateRet(b *ir.BasicBlock, val *ir.Value) *ir.Instruction {
	inst := &ir.Instruction{Op: ir.OpRet, Type: "void"}
	if val != nil {
		inst.Operands = []ir.Value{*val}
	}
	setTerminator(b, inst)
	return inst
}

// setTerminator appends inst as a terminator, or — if b already ends in one
// — replaces it in place. This is the only path that mutates an existing
// terminator, keeping the "at most one terminator" invariant mechanical
// rather than caller-enforced.
func setTerminator(b *ir.BasicBlock, inst *ir.Instruction) {
	if n := len(b.Instructions); n > 0 && b.Instructions[n-1].Op.IsTerminator() {
		b.Instructions[n-1] = inst
		return
	}
	b.Append(inst)
}

// CreateBlock allocates a new, empty basic block, appends it to fn, and
// returns it. The block has no terminator yet; callers must terminate it
// before the pass returns control to Verify.
func CreateBlock(fn *ir.Function, label string) *ir.BasicBlock {
	b := &ir.BasicBlock{Label: label, Parent: fn}
	fn.Blocks = append(fn.Blocks, b)
	return b
}

// CreateGlobalVariable registers a new global on m. Returns ir.ErrDuplicateGlobal
// if name is taken.
func CreateGlobalVariable(m *ir.Module, name, typ string, init []byte, constant bool, linkage ir.Linkage) (*ir.GlobalVariable, error) {
	g := &ir.GlobalVariable{Name: name, Type: typ, Initializer: init, Constant: constant, Linkage: linkage}
	if err := m.AddGlobal(g); err != nil {
		return nil, err
	}
	return g, nil
}
