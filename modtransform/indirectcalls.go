// SPDX-License-Identifier: MIT
package modtransform

import (
	"sort"

	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

const indirectTableName = "__obf_indirect_table"

// IndirectCalls collects every direct call whose target is a function
// defined in ctx.Module (not a declaration, not the rc4_decrypt runtime
// stub), assigns each distinct target a table index, builds a private
// zero-initialized function-pointer table global, and emits a constructor
// that populates it — then rewrites every such call site in a non-Generated
// function to load its target's pointer out of the table and call through
// that pointer instead of naming the callee directly (spec §4.G). Call sites
// inside Generated functions (polymorphic variants, synthesized helpers)
// keep their direct calls.
//
// This model's Instruction has no separate "call through value" opcode —
// Callee is "meaningful iff Op == OpCall" but nothing requires it be set;
// an indirect call is represented as Callee == "" with the loaded function
// pointer as the call's first operand (see DESIGN.md).
//
// Idempotent across cycles: a rewritten call site has Callee == "" and is
// never selected again, so once every eligible call site has been
// converted, later invocations find nothing left to do and return 0.
func IndirectCalls(ctx Context) int {
	targets := collectCallTargets(ctx.Module)
	if len(targets) == 0 {
		return 0
	}

	table, index := buildIndirectTable(ctx, targets)
	if table == nil {
		return 0
	}

	rewritten := 0
	for _, fn := range ctx.Module.Functions() {
		if fn.IsDeclaration || fn.Generated {
			continue
		}
		for _, b := range fn.Blocks {
			for i := 0; i < len(b.Instructions); i++ {
				inst := b.Instructions[i]
				if inst.Op != ir.OpCall || inst.Callee == "" {
					continue
				}
				idx, ok := index[inst.Callee]
				if !ok {
					continue
				}

				slotPtr := ctx.Names.FreshName("indcall.slot")
				loaded := ctx.Names.FreshName("indcall.fnptr")
				seq := []*ir.Instruction{
					ir.NewInstruction(ir.OpGEP, slotPtr, table.Type+"*", ir.GlobalValue(table.Name), ir.ConstValue(int64(idx))),
					ir.NewInstruction(ir.OpLoad, loaded, table.Type, ir.LocalValue(slotPtr)),
				}
				for j, s := range seq {
					b.InsertAt(i+j, s)
				}
				i += len(seq)

				inst = b.Instructions[i]
				inst.Operands = append([]ir.Value{ir.LocalValue(loaded)}, inst.Operands...)
				inst.Callee = ""
				ctx.Metrics.Inc(metrics.IndirectCalls)
				rewritten++
			}
		}
	}
	return rewritten
}

// collectCallTargets returns the sorted, deduplicated names of every
// function called directly from within ctx.Module that is itself defined
// (not declared) in the module — sorted so table-index assignment is
// deterministic given the same module shape.
func collectCallTargets(m *ir.Module) []string {
	defined := make(map[string]bool)
	for _, fn := range m.Functions() {
		if !fn.IsDeclaration {
			defined[fn.Name] = true
		}
	}

	seen := make(map[string]bool)
	for _, fn := range m.Functions() {
		if fn.IsDeclaration {
			continue
		}
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				if inst.Op == ir.OpCall && inst.Callee != "" && defined[inst.Callee] {
					seen[inst.Callee] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildIndirectTable returns the module's private function-pointer table
// global (one i64*-sized slot per known target, zero-initialized) and the
// constructor that fills it in, mapping each target name to its slot index.
//
// A module already carrying a table from an earlier cycle (a clone
// Polymorphic produced in cycle 1 can itself call a target for the first
// time in cycle 2, spec §4.H's "indirect calls run every cycle") is extended
// in place: existing slots keep their index so already-rewritten call sites
// stay valid, and only targets not yet indexed get a new slot appended.
func buildIndirectTable(ctx Context, targets []string) (*ir.GlobalVariable, map[string]int) {
	m := ctx.Module

	table, init, index := findIndirectTable(m)
	if table == nil {
		table = &ir.GlobalVariable{
			Name:     indirectTableName,
			Type:     "i64*",
			Constant: false,
			Linkage:  ir.LinkagePrivate,
		}
		if err := m.AddGlobal(table); err != nil {
			return nil, nil
		}
		init = &ir.Function{Name: rng.ArtifactName(ctx.RNG, "__obf_init_indirect_table"), RetType: "void", Linkage: ir.LinkagePrivate, Generated: true}
		_ = m.AddFunction(init)
		entry := irutil.CreateBlock(init, "entry")
		irutil.TerminateRet(entry, nil)
		irutil.AppendGlobalConstructor(m, 0, init)
		index = make(map[string]int)
	}

	entry := init.Blocks[0]
	// the Ret terminator is always last; new slot-filling instructions are
	// inserted ahead of it so the block stays well-formed.
	insertAt := len(entry.Instructions) - 1

	for _, name := range targets {
		if _, ok := index[name]; ok {
			continue
		}
		slotIdx := len(index)
		index[name] = slotIdx
		table.Initializer = append(table.Initializer, make([]byte, 8)...)

		slot := ctx.Names.FreshName("indtable.slot")
		gep := ir.NewInstruction(ir.OpGEP, slot, table.Type+"*", ir.GlobalValue(table.Name), ir.ConstValue(int64(slotIdx)))
		store := ir.NewInstruction(ir.OpStore, "", "void", ir.LocalValue(slot), ir.GlobalValue(name))
		entry.InsertAt(insertAt, gep)
		entry.InsertAt(insertAt+1, store)
		insertAt += 2
	}

	return table, index
}

// findIndirectTable looks up an indirect-call table a previous cycle already
// created, recovering its fill-in constructor and its name-to-slot index by
// reading the GEP/store pairs the constructor's entry block already holds.
// Returns a nil table if this module has never run IndirectCalls before.
func findIndirectTable(m *ir.Module) (*ir.GlobalVariable, *ir.Function, map[string]int) {
	table, ok := m.Global(indirectTableName)
	if !ok {
		return nil, nil, nil
	}

	var init *ir.Function
	for _, c := range m.Constructors {
		if c.Func.Generated && len(c.Func.Blocks) > 0 && constructorFillsTable(c.Func, table.Name) {
			init = c.Func
			break
		}
	}
	if init == nil {
		return nil, nil, nil
	}

	index := make(map[string]int)
	entry := init.Blocks[0]
	for i := 0; i+1 < len(entry.Instructions); i++ {
		gep := entry.Instructions[i]
		store := entry.Instructions[i+1]
		if gep.Op != ir.OpGEP || len(gep.Operands) != 2 || gep.Operands[0].Kind != ir.ValueGlobal || gep.Operands[0].Name != table.Name {
			continue
		}
		if store.Op != ir.OpStore || len(store.Operands) != 2 || store.Operands[0].Kind != ir.ValueLocal || store.Operands[0].Name != gep.Result {
			continue
		}
		index[store.Operands[1].Name] = int(gep.Operands[1].Const)
		i++
	}
	return table, init, index
}

// constructorFillsTable reports whether fn's entry block contains a GEP into
// tableName, the fingerprint of buildIndirectTable's fill-in constructor.
func constructorFillsTable(fn *ir.Function, tableName string) bool {
	for _, inst := range fn.Blocks[0].Instructions {
		if inst.Op == ir.OpGEP && len(inst.Operands) > 0 && inst.Operands[0].Kind == ir.ValueGlobal && inst.Operands[0].Name == tableName {
			return true
		}
	}
	return false
}
