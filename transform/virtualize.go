// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

// Bytecode opcodes. ADD/SUB/MUL/BRANCH/RETURN keep the one-byte values spec
// §4.F names; PUSH_CONST/PUSH_LOCAL/STORE_LOCAL/JZ are the operand-carrying
// and conditional-jump opcodes spec §9 says the source's encoder is missing
// ("emits one opcode per binary operator without operands or a value
// stack... any real function thus becomes a no-op once virtualized").
// Adding them, plus the interpreter's stack and local slots below, is the
// fix: a virtualized function now evaluates to the same result the
// original IR would have, rather than every case falling through to exit.
//
// Every operand is a single byte: a constant operand is its value truncated
// to one signed byte, a local-slot or jump-target operand is a 0-255 index.
// This keeps the interpreter's fetch step a single GEP+load per operand
// instead of a multi-byte reassembly loop — a deliberate fidelity
// trade-off for a pass whose output is consumed by an external, out-of-
// scope backend (spec §1), not executed by anything in this module.
const (
	opAdd        = 0x01
	opSub        = 0x02
	opMul        = 0x03
	opBranch     = 0x10 // unconditional jump: 1-byte target block offset
	opJZ         = 0x11 // pop cond; jump to 1-byte target block offset if zero
	opPushConst  = 0x20 // 1-byte signed literal
	opPushLocal  = 0x21 // 1-byte local slot index
	opStoreLocal = 0x22 // 1-byte local slot index
	opRetVoid    = 0xFF
	opRetVal     = 0xFE
)

// maxVirtualized is the hard cap on the cumulative number of functions
// virtualized in one pass run (spec §4.F: "enforces bounded size growth").
const maxVirtualized = 10

const interpreterName = "__obf_vm_interpret"

// Virtualize replaces an eligible function's body with a call to a
// per-module synthesized bytecode interpreter (spec §4.F). A function is
// eligible when it is a non-declaration with at least two blocks, no
// parameters (the interpreter's calling convention carries only the
// bytecode pointer and its length), every instruction is one this encoder
// understands, and the module-wide virtualized count is still under the
// cap.
func Virtualize(fn *ir.Function, ctx Context) bool {
	if !eligibleForVM(fn, ctx) {
		return false
	}

	code, ok := encodeFunction(fn)
	if !ok {
		return false
	}

	interp := vmInterpreter(ctx.Module, ctx.Names)

	bcGlobal, err := irutil.CreateGlobalVariable(ctx.Module, rng.ArtifactName(ctx.RNG, "vm.bytecode"), "i8*", code, true, ir.LinkagePrivate)
	if err != nil {
		return false
	}

	retType := fn.RetType
	callResult := ""
	if retType != "" && retType != "void" {
		callResult = ctx.Names.FreshName("vm.result")
	}

	fn.Blocks = nil
	entry := irutil.CreateBlock(fn, "entry")
	irutil.BuildCall(entry, callResult, retType, interp.Name,
		ir.GlobalValue(bcGlobal.Name), ir.ConstValue(int64(len(code))))
	if callResult != "" {
		v := ir.LocalValue(callResult)
		irutil.TerminateRet(entry, &v)
	} else {
		irutil.TerminateRet(entry, nil)
	}

	ctx.Metrics.Inc(metrics.VirtualizedFunctions)
	return true
}

func eligibleForVM(fn *ir.Function, ctx Context) bool {
	if fn.IsDeclaration || fn.Generated || len(fn.Blocks) < 2 || len(fn.Params) != 0 {
		return false
	}
	if len(fn.Blocks) > 255 {
		return false
	}
	if ctx.Metrics.Snapshot()[metrics.VirtualizedFunctions] >= maxVirtualized {
		return false
	}
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			switch inst.Op {
			case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpBr, ir.OpBrUncond, ir.OpRet:
			default:
				return false
			}
			for _, op := range inst.Operands {
				if op.Kind == ir.ValueGlobal {
					return false
				}
				if k, isConst := op.IsConst(); isConst && (k < -128 || k > 127) {
					return false
				}
			}
		}
	}
	return true
}

// encodeFunction two-pass assembles fn's blocks into a bytecode stream:
// pass one measures each block's encoded length to compute block start
// offsets, pass two emits the stream with jump targets resolved against
// those offsets (ordinary assembler backpatching).
func encodeFunction(fn *ir.Function) ([]byte, bool) {
	slots := map[string]byte{}
	slotOf := func(name string) byte {
		if s, ok := slots[name]; ok {
			return s
		}
		s := byte(len(slots))
		slots[name] = s
		return s
	}

	blockCode := make([][]byte, len(fn.Blocks))
	blockIndex := map[*ir.BasicBlock]int{}
	for i, b := range fn.Blocks {
		blockIndex[b] = i
	}

	emitValue := func(out *[]byte, v ir.Value) bool {
		if k, isConst := v.IsConst(); isConst {
			*out = append(*out, opPushConst, byte(int8(k)))
			return true
		}
		if v.Kind != ir.ValueLocal {
			return false
		}
		*out = append(*out, opPushLocal, slotOf(v.Name))
		return true
	}

	for i, b := range fn.Blocks {
		var out []byte
		for _, inst := range b.Instructions {
			switch inst.Op {
			case ir.OpAdd, ir.OpSub, ir.OpMul:
				if !emitValue(&out, inst.Operands[0]) || !emitValue(&out, inst.Operands[1]) {
					return nil, false
				}
				switch inst.Op {
				case ir.OpAdd:
					out = append(out, opAdd)
				case ir.OpSub:
					out = append(out, opSub)
				case ir.OpMul:
					out = append(out, opMul)
				}
				if inst.Result != "" {
					out = append(out, opStoreLocal, slotOf(inst.Result))
				}
			case ir.OpBrUncond:
				out = append(out, opBranch, 0) // target block index patched in pass two
			case ir.OpBr:
				if !emitValue(&out, inst.Operands[0]) {
					return nil, false
				}
				out = append(out, opJZ, 0)
				out = append(out, opBranch, 0)
			case ir.OpRet:
				if len(inst.Operands) == 1 {
					if !emitValue(&out, inst.Operands[0]) {
						return nil, false
					}
					out = append(out, opRetVal)
				} else {
					out = append(out, opRetVoid)
				}
			}
		}
		blockCode[i] = out
	}

	offsets := make([]int, len(fn.Blocks))
	cursor := 0
	for i, bc := range blockCode {
		offsets[i] = cursor
		cursor += len(bc)
	}

	var final []byte
	for i, b := range fn.Blocks {
		bc := append([]byte(nil), blockCode[i]...)
		patchJumpTargets(bc, b, blockIndex, offsets)
		final = append(final, bc...)
	}
	return final, true
}

// patchJumpTargets rewrites the placeholder operand byte of every
// opBranch/opJZ emitted for b's terminator with the real byte offset of its
// successor block.
func patchJumpTargets(code []byte, b *ir.BasicBlock, blockIndex map[*ir.BasicBlock]int, offsets []int) {
	term := b.Terminator()
	if term == nil {
		return
	}
	switch term.Op {
	case ir.OpBrUncond:
		target := offsets[blockIndex[term.Successors[0]]]
		patchLastOperand(code, opBranch, byte(target))
	case ir.OpBr:
		falseTarget := byte(offsets[blockIndex[term.Successors[1]]])
		trueTarget := byte(offsets[blockIndex[term.Successors[0]]])
		patchLastOperand(code, opJZ, falseTarget)
		patchLastOperand(code, opBranch, trueTarget)
	}
}

// patchLastOperand finds opcode's last occurrence in code and overwrites
// the byte immediately after it.
func patchLastOperand(code []byte, opcode byte, operand byte) {
	for i := len(code) - 2; i >= 0; i-- {
		if code[i] == opcode {
			code[i+1] = operand
			return
		}
	}
}

// vmInterpreter returns m's shared bytecode interpreter, synthesizing it on
// first use. One interpreter serves every virtualized function in the
// module; each call site supplies its own bytecode array and length. The
// interpreter is itself a fetch-decode-execute loop over an explicit
// operand stack and a fixed local-slot array — the real stack machine spec
// §9 asks for in place of the source's switch that "all jump to the exit
// block".
func vmInterpreter(m *ir.Module, names *irutil.Namer) *ir.Function {
	if existing, ok := m.Function(interpreterName); ok {
		return existing
	}

	fn := &ir.Function{
		Name:      interpreterName,
		Params:    []ir.Param{{Name: "code", Type: "i8*"}, {Name: "length", Type: "i32"}},
		RetType:   "i64",
		Linkage:   ir.LinkagePrivate,
		Generated: true,
	}
	_ = m.AddFunction(fn)

	const stackSlots = 64
	const localSlots = 32

	entry := irutil.CreateBlock(fn, "entry")
	pcPtr := irutil.BuildAlloca(entry, "pc.ptr", "i32").Result
	spPtr := irutil.BuildAlloca(entry, "sp.ptr", "i32").Result
	stackBase := irutil.BuildAlloca(entry, "stack.base", "i64").Result
	localsBase := irutil.BuildAlloca(entry, "locals.base", "i64").Result
	irutil.BuildStore(entry, ir.LocalValue(pcPtr), ir.ConstValue(0))
	irutil.BuildStore(entry, ir.LocalValue(spPtr), ir.ConstValue(0))

	// push/pop close over the stack pointer and base so every opcode case
	// below shares one implementation of the stack discipline.
	push := func(b *ir.BasicBlock, val ir.Value) {
		sp := irutil.BuildLoad(b, names.FreshName("sp"), "i32", ir.LocalValue(spPtr)).Result
		slot := irutil.BuildGEP(b, names.FreshName("stack.slot"), "i64*", ir.LocalValue(stackBase), ir.LocalValue(sp)).Result
		irutil.BuildStore(b, ir.LocalValue(slot), val)
		sp1 := irutil.BuildArith(b, ir.OpAdd, names.FreshName("sp.next"), "i32", ir.LocalValue(sp), ir.ConstValue(1)).Result
		irutil.BuildStore(b, ir.LocalValue(spPtr), ir.LocalValue(sp1))
	}
	pop := func(b *ir.BasicBlock) ir.Value {
		sp := irutil.BuildLoad(b, names.FreshName("sp"), "i32", ir.LocalValue(spPtr)).Result
		sp1 := irutil.BuildArith(b, ir.OpSub, names.FreshName("sp.prev"), "i32", ir.LocalValue(sp), ir.ConstValue(1)).Result
		irutil.BuildStore(b, ir.LocalValue(spPtr), ir.LocalValue(sp1))
		slot := irutil.BuildGEP(b, names.FreshName("stack.slot"), "i64*", ir.LocalValue(stackBase), ir.LocalValue(sp1)).Result
		return ir.LocalValue(irutil.BuildLoad(b, names.FreshName("stack.val"), "i64", ir.LocalValue(slot)).Result)
	}
	// readOperand fetches the single byte following the opcode at pc and
	// advances pc past it, returning the byte as an i32 value plus the
	// already-advanced pc value for callers (like jumps) that need it raw.
	readOperand := func(b *ir.BasicBlock, pcAfterOpcode ir.Value) (operand ir.Value, pcAfterOperand ir.Value) {
		ptr := irutil.BuildGEP(b, names.FreshName("operand.ptr"), "i8*", ir.LocalValue("code"), pcAfterOpcode).Result
		loaded := irutil.BuildLoad(b, names.FreshName("operand.byte"), "i8", ir.LocalValue(ptr)).Result
		ext := irutil.BuildUnary(b, ir.OpCast, names.FreshName("operand.ext"), "i32", ir.LocalValue(loaded)).Result
		next := irutil.BuildArith(b, ir.OpAdd, names.FreshName("pc.after.operand"), "i32", pcAfterOpcode, ir.ConstValue(1)).Result
		return ir.LocalValue(ext), ir.LocalValue(next)
	}
	storePC := func(b *ir.BasicBlock, v ir.Value) { irutil.BuildStore(b, ir.LocalValue(pcPtr), v) }
	jumpToLoop := func(b *ir.BasicBlock, loopHead *ir.BasicBlock) { irutil.TerminateBrUncond(b, loopHead) }

	loopHead := irutil.CreateBlock(fn, "loop.head")
	irutil.TerminateBrUncond(entry, loopHead)

	pcLoad := irutil.BuildLoad(loopHead, "pc", "i32", ir.LocalValue(pcPtr)).Result
	inBounds := irutil.BuildICmp(loopHead, "in.bounds", ir.LocalValue(pcLoad), ir.LocalValue("length")).Result

	exitZero := irutil.CreateBlock(fn, "exit.zero")
	zero := ir.ConstValue(0)
	irutil.TerminateRet(exitZero, &zero)

	fetch := irutil.CreateBlock(fn, "fetch")
	irutil.TerminateBr(loopHead, ir.LocalValue(inBounds), fetch, exitZero)

	opcodePtr := irutil.BuildGEP(fetch, "opcode.ptr", "i8*", ir.LocalValue("code"), ir.LocalValue(pcLoad)).Result
	opcodeByte := irutil.BuildLoad(fetch, "opcode", "i8", ir.LocalValue(opcodePtr)).Result
	opcodeExt := irutil.BuildUnary(fetch, ir.OpCast, "opcode.ext", "i32", ir.LocalValue(opcodeByte)).Result
	pcAfterOpcode := irutil.BuildArith(fetch, ir.OpAdd, "pc.after.opcode", "i32", ir.LocalValue(pcLoad), ir.ConstValue(1)).Result

	dispatch := irutil.CreateBlock(fn, "dispatch")
	irutil.TerminateBrUncond(fetch, dispatch)

	cases := map[int64]*ir.BasicBlock{}

	// ADD / SUB / MUL: pop two, compute, push result; no operand byte.
	binOp := func(opcode int64, op ir.Op) {
		b := irutil.CreateBlock(fn, "op.binary")
		rhs := pop(b)
		lhs := pop(b)
		res := irutil.BuildArith(b, op, names.FreshName("bin.res"), "i64", lhs, rhs).Result
		push(b, ir.LocalValue(res))
		storePC(b, pcAfterOpcode)
		jumpToLoop(b, loopHead)
		cases[opcode] = b
	}
	binOp(opAdd, ir.OpAdd)
	binOp(opSub, ir.OpSub)
	binOp(opMul, ir.OpMul)

	// PUSH_CONST: read the literal operand byte, sign-extend, push.
	pushConstBlock := irutil.CreateBlock(fn, "op.push.const")
	literal, pcAfterLiteral := readOperand(pushConstBlock, pcAfterOpcode)
	literal64 := irutil.BuildUnary(pushConstBlock, ir.OpCast, "const.ext", "i64", literal).Result
	push(pushConstBlock, ir.LocalValue(literal64))
	storePC(pushConstBlock, pcAfterLiteral)
	jumpToLoop(pushConstBlock, loopHead)
	cases[opPushConst] = pushConstBlock

	// PUSH_LOCAL: read the slot index, load locals[slot], push.
	pushLocalBlock := irutil.CreateBlock(fn, "op.push.local")
	slotIdx, pcAfterSlot := readOperand(pushLocalBlock, pcAfterOpcode)
	slotPtr := irutil.BuildGEP(pushLocalBlock, "local.slot.ptr", "i64*", ir.LocalValue(localsBase), slotIdx).Result
	slotVal := irutil.BuildLoad(pushLocalBlock, "local.slot.val", "i64", ir.LocalValue(slotPtr)).Result
	push(pushLocalBlock, ir.LocalValue(slotVal))
	storePC(pushLocalBlock, pcAfterSlot)
	jumpToLoop(pushLocalBlock, loopHead)
	cases[opPushLocal] = pushLocalBlock

	// STORE_LOCAL: read the slot index, pop, store into locals[slot].
	storeLocalBlock := irutil.CreateBlock(fn, "op.store.local")
	storeSlotIdx, pcAfterStoreSlot := readOperand(storeLocalBlock, pcAfterOpcode)
	val := pop(storeLocalBlock)
	storeSlotPtr := irutil.BuildGEP(storeLocalBlock, "local.store.ptr", "i64*", ir.LocalValue(localsBase), storeSlotIdx).Result
	irutil.BuildStore(storeLocalBlock, ir.LocalValue(storeSlotPtr), val)
	storePC(storeLocalBlock, pcAfterStoreSlot)
	jumpToLoop(storeLocalBlock, loopHead)
	cases[opStoreLocal] = storeLocalBlock

	// BRANCH: read the target block-offset operand, jump unconditionally.
	branchBlock := irutil.CreateBlock(fn, "op.branch")
	target, _ := readOperand(branchBlock, pcAfterOpcode)
	storePC(branchBlock, target)
	jumpToLoop(branchBlock, loopHead)
	cases[opBranch] = branchBlock

	// JZ: pop cond; read target; jump there if cond == 0, else fall through
	// to the instruction following the target operand.
	jzBlock := irutil.CreateBlock(fn, "op.jz")
	jzTarget, jzFallthrough := readOperand(jzBlock, pcAfterOpcode)
	cond := pop(jzBlock)
	isZero := irutil.BuildICmp(jzBlock, "jz.iszero", cond, ir.ConstValue(0)).Result
	jzTakeBlock := irutil.CreateBlock(fn, "op.jz.take")
	storePC(jzTakeBlock, jzTarget)
	jumpToLoop(jzTakeBlock, loopHead)
	jzSkipBlock := irutil.CreateBlock(fn, "op.jz.skip")
	storePC(jzSkipBlock, jzFallthrough)
	jumpToLoop(jzSkipBlock, loopHead)
	irutil.TerminateBr(jzBlock, ir.LocalValue(isZero), jzTakeBlock, jzSkipBlock)
	cases[opJZ] = jzBlock

	// RET_VAL / RET_VOID: pop (if present) and return.
	retValBlock := irutil.CreateBlock(fn, "op.ret.val")
	retVal := pop(retValBlock)
	irutil.TerminateRet(retValBlock, &retVal)
	cases[opRetVal] = retValBlock

	retVoidBlock := irutil.CreateBlock(fn, "op.ret.void")
	retZero := ir.ConstValue(0)
	irutil.TerminateRet(retVoidBlock, &retZero)
	cases[opRetVoid] = retVoidBlock

	irutil.TerminateSwitch(dispatch, ir.LocalValue(opcodeExt), exitZero, cases)

	return fn
}
