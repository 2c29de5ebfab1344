package irutil

import (
	"testing"

	"github.com/irobf/obfuscator/ir"
	"github.com/stretchr/testify/require"
)

func TestSplitBlockAt(t *testing.T) {
	fn := &ir.Function{Name: "f"}
	b := CreateBlock(fn, "entry")
	BuildArith(b, ir.OpAdd, "a", "i32", ir.ConstValue(1), ir.ConstValue(2))
	BuildArith(b, ir.OpAdd, "c", "i32", ir.LocalValue("a"), ir.ConstValue(3))
	ret := ir.ConstValue(0)
	TerminateRet(b, &ret)

	head, tail := SplitBlockAt(NewNamer(), b, 1)
	require.Same(t, b, head)
	require.Len(t, head.Instructions, 2) // 1 arith + new br
	require.Equal(t, ir.OpBrUncond, head.Terminator().Op)
	require.Len(t, tail.Instructions, 2) // remaining arith + ret
	require.Equal(t, ir.OpRet, tail.Terminator().Op)
	require.Len(t, fn.Blocks, 2)
	require.Same(t, tail, fn.Blocks[1])
}

func TestAppendGlobalConstructor_OrderedMerge(t *testing.T) {
	m := ir.NewModule("t")
	fnA := &ir.Function{Name: "a", Generated: true}
	fnB := &ir.Function{Name: "b", Generated: true}
	fnC := &ir.Function{Name: "c", Generated: true}

	AppendGlobalConstructor(m, 100, fnA)
	AppendGlobalConstructor(m, 0, fnB)
	AppendGlobalConstructor(m, 65535, fnC)

	require.Len(t, m.Constructors, 3)
	require.Equal(t, "b", m.Constructors[0].Func.Name)
	require.Equal(t, "a", m.Constructors[1].Func.Name)
	require.Equal(t, "c", m.Constructors[2].Func.Name)
}

func TestCloneFunction_MarksGenerated(t *testing.T) {
	fn := &ir.Function{Name: "orig"}
	b := CreateBlock(fn, "entry")
	BuildArith(b, ir.OpAdd, "x", "i32", ir.ConstValue(1), ir.ConstValue(1))
	ret := ir.ConstValue(0)
	TerminateRet(b, &ret)

	clone := CloneFunction(fn, "orig.variant")
	require.True(t, clone.Generated)
	require.Equal(t, "orig.variant", clone.Name)
	require.Len(t, clone.Blocks, 1)
	require.NotSame(t, fn.Blocks[0], clone.Blocks[0])
}

func TestReplaceAllUsesOf(t *testing.T) {
	fn := &ir.Function{Name: "f"}
	b := CreateBlock(fn, "entry")
	BuildArith(b, ir.OpAdd, "y", "i32", ir.LocalValue("x"), ir.ConstValue(1))
	ret := ir.LocalValue("x")
	TerminateRet(b, &ret)

	ReplaceAllUsesOf(fn, ir.LocalValue("x"), ir.LocalValue("x2"))
	require.Equal(t, "x2", b.Instructions[0].Operands[0].Name)
	require.Equal(t, "x2", b.Terminator().Operands[0].Name)
}
