package transform

import (
	"testing"

	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
	"github.com/stretchr/testify/require"
)

func newCtx() Context {
	return Context{
		RNG:     rng.NewSeeded(1),
		Metrics: metrics.New(),
		Cfg:     config.New(config.WithBogusPercent(50), config.WithFakeLoopCount(2), config.WithMBALevel(2), config.WithPolyVariants(2)),
		Module:  ir.NewModule("test"),
		Names:   irutil.NewNamer(),
	}
}

// branchy builds entry -(cond br)-> {b1, b2} -(uncond)-> b3 -(ret)->.
func branchy() *ir.Function {
	fn := &ir.Function{Name: "branchy", RetType: "i32"}
	entry := irutil.CreateBlock(fn, "entry")
	b1 := irutil.CreateBlock(fn, "b1")
	b2 := irutil.CreateBlock(fn, "b2")
	b3 := irutil.CreateBlock(fn, "b3")

	cmp := irutil.BuildICmp(entry, "cmp", ir.ConstValue(4), ir.ConstValue(0))
	irutil.TerminateBr(entry, ir.LocalValue(cmp.Result), b1, b2)

	irutil.BuildArith(b1, ir.OpMul, "m", "i32", ir.ConstValue(3), ir.ConstValue(8))
	irutil.TerminateBrUncond(b1, b3)

	irutil.BuildArith(b2, ir.OpAdd, "s", "i32", ir.ConstValue(5), ir.ConstValue(7))
	irutil.TerminateBrUncond(b2, b3)

	rv := ir.ConstValue(0)
	irutil.TerminateRet(b3, &rv)
	return fn
}

func TestControlFlowOpaquePredicates_VerifierClean(t *testing.T) {
	fn := branchy()
	ctx := newCtx()
	modified := ControlFlowOpaquePredicates(fn, ctx)
	require.True(t, modified)
	m := ir.NewModule("m")
	require.NoError(t, m.AddFunction(fn))
	require.NoError(t, ir.Verify(m))
}

func TestBogusCode_InsertsInstructions(t *testing.T) {
	fn := branchy()
	before := fn.InstructionCount()
	ctx := newCtx()
	modified := BogusCode(fn, ctx)
	require.True(t, modified)
	require.Greater(t, fn.InstructionCount(), before)

	m := ir.NewModule("m")
	require.NoError(t, m.AddFunction(fn))
	require.NoError(t, ir.Verify(m))
}

// TestBogusCode_TupleCountMatchesFloorFormula pins the count spec §8
// Testable Property 8 gives (max(1, floor(N*P/100))) against a block whose
// size makes floor and ceil disagree (N=4, P=30: floor=1, ceil=2), so a
// regression back to the ceiling formula would be caught.
func TestBogusCode_TupleCountMatchesFloorFormula(t *testing.T) {
	fn := &ir.Function{Name: "f", RetType: "i32"}
	b := irutil.CreateBlock(fn, "entry")
	irutil.BuildArith(b, ir.OpAdd, "a", "i32", ir.ConstValue(1), ir.ConstValue(2))
	irutil.BuildArith(b, ir.OpAdd, "c", "i32", ir.ConstValue(1), ir.ConstValue(2))
	irutil.BuildArith(b, ir.OpAdd, "d", "i32", ir.ConstValue(1), ir.ConstValue(2))
	rv := ir.ConstValue(0)
	irutil.TerminateRet(b, &rv)
	require.Equal(t, 4, len(b.Instructions))

	ctx := newCtx()
	ctx.Cfg = config.New(config.WithBogusPercent(30))
	before := fn.InstructionCount()
	require.True(t, BogusCode(fn, ctx))
	require.Equal(t, before+3, fn.InstructionCount(), "floor(4*30/100)=1 tuple of 3 instructions")
}

func TestFakeLoops_VerifierClean(t *testing.T) {
	fn := branchy()
	ctx := newCtx()
	modified := FakeLoops(fn, ctx)
	require.True(t, modified)

	m := ir.NewModule("m")
	require.NoError(t, m.AddFunction(fn))
	require.NoError(t, ir.Verify(m))
}

func TestInstructionSubstitution_MulByPowerOfTwo(t *testing.T) {
	fn := branchy()
	ctx := newCtx()
	modified := InstructionSubstitution(fn, ctx)
	require.True(t, modified)

	found := false
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			if inst.Op == ir.OpShl {
				found = true
			}
		}
	}
	require.True(t, found)
}

func TestFlatten_RewiresAndVerifies(t *testing.T) {
	fn := branchy()
	ctx := newCtx()
	modified := Flatten(fn, ctx)
	require.True(t, modified)
	require.Contains(t, fn.Entry().Label, "flatten.entry")

	m := ir.NewModule("m")
	require.NoError(t, m.AddFunction(fn))
	require.NoError(t, ir.Verify(m))
}

func TestMixedBooleanArithmetic_VerifierClean(t *testing.T) {
	fn := branchy()
	ctx := newCtx()
	modified := MixedBooleanArithmetic(fn, ctx)
	require.True(t, modified)

	m := ir.NewModule("m")
	require.NoError(t, m.AddFunction(fn))
	require.NoError(t, ir.Verify(m))
}

func TestConstantObfuscation_ReplacesLiteral(t *testing.T) {
	fn := branchy()
	ctx := newCtx()
	modified := ConstantObfuscation(fn, ctx)
	require.True(t, modified)

	m := ir.NewModule("m")
	require.NoError(t, m.AddFunction(fn))
	require.NoError(t, ir.Verify(m))
}

func TestMetamorphic_ShufflesNonEntryKeepsEntryFirst(t *testing.T) {
	fn := branchy()
	entryLabel := fn.Entry().Label
	ctx := newCtx()
	modified := Metamorphic(fn, ctx)
	require.True(t, modified)
	require.Equal(t, entryLabel, fn.Entry().Label)

	m := ir.NewModule("m")
	require.NoError(t, m.AddFunction(fn))
	require.NoError(t, ir.Verify(m))
}

func TestPolymorphic_CreatesVariantsMarkedGenerated(t *testing.T) {
	fn := branchy()
	ctx := newCtx()
	require.NoError(t, ctx.Module.AddFunction(fn))

	modified := Polymorphic(fn, ctx)
	require.True(t, modified)
	require.Len(t, ctx.Module.Functions(), 1+ctx.Cfg.PolyVariants)

	for _, variant := range ctx.Module.Functions() {
		if variant.Name == fn.Name {
			continue
		}
		require.True(t, variant.Generated)
	}
}

func TestVirtualize_SimpleFunctionEligible(t *testing.T) {
	fn := &ir.Function{Name: "addfn", RetType: "i64"}
	entry := irutil.CreateBlock(fn, "entry")
	sum := irutil.BuildArith(entry, ir.OpAdd, "sum", "i64", ir.ConstValue(3), ir.ConstValue(4))
	exit := irutil.CreateBlock(fn, "exit")
	irutil.TerminateBrUncond(entry, exit)
	rv := ir.LocalValue(sum.Result)
	irutil.TerminateRet(exit, &rv)

	ctx := newCtx()
	require.NoError(t, ctx.Module.AddFunction(fn))

	modified := Virtualize(fn, ctx)
	require.True(t, modified)
	require.Len(t, fn.Blocks, 1)

	_, ok := ctx.Module.Function(interpreterName)
	require.True(t, ok)
	require.NoError(t, ir.Verify(ctx.Module))
}

func TestVirtualize_IneligibleWithParams(t *testing.T) {
	fn := &ir.Function{Name: "withparam", RetType: "i64", Params: []ir.Param{{Name: "x", Type: "i64"}}}
	b := irutil.CreateBlock(fn, "entry")
	rv := ir.ConstValue(0)
	irutil.TerminateRet(b, &rv)
	b2 := irutil.CreateBlock(fn, "unused")
	rv2 := ir.ConstValue(0)
	irutil.TerminateRet(b2, &rv2)

	ctx := newCtx()
	require.False(t, Virtualize(fn, ctx))
}
