package modtransform

import (
	"testing"

	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
	"github.com/stretchr/testify/require"
)

func newCtx(cfg config.Config) Context {
	m := ir.NewModule("test")
	return Context{RNG: rng.NewSeeded(1), Metrics: metrics.New(), Cfg: cfg, Module: m, CodeHash: rng.CodeHash(m), Names: irutil.NewNamer()}
}

func withMainCallingHelper(m *ir.Module) (*ir.Function, *ir.Function) {
	helper := &ir.Function{Name: "helper", RetType: "i32"}
	hb := irutil.CreateBlock(helper, "entry")
	rv := ir.ConstValue(1)
	irutil.TerminateRet(hb, &rv)
	_ = m.AddFunction(helper)

	main := &ir.Function{Name: "main", RetType: "i32"}
	mb := irutil.CreateBlock(main, "entry")
	call := irutil.BuildCall(mb, "r", "i32", "helper")
	rv2 := ir.LocalValue(call.Result)
	irutil.TerminateRet(mb, &rv2)
	_ = m.AddFunction(main)

	return main, helper
}

func TestStringEncryption_WeakXORRoundTrips(t *testing.T) {
	ctx := newCtx(config.New(config.WithStringScheme(config.SchemeWeakXOR)))
	g, err := irutil.CreateGlobalVariable(ctx.Module, "str1", "i8*", []byte("hello"), true, ir.LinkageExternal)
	require.NoError(t, err)
	g.IsString = true

	records := StringEncryption(ctx)
	require.Len(t, records, 1)
	require.NotEqual(t, []byte("hello"), g.Initializer)
	require.False(t, g.IsString)

	plain := xorCrypt(g.Initializer, weakXORKey)
	require.Equal(t, []byte("hello"), plain)
}

func TestStringEncryption_IdempotentAcrossCalls(t *testing.T) {
	ctx := newCtx(config.New())
	g, err := irutil.CreateGlobalVariable(ctx.Module, "str1", "i8*", []byte("hi"), true, ir.LinkageExternal)
	require.NoError(t, err)
	g.IsString = true

	require.Len(t, StringEncryption(ctx), 1)
	require.Len(t, StringEncryption(ctx), 0)
}

func TestEmitDecryptConstructor_RegistersConstructor(t *testing.T) {
	ctx := newCtx(config.New(config.WithDecryptAtStartup(true)))
	g, err := irutil.CreateGlobalVariable(ctx.Module, "str1", "i8*", []byte("hi"), true, ir.LinkageExternal)
	require.NoError(t, err)
	g.IsString = true
	records := StringEncryption(ctx)

	ok := EmitDecryptConstructor(ctx, records)
	require.True(t, ok)
	require.Len(t, ctx.Module.Constructors, 1)
	require.NoError(t, ir.Verify(ctx.Module))
}

func TestIndirectCalls_RewritesCallSite(t *testing.T) {
	ctx := newCtx(config.New())
	main, _ := withMainCallingHelper(ctx.Module)

	n := IndirectCalls(ctx)
	require.Equal(t, 1, n)

	found := false
	for _, b := range main.Blocks {
		for _, inst := range b.Instructions {
			if inst.Op == ir.OpCall {
				require.Equal(t, "", inst.Callee)
				require.NotEmpty(t, inst.Operands)
				found = true
			}
		}
	}
	require.True(t, found)
	require.NoError(t, ir.Verify(ctx.Module))

	require.Equal(t, 0, IndirectCalls(ctx))
}

func TestAntiDebug_InjectsProbeIntoMain(t *testing.T) {
	ctx := newCtx(config.New())
	main, _ := withMainCallingHelper(ctx.Module)
	before := len(main.Blocks)

	n := AntiDebug(ctx)
	require.Equal(t, 1, n)
	require.Greater(t, len(main.Blocks), before)
	require.NoError(t, ir.Verify(ctx.Module))
}

func TestAntiAnalysis_InjectsProbeIntoMain(t *testing.T) {
	ctx := newCtx(config.New())
	main, _ := withMainCallingHelper(ctx.Module)
	before := len(main.Blocks)

	n := AntiAnalysis(ctx)
	require.Equal(t, 1, n)
	require.Greater(t, len(main.Blocks), before)
	require.NoError(t, ir.Verify(ctx.Module))
}

func TestAntiTamper_InjectsChecksumIntoMain(t *testing.T) {
	ctx := newCtx(config.New())
	main, _ := withMainCallingHelper(ctx.Module)
	before := len(main.Blocks)

	n := AntiTamper(ctx)
	require.Equal(t, 1, n)
	require.Greater(t, len(main.Blocks), before)
	require.NoError(t, ir.Verify(ctx.Module))
}

func TestDynamicObfuscation_RegistersLowPriorityConstructor(t *testing.T) {
	ctx := newCtx(config.New())
	ok := DynamicObfuscation(ctx)
	require.True(t, ok)
	require.Len(t, ctx.Module.Constructors, 1)
	require.Equal(t, 1000, ctx.Module.Constructors[0].Priority)
	require.NoError(t, ir.Verify(ctx.Module))
}
