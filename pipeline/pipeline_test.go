// SPDX-License-Identifier: MIT
package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
)

// simpleAdder builds `int f(int x){ return x+1; }` as a one-block function.
func simpleAdder(name string) *ir.Function {
	fn := &ir.Function{Name: name, RetType: "i32", Params: []ir.Param{{Name: "x", Type: "i32"}}}
	entry := irutil.CreateBlock(fn, "entry")
	sum := irutil.BuildArith(entry, ir.OpAdd, "sum", "i32", ir.LocalValue("x"), ir.ConstValue(1))
	rv := ir.LocalValue(sum.Result)
	irutil.TerminateRet(entry, &rv)
	return fn
}

func withHelpers(mainName string, helperCount int) *ir.Module {
	m := ir.NewModule("demo")
	main := &ir.Function{Name: mainName, RetType: "i32"}
	entry := irutil.CreateBlock(main, "entry")
	rv := ir.ConstValue(0)
	irutil.TerminateRet(entry, &rv)
	_ = m.AddFunction(main)

	names := irutil.NewNamer()
	for i := 0; i < helperCount; i++ {
		_ = m.AddFunction(simpleAdder(names.FreshName("helper")))
	}
	return m
}

// S1: only MBA enabled, cycles=1 — output still verifies and the one add
// has been rewritten into MBA's identity.
func TestRun_S1_MBAOnly_VerifiesAndRewritesAdd(t *testing.T) {
	m := ir.NewModule("s1")
	_ = m.AddFunction(simpleAdder("f"))

	cfg := config.New(config.WithTechniques(config.TechMBA), config.WithCycles(1), config.WithAutoSelect(false))
	rep, err := Run(m, cfg)
	require.NoError(t, err)
	require.NotNil(t, rep)
	require.NoError(t, ir.Verify(m))
	require.Equal(t, int64(1), rep.Metrics[metrics.MBATransforms])
}

// S3: module with main + 5 helpers, only polymorphic=true, variants=3 ->
// 6 originals + 18 variants (3 per original, main included), no
// variant-of-variant and no second round of variants across cycles.
func TestRun_S3_PolymorphicProducesExactVariantCount(t *testing.T) {
	m := withHelpers("main", 5)
	before := len(m.Functions())
	require.Equal(t, 6, before)

	cfg := config.New(config.WithTechniques(config.TechPolymorphic), config.WithPolyVariants(3),
		config.WithCycles(2), config.WithAutoSelect(false))
	_, err := Run(m, cfg)
	require.NoError(t, err)

	after := len(m.Functions())
	require.Equal(t, before+before*3, after, "variants must not themselves be cloned in cycle 2")
}

// S4: cycles=3, all 16 techniques on, auto-select + balanced size cap ->
// report shows transformations happened and the pass stays verifier-clean.
func TestRun_S4_AllTechniquesAutoSelectBalanced(t *testing.T) {
	m := withHelpers("main", 3)

	cfg := config.New(
		config.WithTechniques(config.Techniques()...),
		config.WithCycles(3), config.WithAutoSelect(true), config.WithSizeMode(config.SizeBalanced),
	)
	rep, err := Run(m, cfg)
	require.NoError(t, err)
	require.NoError(t, ir.Verify(m))
	require.Greater(t, rep.Metrics[metrics.ControlFlowObfs]+rep.Metrics[metrics.StringEncrypts]+
		rep.Metrics[metrics.BogusInstrs]+rep.Metrics[metrics.FakeLoops], int64(0))
}

// Property 4: transformation counters are monotonically non-decreasing as
// cycles increase, for the same (module, configuration) shape.
func TestRun_CounterMonotonic_AcrossCycleCounts(t *testing.T) {
	cfg := config.New(config.WithTechniques(config.TechBogusCode), config.WithCycles(1), config.WithAutoSelect(false))
	m1 := withHelpers("main", 2)
	rep1, err := Run(m1, cfg)
	require.NoError(t, err)

	cfg2 := config.New(config.WithTechniques(config.TechBogusCode), config.WithCycles(2), config.WithAutoSelect(false))
	m2 := withHelpers("main", 2)
	rep2, err := Run(m2, cfg2)
	require.NoError(t, err)

	require.GreaterOrEqual(t, rep2.Metrics[metrics.BogusInstrs], rep1.Metrics[metrics.BogusInstrs])
}

// Property 6: string encryption is idempotent — a second Run over output
// that already had its strings encrypted finds nothing left to encrypt.
// Exercised here within a single Run across 3 cycles: StringEncrypts only
// increases on the cycle the plaintext globals are first seen.
func TestRun_StringEncryption_IdempotentAcrossCycles(t *testing.T) {
	m := ir.NewModule("s2")
	g := &ir.GlobalVariable{Name: "msg", Type: "i8*", Initializer: []byte("hello"), IsString: true, Constant: true}
	require.NoError(t, m.AddGlobal(g))
	_ = m.AddFunction(&ir.Function{Name: "main", RetType: "i32", Blocks: func() []*ir.BasicBlock {
		b := &ir.BasicBlock{Label: "entry"}
		rv := ir.ConstValue(0)
		b.Instructions = []*ir.Instruction{ir.NewInstruction(ir.OpRet, "", "i32", rv)}
		return []*ir.BasicBlock{b}
	}()})

	cfg := config.New(config.WithTechniques(config.TechStringEncryption), config.WithStringScheme(config.SchemeRC4Simple),
		config.WithCycles(3), config.WithDecryptAtStartup(true), config.WithAutoSelect(false))
	rep, err := Run(m, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(1), rep.Metrics[metrics.StringEncrypts])

	// the decrypt constructor was registered at the fixed load-time priority.
	require.Len(t, m.Constructors, 1)
	require.Equal(t, 65535, m.Constructors[0].Priority)
}

// S5: a function whose only block has a single instruction never gets
// bogus code inserted — the guard is "at least two instructions".
func TestRun_S5_BogusCodeSkipsTooSmallBlock(t *testing.T) {
	m := ir.NewModule("s5")
	fn := &ir.Function{Name: "tiny", RetType: "i32"}
	entry := irutil.CreateBlock(fn, "entry")
	rv := ir.ConstValue(0)
	irutil.TerminateRet(entry, &rv)
	require.NoError(t, m.AddFunction(fn))

	cfg := config.New(config.WithTechniques(config.TechBogusCode), config.WithBogusPercent(100),
		config.WithCycles(1), config.WithAutoSelect(false))
	rep, err := Run(m, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(0), rep.Metrics[metrics.BogusInstrs])
	require.Len(t, entry.Instructions, 1, "the single ret instruction must be untouched")
}

// S6: rc4-derived scheme over two distinct string globals must derive two
// distinct keys from two distinct salts — the salt is fresh RNG output per
// global, not shared module-wide. Both globals hold the same plaintext, so
// their ciphertexts differ only if their keys do.
func TestRun_S6_RC4DerivedUsesDistinctSaltsPerGlobal(t *testing.T) {
	m := ir.NewModule("s6")
	g1 := &ir.GlobalVariable{Name: "a", Type: "i8*", Initializer: []byte("alpha"), IsString: true, Constant: true}
	g2 := &ir.GlobalVariable{Name: "b", Type: "i8*", Initializer: []byte("alpha"), IsString: true, Constant: true}
	require.NoError(t, m.AddGlobal(g1))
	require.NoError(t, m.AddGlobal(g2))
	_ = m.AddFunction(&ir.Function{Name: "main", RetType: "i32", Blocks: func() []*ir.BasicBlock {
		b := &ir.BasicBlock{Label: "entry"}
		rv := ir.ConstValue(0)
		b.Instructions = []*ir.Instruction{ir.NewInstruction(ir.OpRet, "", "i32", rv)}
		return []*ir.BasicBlock{b}
	}()})

	cfg := config.New(config.WithTechniques(config.TechStringEncryption), config.WithStringScheme(config.SchemeRC4Derived),
		config.WithCycles(1), config.WithAutoSelect(false))
	rep, err := Run(m, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(2), rep.Metrics[metrics.StringEncrypts])
	require.NotEqual(t, g1.Initializer, g2.Initializer)
	require.False(t, g1.IsString)
	require.False(t, g2.IsString)
}

// Property 7: running the same module shape through the same seeded
// configuration twice produces byte-identical output — the RNG is the only
// source of variation and it is seeded from the module name.
func TestRun_SameSeedProducesByteIdenticalOutput(t *testing.T) {
	cfg := config.New(
		config.WithTechniques(config.TechBogusCode, config.TechMBA, config.TechStringEncryption),
		config.WithStringScheme(config.SchemeRC4Simple), config.WithCycles(2), config.WithAutoSelect(false),
	)

	build := func() *ir.Module {
		m := withHelpers("main", 2)
		g := &ir.GlobalVariable{Name: "msg", Type: "i8*", Initializer: []byte("same seed"), IsString: true, Constant: true}
		_ = m.AddGlobal(g)
		return m
	}

	m1 := build()
	_, err := Run(m1, cfg)
	require.NoError(t, err)

	m2 := build()
	_, err = Run(m2, cfg)
	require.NoError(t, err)

	g1, ok1 := m1.Global("msg")
	g2, ok2 := m2.Global("msg")
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, g1.Initializer, g2.Initializer,
		"two runs seeded from the same module name must derive the same key stream")
	require.Equal(t, len(m1.Functions()), len(m2.Functions()))
}

func TestRun_RejectsMalformedInputModule(t *testing.T) {
	fn := &ir.Function{Name: "broken", RetType: "i32", Blocks: []*ir.BasicBlock{{Label: "entry"}}}
	m := ir.NewModule("broken")
	_ = m.AddFunction(fn)

	_, err := Run(m, config.Default())
	require.Error(t, err)
}
