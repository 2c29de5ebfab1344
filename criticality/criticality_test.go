package criticality

import (
	"testing"

	"github.com/irobf/obfuscator/ir"
	"github.com/stretchr/testify/require"
)

func linearFn(name string) *ir.Function {
	fn := &ir.Function{Name: name}
	b := &ir.BasicBlock{Label: "entry", Parent: fn}
	b.Append(&ir.Instruction{Op: ir.OpRet})
	fn.Blocks = []*ir.BasicBlock{b}
	return fn
}

func TestClassify_MainIsCritical(t *testing.T) {
	rec := Analyze(linearFn("main"), 0)
	require.Equal(t, LevelCritical, rec.Level)
}

func TestClassify_SensitiveNameIsCritical(t *testing.T) {
	fn := linearFn("verify_license_key")
	rec := Analyze(fn, 0)
	require.GreaterOrEqual(t, rec.Sensitivity, 20)
	require.Equal(t, LevelCritical, rec.Level)
}

func TestClassify_MinimalUtility(t *testing.T) {
	fn := linearFn("clamp")
	rec := Analyze(fn, 5)
	require.Equal(t, LevelMinimal, rec.Level)
}

func TestClassify_Standard(t *testing.T) {
	fn := linearFn("process_batch")
	rec := Analyze(fn, 0)
	require.Equal(t, LevelStandard, rec.Level)
}

func TestComplexity_ClampedToOne(t *testing.T) {
	fn := &ir.Function{Name: "empty"}
	require.Equal(t, 1, Complexity(fn))
}

func TestComplexity_Branching(t *testing.T) {
	fn := &ir.Function{Name: "branchy"}
	b1 := &ir.BasicBlock{Label: "entry", Parent: fn}
	b2 := &ir.BasicBlock{Label: "a", Parent: fn}
	b3 := &ir.BasicBlock{Label: "b", Parent: fn}
	b1.Append(&ir.Instruction{Op: ir.OpBr, Successors: []*ir.BasicBlock{b2, b3}})
	b2.Append(&ir.Instruction{Op: ir.OpRet})
	b3.Append(&ir.Instruction{Op: ir.OpRet})
	fn.Blocks = []*ir.BasicBlock{b1, b2, b3}

	// edges=2, nodes=3 -> 2-3+2=1
	require.Equal(t, 1, Complexity(fn))
}

func TestCallerCounts(t *testing.T) {
	m := ir.NewModule("t")
	callee := linearFn("helper")
	caller1 := &ir.Function{Name: "caller1"}
	b1 := &ir.BasicBlock{Label: "entry", Parent: caller1}
	b1.Append(&ir.Instruction{Op: ir.OpCall, Callee: "helper"})
	b1.Append(&ir.Instruction{Op: ir.OpRet})
	caller1.Blocks = []*ir.BasicBlock{b1}

	caller2 := &ir.Function{Name: "caller2"}
	b2 := &ir.BasicBlock{Label: "entry", Parent: caller2}
	b2.Append(&ir.Instruction{Op: ir.OpCall, Callee: "helper"})
	b2.Append(&ir.Instruction{Op: ir.OpRet})
	caller2.Blocks = []*ir.BasicBlock{b2}

	_ = m.AddFunction(callee)
	_ = m.AddFunction(caller1)
	_ = m.AddFunction(caller2)

	counts := CallerCounts(m)
	require.Equal(t, 2, counts["helper"])
}
