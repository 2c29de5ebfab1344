// SPDX-License-Identifier: MIT
package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/metrics"
)

func TestReport_WriteTo_ContainsCanonicalSections(t *testing.T) {
	m := ir.NewModule("demo")
	m.TargetTriple = "x86_64-pc-windows-msvc"
	fn := &ir.Function{Name: "main", RetType: "i32"}
	b := &ir.BasicBlock{Label: "entry", Parent: fn}
	rv := ir.ConstValue(0)
	b.Instructions = []*ir.Instruction{ir.NewInstruction(ir.OpRet, "", "i32", rv)}
	fn.Blocks = []*ir.BasicBlock{b}
	require.NoError(t, m.AddFunction(fn))

	cfg := config.New(config.WithTechniques(config.TechControlFlow, config.TechStringEncryption))

	rec := metrics.New()
	rec.Add(metrics.ControlFlowObfs, 4)
	rec.Add(metrics.StringEncrypts, 1)

	rep := New(m, cfg, rec.Snapshot(), 3, []string{"virtualization cap reached"})

	var buf bytes.Buffer
	n, err := rep.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	out := buf.String()
	require.Contains(t, out, "OBFUSCATION PASS REPORT")
	require.Contains(t, out, "INPUT PARAMETERS")
	require.Contains(t, out, "ENABLED TECHNIQUES")
	require.Contains(t, out, "Control Flow Obfuscation"+strings.Repeat(" ", 40-len("Control Flow Obfuscation"))+"ENABLED")
	require.Contains(t, out, "String Encryption"+strings.Repeat(" ", 40-len("String Encryption"))+"ENABLED")
	require.Contains(t, out, "Bogus Code Generation"+strings.Repeat(" ", 40-len("Bogus Code Generation"))+"DISABLED")
	require.Contains(t, out, "OUTPUT MODULE STATISTICS")
	require.Contains(t, out, "PER-TECHNIQUE METRICS")
	require.Contains(t, out, "DETAILED NARRATIVE")
	require.Contains(t, out, "virtualization cap reached")
	require.Contains(t, out, "Total transformations: 5")
	require.Contains(t, out, "Cycles completed:      3")
}

func TestReport_EffectivenessScore_OnlyCountsWeightedTechniques(t *testing.T) {
	cfg := config.New(config.WithTechniques(config.TechIndirectCalls, config.TechAntiTamper, config.TechConstObf))
	rep := New(ir.NewModule("empty"), cfg, map[metrics.Key]int64{}, 1, nil)
	require.Equal(t, 0.0, rep.effectivenessScore())

	cfg2 := config.New(config.WithTechniques(config.TechControlFlow))
	rep2 := New(ir.NewModule("empty"), cfg2, map[metrics.Key]int64{}, 1, nil)
	require.InDelta(t, 15.0/float64(totalPossibleWeight)*100, rep2.effectivenessScore(), 0.0001)
}
