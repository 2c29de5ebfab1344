// SPDX-License-Identifier: MIT
package modtransform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

// knownAnalysisTools are the module names the anti-analysis check probes
// for (spec §4.G: "known analysis-tool modules by name").
var knownAnalysisTools = []string{"ida64.exe", "x64dbg.exe", "ollydbg.exe", "wireshark.exe"}

const analysisToolQueryAPI = "GetModuleHandleA"

// AntiAnalysis mirrors AntiDebug's shape exactly (spec §4.G: "as anti-
// debug, but the check function queries for the presence of known
// analysis-tool modules by name"): the same split-entry-and-branch rewrite,
// the same Windows-shaped/else-stub split, differing only in which
// sentinel (-2) a detection returns and which modules the check looks for.
// Runs once, cycle 1 only — enforced by the pipeline driver, not here.
func AntiAnalysis(ctx Context) int {
	check := buildAnalysisCheckFunction(ctx)
	return injectProbeEverywhere(ctx, check, -2, metrics.AntiAnalysis)
}

// buildAnalysisCheckFunction emits a private i32()->{0,1} function that, on
// a Windows-shaped module, calls GetModuleHandleA once per known analysis
// tool name and ORs the results together; on any other target it is the
// same unconditional-0 stub AntiDebug uses (spec §9's preserved no-op).
func buildAnalysisCheckFunction(ctx Context) *ir.Function {
	m := ctx.Module
	fn := &ir.Function{Name: rng.ArtifactName(ctx.RNG, "__obf_check_analysis_tools"), RetType: "i32", Linkage: ir.LinkagePrivate, Generated: true}
	_ = m.AddFunction(fn)
	entry := irutil.CreateBlock(fn, "entry")

	if !windowsShaped(m) {
		rv := ir.ConstValue(0)
		irutil.TerminateRet(entry, &rv)
		return fn
	}

	if _, ok := m.Function(analysisToolQueryAPI); !ok {
		decl := &ir.Function{Name: analysisToolQueryAPI, IsDeclaration: true, RetType: "i32*", Params: []ir.Param{{Name: "name", Type: "i8*"}}}
		_ = m.AddFunction(decl)
	}

	accum := ir.ConstValue(0)
	accumName := ""
	for _, toolName := range knownAnalysisTools {
		nameGlobal, err := irutil.CreateGlobalVariable(m, rng.ArtifactName(ctx.RNG, "analysis.toolname"), "i8*", []byte(toolName+"\x00"), true, ir.LinkagePrivate)
		if err != nil {
			continue
		}
		handle := irutil.BuildCall(entry, ctx.Names.FreshName("analysis.handle"), "i32*", analysisToolQueryAPI, ir.GlobalValue(nameGlobal.Name))
		isNull := irutil.BuildICmp(entry, ctx.Names.FreshName("analysis.isnull"), ir.LocalValue(handle.Result), ir.ConstValue(0))
		found := irutil.BuildUnary(entry, ir.OpNot, ctx.Names.FreshName("analysis.found"), "i1", ir.LocalValue(isNull.Result))

		var lhs ir.Value
		if accumName == "" {
			lhs = accum
		} else {
			lhs = ir.LocalValue(accumName)
		}
		orName := ctx.Names.FreshName("analysis.or")
		irutil.BuildArith(entry, ir.OpOr, orName, "i32", lhs, ir.LocalValue(found.Result))
		accumName = orName
	}

	var rv ir.Value
	if accumName == "" {
		rv = ir.ConstValue(0)
	} else {
		rv = ir.LocalValue(accumName)
	}
	irutil.TerminateRet(entry, &rv)
	return fn
}
