// SPDX-License-Identifier: MIT
package modtransform

import (
	"strings"

	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

const windowsDebuggerAPI = "IsDebuggerPresent"

// AntiDebug synthesizes the check function and rewrites every entry-like
// function (spec §4.G): on a Windows-shaped module's target triple the
// check calls the platform's debugger-present API; on every other target
// it is a defined stub, still called from every entry-like function, that
// returns 0 unconditionally.
// That non-Windows branch is a documented no-op, not a bug — spec §9
// explicitly preserves it rather than having it "detect" anything, so this
// pass must not invent a cross-platform detection heuristic to replace it.
//
// Runs once, cycle 1 only (spec §4.H); the pipeline driver enforces that
// position, not this function.
func AntiDebug(ctx Context) int {
	check := buildCheckFunction(ctx, "__obf_check_debugger", windowsShaped(ctx.Module), windowsDebuggerAPI)
	return injectProbeEverywhere(ctx, check, -1, metrics.AntiDebug)
}

func windowsShaped(m *ir.Module) bool {
	return strings.Contains(strings.ToLower(m.TargetTriple), "windows")
}

// buildCheckFunction emits a private, generated i32()->{0,1} function. When
// callPlatformAPI is set it declares (if absent) and calls platformFn,
// returning its result directly; otherwise it unconditionally returns 0.
func buildCheckFunction(ctx Context, name string, callPlatformAPI bool, platformFn string) *ir.Function {
	fn := &ir.Function{Name: rng.ArtifactName(ctx.RNG, name), RetType: "i32", Linkage: ir.LinkagePrivate, Generated: true}
	_ = ctx.Module.AddFunction(fn)
	entry := irutil.CreateBlock(fn, "entry")

	if !callPlatformAPI {
		rv := ir.ConstValue(0)
		irutil.TerminateRet(entry, &rv)
		return fn
	}

	if _, ok := ctx.Module.Function(platformFn); !ok {
		decl := &ir.Function{Name: platformFn, IsDeclaration: true, RetType: "i32"}
		_ = ctx.Module.AddFunction(decl)
	}
	result := irutil.BuildCall(entry, ctx.Names.FreshName("check.raw"), "i32", platformFn)
	rv := ir.LocalValue(result.Result)
	irutil.TerminateRet(entry, &rv)
	return fn
}

// injectProbeEverywhere rewrites every original, entry-like function in
// ctx.Module to call check first, counting one metric increment per
// rewritten function.
func injectProbeEverywhere(ctx Context, check *ir.Function, detectedResult int64, key metrics.Key) int {
	rewritten := 0
	for _, fn := range ctx.Module.Functions() {
		if fn.IsDeclaration || fn.Generated || fn == check {
			continue
		}
		if !isEntryLike(fn.Name) {
			continue
		}
		if injectEntryProbe(fn, check, detectedResult, ctx.Names) {
			ctx.Metrics.Inc(key)
			rewritten++
		}
	}
	return rewritten
}
