// SPDX-License-Identifier: MIT
package modtransform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

// DynamicObfuscation emits a single internal "transform" function that
// mutates a small local buffer by XOR and registers it as a low-priority
// module constructor (spec §4.G). It has no behavioral effect on the rest
// of the program — the buffer is stack-local and never read back — and is
// intended purely as an analysis nuisance: spec §9 lists this as a feature
// to keep behaviorally equivalent, not "fix" into doing something real.
// Runs once, final cycle only — enforced by the pipeline driver.
func DynamicObfuscation(ctx Context) bool {
	fn := &ir.Function{Name: rng.ArtifactName(ctx.RNG, "__obf_dynamic_transform"), RetType: "void", Linkage: ir.LinkagePrivate, Generated: true}
	if err := ctx.Module.AddFunction(fn); err != nil {
		return false
	}

	entry := irutil.CreateBlock(fn, "entry")
	bufPtr := ctx.Names.FreshName("dynobf.buf")
	irutil.BuildAlloca(entry, bufPtr, "i64")
	irutil.BuildStore(entry, ir.LocalValue(bufPtr), ir.ConstValue(int64(ctx.RNG.Intn(1<<31))))

	loaded := irutil.BuildLoad(entry, ctx.Names.FreshName("dynobf.loaded"), "i64", ir.LocalValue(bufPtr))
	xored := irutil.BuildArith(entry, ir.OpXor, ctx.Names.FreshName("dynobf.xored"), "i64", ir.LocalValue(loaded.Result), ir.ConstValue(0x5A5A5A5A))
	irutil.BuildStore(entry, ir.LocalValue(bufPtr), ir.LocalValue(xored.Result))
	irutil.TerminateRet(entry, nil)

	irutil.AppendGlobalConstructor(ctx.Module, 1000, fn)
	ctx.Metrics.Inc(metrics.DynamicObfs)
	return true
}
