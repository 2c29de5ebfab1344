// SPDX-License-Identifier: MIT
package transform

import (
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

// Polymorphic deep-clones fn poly-variants times and applies Metamorphic's
// structural randomizer to each clone (spec §4.F). Variants are added to
// the module but never called — callers of fn are left pointing at fn —
// and CloneFunction already marks every variant Generated, so the original-
// function set (spec §3) excludes them from any later cycle's transforms.
// An original that already has variants in the module is not cloned again,
// so a multi-cycle run ends with exactly poly-variants variants per original.
//
// Unlike the other nine function-level transforms, Polymorphic mutates the
// module (it adds functions, reached through ctx.Module) rather than fn
// itself. Its Registry entry carries a nil Apply and the pipeline driver
// calls it directly for each original function; see pipeline.go.
func Polymorphic(fn *ir.Function, ctx Context) bool {
	if fn.Generated || fn.IsDeclaration {
		return false
	}
	prefix := fn.Name + ".variant."
	for _, other := range ctx.Module.Functions() {
		if other.Generated && len(other.Name) == len(prefix)+8 && other.Name[:len(prefix)] == prefix {
			return false
		}
	}
	for i := 0; i < ctx.Cfg.PolyVariants; i++ {
		variantName := rng.ArtifactName(ctx.RNG, fn.Name+".variant")
		variant := irutil.CloneFunction(fn, variantName)
		Metamorphic(variant, ctx)
		if err := ctx.Module.AddFunction(variant); err != nil {
			continue
		}
		ctx.Metrics.Inc(metrics.PolymorphicVariants)
	}
	return ctx.Cfg.PolyVariants > 0
}
