// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/criticality"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/modtransform"
	"github.com/irobf/obfuscator/report"
	"github.com/irobf/obfuscator/rng"
	"github.com/irobf/obfuscator/transform"
)

// virtualizationCap mirrors transform's own per-module virtualization
// ceiling (spec §5: "virtualization applies to at most 10 functions per
// module"), used here only to decide whether a diagnostic is owed, not to
// re-enforce the cap — transform.Virtualize already enforces it.
const virtualizationCap = 10

// Run walks m through cfg.Cycles obfuscation cycles and returns the
// rendered report (spec §4.H). It is the sole public entry point (spec §2).
//
// The input module must already verify; a malformed input is fatal before
// any transform runs (spec §7). The output module is verified once more
// after the final cycle as a postcondition — if that fails, Run returns a
// nil report and the module is left in whatever intermediate state it was
// in, per spec §7's "callers are expected to discard it".
func Run(m *ir.Module, cfg config.Config, opts ...Option) (*report.Report, error) {
	if m == nil {
		return nil, errNilModule
	}
	if err := ir.Verify(m); err != nil {
		return nil, fmt.Errorf("pipeline: input module failed verification: %w", err)
	}

	o := resolveOptions(opts)
	logger := o.logger.With(zap.String("module", m.Name))

	source := rng.New(m.Name)
	rec := metrics.New()
	codeHash := rng.CodeHash(m)
	// One Namer serves every transform across every cycle of this Run call,
	// so two Run calls on the same (module, configuration) hand out the
	// identical synthesized-name sequence (spec §8 property 7) instead of
	// drifting with however many prior Run calls this process has made.
	names := irutil.NewNamer()

	cycles := cfg.Cycles
	if cycles < 1 {
		cycles = 1
	}

	var encrypted []modtransform.EncryptedString
	var allDiagnostics []string

	for cycle := 1; cycle <= cycles; cycle++ {
		cr := newCycleReport(cycle)
		logger.Debug("cycle start", zap.Int("cycle", cycle))

		applyFunctionTransforms(m, cfg, source, rec, names, cr, logger)

		records := applyModuleTransforms(m, cfg, source, rec, names, codeHash, cycle, cycles, cr, logger)
		encrypted = append(encrypted, records...)

		rec.Inc(metrics.Cycles)
		allDiagnostics = append(allDiagnostics, flattenCycleDiagnostics(cr)...)
	}

	if len(encrypted) > 0 && cfg.DecryptAtStartup {
		decryptCtx := modtransform.Context{RNG: source, Metrics: rec, Cfg: cfg, Module: m, CodeHash: codeHash, Names: names}
		modtransform.EmitDecryptConstructor(decryptCtx, encrypted)
	}

	if err := ir.Verify(m); err != nil {
		logger.Error("output module failed verification", zap.Error(err))
		return nil, fmt.Errorf("pipeline: output module failed verification: %w", err)
	}

	return report.New(m, cfg, rec.Snapshot(), cycles, allDiagnostics), nil
}

// applyFunctionTransforms runs one cycle's per-function transform pass over
// every original, non-declaration function in module order (spec §4.H step
// 1-2). Criticality is recomputed at the start of the cycle so auto-select
// sees the module's current shape, not cycle-1's.
func applyFunctionTransforms(m *ir.Module, cfg config.Config, source *rng.Source, rec *metrics.Recorder, names *irutil.Namer, cr *cycleReport, logger *zap.Logger) {
	callerCounts := criticality.CallerCounts(m)

	// m.Functions() already returns a fresh slice built from the module's
	// insertion-order index (ir/types.go), so functions Polymorphic adds
	// mid-loop are never themselves visited in this same cycle.
	for _, fn := range m.Functions() {
		if fn.IsDeclaration || fn.Generated {
			continue
		}

		record := criticality.Analyze(fn, callerCounts[fn.Name])
		effective := config.Resolve(cfg, record)
		ctx := transform.Context{RNG: source, Metrics: rec, Cfg: effective, Module: m, Names: names}
		vmBefore := rec.Snapshot()[metrics.VirtualizedFunctions]

		for _, entry := range transform.Registry {
			if !effective.Toggles.Enabled(entry.Technique) {
				continue
			}

			var changed bool
			switch entry.Technique {
			case config.TechPolymorphic:
				changed = transform.Polymorphic(fn, ctx)
			default:
				if entry.Apply == nil {
					continue
				}
				changed = entry.Apply(fn, ctx)
			}

			if !changed {
				logger.Debug("transform made no change",
					zap.String("function", fn.Name), zap.String("technique", string(entry.Technique)))
			}
		}

		if effective.Toggles.Enabled(config.TechVirtualize) && vmBefore >= virtualizationCap {
			cr.notef("function %q skipped virtualization: module cap of %d reached", fn.Name, virtualizationCap)
		}
	}
}

// applyModuleTransforms applies the six module-level transforms under their
// fixed position rules (spec §4.H step 3): string encryption and indirect
// calls run every cycle; anti-debug and anti-analysis run cycle 1 only;
// dynamic obfuscation and anti-tamper run the final cycle only.
func applyModuleTransforms(
	m *ir.Module, cfg config.Config, source *rng.Source, rec *metrics.Recorder, names *irutil.Namer, codeHash uint64,
	cycle, totalCycles int, cr *cycleReport, logger *zap.Logger,
) []modtransform.EncryptedString {
	ctx := modtransform.Context{RNG: source, Metrics: rec, Cfg: cfg, Module: m, CodeHash: codeHash, Names: names}
	isFirst := cycle == 1
	isLast := cycle == totalCycles

	var records []modtransform.EncryptedString

	if cfg.Toggles.Enabled(config.TechStringEncryption) {
		records = modtransform.StringEncryption(ctx)
	}
	if cfg.Toggles.Enabled(config.TechIndirectCalls) {
		modtransform.IndirectCalls(ctx)
	}
	if isFirst && cfg.Toggles.Enabled(config.TechAntiDebug) {
		modtransform.AntiDebug(ctx)
	}
	if isFirst && cfg.Toggles.Enabled(config.TechAntiAnalysis) {
		modtransform.AntiAnalysis(ctx)
	}
	if isLast && cfg.Toggles.Enabled(config.TechDynamicObf) {
		modtransform.DynamicObfuscation(ctx)
	}
	if isLast && cfg.Toggles.Enabled(config.TechAntiTamper) {
		if n := modtransform.AntiTamper(ctx); n == 0 {
			logger.Debug("anti-tamper found no eligible function", zap.Int("cycle", cycle))
		}
	}

	return records
}

func flattenCycleDiagnostics(cr *cycleReport) []string {
	if cr.diagnostics == nil || len(cr.diagnostics.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, len(cr.diagnostics.Errors))
	for _, e := range cr.diagnostics.Errors {
		out = append(out, e.Error())
	}
	return out
}

func sprintfCycle(cycle int, format string, args ...any) string {
	return fmt.Sprintf("[cycle %d] ", cycle) + fmt.Sprintf(format, args...)
}

// errNilModule guards the one precondition Run cannot delegate to
// ir.Verify: a nil module has nothing to verify against.
var errNilModule = errors.New("pipeline: module is nil")
