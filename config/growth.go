// SPDX-License-Identifier: MIT

package config

// growthWeight returns technique's estimated contribution to a function's
// instruction-count growth, as a percentage of its pre-pass size (spec
// §3's "estimated size-growth percent under the configuration" and spec
// §4.E's greedy cheapest-first cap-fitting drop). Parametrized techniques
// scale with their own configured intensity; module-level techniques
// (string-encryption, indirect-calls, the anti-* probes, dynamic-obf) touch
// only an injected constructor or a handful of call sites, never the body
// of every function, so they carry a small flat weight. Polymorphic cloning
// produces whole new functions rather than growing the original, so it
// contributes nothing to this estimate.
func growthWeight(tech Technique, cfg Config) int {
	switch tech {
	case TechControlFlow:
		return 15
	case TechBogusCode:
		return cfg.BogusPercent
	case TechFakeLoops:
		return cfg.FakeLoopCount * 8
	case TechInstrSub:
		return 10
	case TechFlatten:
		return 80
	case TechMBA:
		return cfg.MBALevel * 20
	case TechConstObf:
		return 15
	case TechVirtualize:
		if cfg.VMLevel <= 0 {
			return 0
		}
		return 250 + cfg.VMLevel*50
	case TechPolymorphic:
		return 0
	case TechMetamorphic:
		return 10
	case TechStringEncryption:
		return 5
	case TechIndirectCalls:
		return 5
	case TechAntiDebug:
		return 5
	case TechAntiAnalysis:
		return 5
	case TechAntiTamper:
		return 5
	case TechDynamicObf:
		return 5
	default:
		return 0
	}
}

// EstimateGrowthPercent sums the growth weight of every technique enabled in
// toggles, under cfg's numeric parameters.
func EstimateGrowthPercent(toggles Toggles, cfg Config) int {
	total := 0
	for _, tech := range allTechniques {
		if toggles.Enabled(tech) {
			total += growthWeight(tech, cfg)
		}
	}
	return total
}
