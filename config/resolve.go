// SPDX-License-Identifier: MIT

package config

import (
	"sort"

	"github.com/irobf/obfuscator/criticality"
)

// heavyTechniques are disabled on minimal/standard functions by auto-select
// (spec §4.E: "disabling heavy techniques on minimal/standard functions"):
// the ones with the largest growth.go weights, i.e. the ones most likely to
// make a small, low-value function disproportionately bigger.
var heavyTechniques = []Technique{
	TechFlatten, TechVirtualize, TechMBA, TechPolymorphic, TechMetamorphic,
}

// Resolve derives fn's effective configuration from the base Config and its
// criticality Record (spec §4.E). If auto-select is off, every function
// shares the base Config's toggles unchanged.
func Resolve(base Config, rec criticality.Record) Config {
	if !base.AutoSelect {
		return base
	}

	eff := base
	eff.Toggles = base.Toggles.clone()

	switch rec.Level {
	case criticality.LevelCritical:
		eff.Toggles = make(Toggles, len(allTechniques))
		for _, t := range allTechniques {
			eff.Toggles[t] = true
		}
	case criticality.LevelMinimal, criticality.LevelStandard:
		for _, t := range heavyTechniques {
			eff.Toggles[t] = false
		}
	case criticality.LevelImportant:
		// base toggles stand as configured.
	}

	if base.MaxGrowthPct > 0 {
		eff.Toggles = fitToCap(eff.Toggles, eff, base.MaxGrowthPct)
	}
	return eff
}

// fitToCap drops enabled techniques cheapest-first (by growthWeight) until
// the estimate fits within maxGrowthPct, or nothing enabled remains (spec
// §4.E: "techniques are dropped greedily, cheapest first, until the estimate
// fits the cap").
func fitToCap(toggles Toggles, cfg Config, maxGrowthPct int) Toggles {
	out := toggles.clone()
	for EstimateGrowthPercent(out, cfg) > maxGrowthPct {
		cheapest, found := cheapestEnabled(out, cfg)
		if !found {
			break
		}
		out[cheapest] = false
	}
	return out
}

// cheapestEnabled returns the lowest-growthWeight enabled technique, ties
// broken by canonical technique order.
func cheapestEnabled(toggles Toggles, cfg Config) (Technique, bool) {
	enabled := make([]Technique, 0, len(allTechniques))
	for _, t := range allTechniques {
		if toggles.Enabled(t) {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		return "", false
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return growthWeight(enabled[i], cfg) < growthWeight(enabled[j], cfg)
	})
	return enabled[0], true
}
