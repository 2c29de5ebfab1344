// SPDX-License-Identifier: MIT

package config

import "fmt"

// Preset builds one of the three built-in configurations by name (spec §7):
// they are pure functions from a preset name to a Config, same as every
// other Option constructor — no I/O, no hidden state.
func Preset(name string) (Config, error) {
	switch name {
	case "minimal":
		return New(
			WithTechniques(TechControlFlow, TechStringEncryption),
			WithCycles(1),
		), nil
	case "balanced":
		return New(
			WithTechniques(
				TechControlFlow, TechStringEncryption,
				TechBogusCode, TechFakeLoops, TechAntiDebug, TechIndirectCalls,
			),
			WithCycles(3),
			WithBogusPercent(30),
		), nil
	case "aggressive":
		return New(
			WithTechniques(allExcept(TechVirtualize)...),
			WithCycles(5),
			WithBogusPercent(50),
			WithStringScheme(SchemeRC4Derived),
			WithPBKDF2Iters(2000),
		), nil
	default:
		return Config{}, fmt.Errorf("config: unknown preset %q", name)
	}
}

func allExcept(excluded Technique) []Technique {
	out := make([]Technique, 0, len(allTechniques)-1)
	for _, t := range allTechniques {
		if t != excluded {
			out = append(out, t)
		}
	}
	return out
}
