// SPDX-License-Identifier: MIT
package irutil

import "github.com/irobf/obfuscator/ir"

// AppendGlobalConstructor merges fn into m's canonical constructors array at
// the given priority, keeping the array sorted ascending by priority and
// stable for equal priorities (insertion order preserved among ties).
//
// This is the single writer to Module.Constructors (spec §9: "the
// dynamic-obfuscation and anti-analysis paths both write to the canonical
// constructors array; the source sometimes overwrites that array rather
// than appending" — this rewrite fixes that by routing every writer through
// one function that only ever merges, never overwrites).
func AppendGlobalConstructor(m *ir.Module, priority int, fn *ir.Function) {
	entry := ir.Constructor{Priority: priority, Func: fn}

	i := 0
	for i < len(m.Constructors) && m.Constructors[i].Priority <= priority {
		i++
	}
	m.Constructors = append(m.Constructors, ir.Constructor{})
	copy(m.Constructors[i+1:], m.Constructors[i:])
	m.Constructors[i] = entry
}
