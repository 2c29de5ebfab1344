// SPDX-License-Identifier: MIT
package irutil

import "github.com/irobf/obfuscator/ir"

// ReplaceAllUsesOf rewrites every operand in fn that names oldVal to newVal,
// preserving operand position and instruction identity (no new
// instructions, no reordering) — spec §3's replace-all-uses-of. None of the
// transforms calls it: constant obfuscation, MBA and instruction
// substitution each rewrite the operand or keep the original result name
// in place instead.
func ReplaceAllUsesOf(fn *ir.Function, oldVal, newVal ir.Value) {
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			for i, op := range inst.Operands {
				if valuesEqual(op, oldVal) {
					inst.Operands[i] = newVal
				}
			}
		}
	}
}

func valuesEqual(a, b ir.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.ValueConst:
		return a.Const == b.Const
	default:
		return a.Name == b.Name
	}
}
