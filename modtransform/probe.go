// SPDX-License-Identifier: MIT
package modtransform

import (
	"strings"

	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
)

// isEntryLike reports whether fn is a rewrite target for an entry-point
// probe: named exactly "main" or containing "entry" anywhere in its name
// (spec §4.G).
func isEntryLike(name string) bool {
	return name == "main" || strings.Contains(strings.ToLower(name), "entry")
}

// injectEntryProbe splits fn's entry block at its first non-prologue
// instruction (the first instruction that is not an OpAlloca — allocas at
// the top of a block are parameter/local storage setup, never the
// "interesting" body), calls checkFn there, and branches to a freshly
// created block returning detectedResult when the call result is nonzero,
// falling through to the original body otherwise.
//
// Shared by the anti-debug and anti-analysis probes (spec §4.G): both
// "synthesize an internal check function" and "rewrite ... by splitting
// the entry block at the first non-prologue instruction, inserting the
// check, and conditionally jumping to an injected detected block" — the
// only difference between them is which check function is called and
// which sentinel value the detected block returns.
func injectEntryProbe(fn *ir.Function, checkFn *ir.Function, detectedResult int64, names *irutil.Namer) bool {
	if fn.IsDeclaration || len(fn.Blocks) == 0 {
		return false
	}

	entry := fn.Blocks[0]
	splitIdx := 0
	for splitIdx < len(entry.Instructions) && entry.Instructions[splitIdx].Op == ir.OpAlloca {
		splitIdx++
	}

	head, tail := irutil.SplitBlockAt(names, entry, splitIdx)
	// Drop the temporary unconditional branch SplitBlockAt installed so the
	// call and comparison can be appended before the real terminator.
	head.Instructions = head.Instructions[:len(head.Instructions)-1]

	result := irutil.BuildCall(head, names.FreshName("probe.result"), "i32", checkFn.Name)
	clean := irutil.BuildICmp(head, names.FreshName("probe.clean"), ir.LocalValue(result.Result), ir.ConstValue(0))

	detected := irutil.CreateBlock(fn, names.FreshName("probe.detected"))
	rv := ir.ConstValue(detectedResult)
	irutil.TerminateRet(detected, &rv)

	irutil.TerminateBr(head, ir.LocalValue(clean.Result), tail, detected)
	return true
}
