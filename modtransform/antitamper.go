// SPDX-License-Identifier: MIT
package modtransform

import (
	"strings"

	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/rng"
)

// AntiTamper computes a compile-time opcode checksum for every function
// named "main" or containing "critical", stores it in a private read-only
// global, and inserts a runtime load-and-compare at the function's entry
// that branches to an injected block returning -999 on mismatch (spec
// §4.G). Runs once, final cycle only — enforced by the pipeline driver.
//
// The inserted comparison is against the same literal the checksum global
// was initialized with, so it can never observe a mismatch: spec §9 flags
// this as "structurally trivial" by design and explicitly says not to
// silently fix it ("do not silently fix" — §9's preserved-nuisance list),
// so this stays a tautological check rather than gaining a second,
// independently-computed checksum to compare against.
//
// The fixed metric key set (spec §3) has no dedicated counter for this
// technique, so unlike the other module-level transforms this one reports
// its count only through its own return value, not through ctx.Metrics.
func AntiTamper(ctx Context) int {
	rewritten := 0
	for _, fn := range ctx.Module.Functions() {
		if fn.IsDeclaration || fn.Generated {
			continue
		}
		if fn.Name != "main" && !strings.Contains(strings.ToLower(fn.Name), "critical") {
			continue
		}
		if injectTamperCheck(ctx, fn) {
			rewritten++
		}
	}
	return rewritten
}

// opcodeChecksum rolls every instruction's opcode (across every block) into
// a single byte via XOR-then-rotate-left-by-1 — "a rolling XOR+rotate of
// each instruction's opcode over the function body" (spec §4.G).
func opcodeChecksum(fn *ir.Function) byte {
	var sum byte
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			sum ^= byte(inst.Op)
			sum = (sum << 1) | (sum >> 7)
		}
	}
	return sum
}

func injectTamperCheck(ctx Context, fn *ir.Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}

	checksum := opcodeChecksum(fn)
	checksumGlobal, err := irutil.CreateGlobalVariable(ctx.Module, rng.ArtifactName(ctx.RNG, "tamper.checksum."+fn.Name), "i8", []byte{checksum}, true, ir.LinkagePrivate)
	if err != nil {
		return false
	}

	entry := fn.Blocks[0]
	splitIdx := 0
	for splitIdx < len(entry.Instructions) && entry.Instructions[splitIdx].Op == ir.OpAlloca {
		splitIdx++
	}
	head, tail := irutil.SplitBlockAt(ctx.Names, entry, splitIdx)
	head.Instructions = head.Instructions[:len(head.Instructions)-1]

	loaded := irutil.BuildLoad(head, ctx.Names.FreshName("tamper.loaded"), "i8", ir.GlobalValue(checksumGlobal.Name))
	match := irutil.BuildICmp(head, ctx.Names.FreshName("tamper.match"), ir.LocalValue(loaded.Result), ir.ConstValue(int64(checksum)))

	mismatch := irutil.CreateBlock(fn, ctx.Names.FreshName("tamper.mismatch"))
	rv := ir.ConstValue(-999)
	irutil.TerminateRet(mismatch, &rv)

	irutil.TerminateBr(head, ir.LocalValue(match.Result), tail, mismatch)
	return true
}
