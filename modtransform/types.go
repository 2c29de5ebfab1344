// SPDX-License-Identifier: MIT
//
// Package modtransform is the Module-Level Transform Suite (spec §4.G):
// string encryption, the indirect-call table, the anti-debug and
// anti-analysis probes, the anti-tamper checksum, and dynamic
// obfuscation. Unlike transform's function-level rewrites, each of these
// touches the whole module — new globals, new internal functions, rewritten
// call sites across every function — rather than one function's body.
package modtransform

import (
	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

// Context bundles the per-run resources a module-level transform needs.
// CodeHash is computed once per pass invocation (rng.CodeHash) and reused
// by every cycle's string-encryption pass, rather than recomputed per call,
// since the rc4-derived scheme keys off code shape at pass start, not at
// each cycle's (already-mutated) shape. Names is the same Namer shared with
// transform.Context, for the same reason (spec §8 property 7).
type Context struct {
	RNG      *rng.Source
	Metrics  *metrics.Recorder
	Cfg      config.Config
	Module   *ir.Module
	CodeHash uint64
	Names    *irutil.Namer
}

// EncryptedString is the spec §9 "encrypted-string record": a back-
// reference to the module global it encrypted, plus enough to build the
// inverse transform. Pipeline owns the record's lifetime (spec §9's systems-
// rewrite guidance): it accumulates records across cycles and consumes them
// once, at decrypt-constructor emission, after the last cycle.
type EncryptedString struct {
	Global *ir.GlobalVariable
	Scheme config.StringScheme
	Key    []byte
	Salt   []byte // meaningful iff Scheme == SchemeRC4Derived
}
