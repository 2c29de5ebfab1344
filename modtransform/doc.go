// Package modtransform is the Module-Level Transform Suite (spec §4.G):
// string encryption and its matching decrypt constructor, the indirect-call
// table, the anti-debug and anti-analysis probes, the anti-tamper checksum,
// and dynamic obfuscation. Unlike transform's function-level rewrites, each
// of these touches the whole module — new globals, new internal functions,
// rewritten call sites across every function — rather than one function's
// body, so each takes a Context carrying the module itself rather than a
// single *ir.Function.
package modtransform
