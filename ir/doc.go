// Package ir is the in-memory module, function, basic-block, and instruction
// representation the obfuscation pass mutates in place.
//
//	ir.Module       — globals, functions, constructors array
//	ir.Function     — basic blocks, or a bodiless declaration
//	ir.BasicBlock   — a straight-line instruction sequence ending in one terminator
//	ir.Instruction  — one typed operation
//
// ir carries no concurrency control: spec §5 mandates a single-threaded,
// single-pass-instance execution model, so a Module is always owned
// exclusively by the one goroutine running the pass.
package ir
