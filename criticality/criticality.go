// SPDX-License-Identifier: MIT
//
// Package criticality is the Criticality Analyzer (spec §4.D): it scores
// each function's complexity, sensitivity, and caller count, and classifies
// it into one of four protection levels.
//
// Complexity is computed exactly as cyclomatic complexity is defined over
// any directed graph — edges minus nodes plus two — by walking each
// function's basic blocks as a small control-flow graph. This is the same
// edges/nodes relationship the teacher's algorithms package (BFS/DFS over
// core.Graph) exists to compute for general graphs; here the "graph" is a
// function's blocks and their terminator successors instead of
// core.Vertex/core.Edge. Every block in the function counts as a node,
// whether or not it is reachable from the entry block; no traversal is made.
package criticality

import (
	"strings"

	"github.com/irobf/obfuscator/ir"
)

// Level classifies how aggressively a function should be protected.
type Level int

const (
	LevelMinimal Level = iota
	LevelStandard
	LevelImportant
	LevelCritical
)

// String renders the level for reports and logs.
func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "critical"
	case LevelImportant:
		return "important"
	case LevelStandard:
		return "standard"
	default:
		return "minimal"
	}
}

// Record is one function's analysis result, recomputed at the start of each
// cycle (spec §3's Function Analysis Record lifetime).
type Record struct {
	Level       Level
	Complexity  int
	Sensitivity int
	CallerCount int
}

// sensitivityKeywords weights name substrings; matched case-insensitively
// against the function name (spec §4.D).
var sensitivityKeywords = map[string]int{
	"auth":    8,
	"crypto":  10,
	"license": 10,
	"key":     6,
	"decrypt": 9,
	"verify":  7,
}

// sensitiveCallees weights calls to known sensitive APIs by substring match
// against the callee name (spec §4.D's "scanning instructions for calls to
// known sensitive APIs"): file, network, and cryptographic operations.
var sensitiveCallees = map[string]int{
	"fopen": 4, "fread": 4, "fwrite": 4, "open": 3, "read": 2, "write": 2,
	"socket": 5, "connect": 5, "send": 4, "recv": 4, "http": 4,
	"aes": 6, "sha": 5, "md5": 4, "rsa": 6, "hmac": 6, "rand": 3,
}

// mainSynonyms are name matches that always classify a function as critical
// regardless of sensitivity score (spec §4.D: "name ∈ {main}-synonyms set").
var mainSynonyms = map[string]bool{
	"main": true, "wmain": true, "winmain": true, "dllmain": true, "_start": true,
}

// Analyze computes fn's Record. callerCount is the number of distinct direct
// callers found anywhere in the module (computed once per cycle by
// CallerCounts and passed in, so analyzing N functions costs one module
// walk rather than N).
func Analyze(fn *ir.Function, callerCount int) Record {
	complexity := Complexity(fn)
	sensitivity := Sensitivity(fn)

	rec := Record{Complexity: complexity, Sensitivity: sensitivity, CallerCount: callerCount}
	rec.Level = classify(fn.Name, complexity, sensitivity, callerCount)
	return rec
}

// classify applies the fixed, deterministic thresholds of spec §4.D in order.
func classify(name string, complexity, sensitivity, callerCount int) Level {
	if sensitivity >= 20 || mainSynonyms[strings.ToLower(name)] {
		return LevelCritical
	}
	if sensitivity >= 10 || complexity >= 15 {
		return LevelImportant
	}
	if complexity <= 3 && callerCount >= 3 {
		return LevelMinimal
	}
	return LevelStandard
}

// Complexity computes cyclomatic complexity over fn's CFG: edges minus
// nodes plus two, clamped to a minimum of 1 (spec §4.D). Nodes are fn's
// basic blocks; edges are each block's terminator successor links plus,
// for a switch, one link per case (duplicate targets, e.g. two switch cases
// targeting the same block,
// each count as a distinct edge — this matches how a real CFG counts
// parallel control-flow edges).
func Complexity(fn *ir.Function) int {
	nodes := len(fn.Blocks)
	if nodes == 0 {
		return 1
	}
	edges := 0
	for _, b := range fn.Blocks {
		edges += len(b.Successors())
		if term := b.Terminator(); term != nil && term.Op == ir.OpSwitch {
			edges += len(term.Cases)
		}
	}
	complexity := edges - nodes + 2
	if complexity < 1 {
		complexity = 1
	}
	return complexity
}

// Sensitivity sums weighted keyword hits against fn's name plus weighted
// hits against every call instruction's callee name (spec §4.D).
func Sensitivity(fn *ir.Function) int {
	score := 0
	lowerName := strings.ToLower(fn.Name)
	for kw, weight := range sensitivityKeywords {
		if strings.Contains(lowerName, kw) {
			score += weight
		}
	}
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			if inst.Op != ir.OpCall {
				continue
			}
			lowerCallee := strings.ToLower(inst.Callee)
			for kw, weight := range sensitiveCallees {
				if strings.Contains(lowerCallee, kw) {
					score += weight
				}
			}
		}
	}
	return score
}

// CallerCounts walks every function in the module once and returns, for
// each function name, the number of distinct functions that call it
// directly by name (several call sites in one caller count once). Indirect calls (already
// routed through the indirect-call table, spec §4.G) are not counted, since
// by the time they exist the original direct-call site has already been
// rewritten.
func CallerCounts(m *ir.Module) map[string]int {
	counts := make(map[string]int)
	for _, fn := range m.Functions() {
		seen := make(map[string]bool)
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				if inst.Op != ir.OpCall || inst.Callee == "" {
					continue
				}
				if !seen[inst.Callee] {
					seen[inst.Callee] = true
					counts[inst.Callee]++
				}
			}
		}
	}
	return counts
}
