// Package criticality scores each function's complexity, sensitivity, and
// caller count, and classifies it into one of four protection levels
// (critical, important, standard, minimal), recomputed at the start of
// every obfuscation cycle.
package criticality
