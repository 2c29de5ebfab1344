// Package irutil is the IR Utility Layer (spec §4.A): instruction building,
// block creation/splitting, function cloning, constructor-array merging, and
// global creation, all funneled through one place so every mutation leaves
// the module verifier-clean at documented boundaries.
package irutil
