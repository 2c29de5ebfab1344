// SPDX-License-Identifier: MIT
//
// errors.go — sentinel errors for the ir package.
//
// Error policy (explicit and strict):
//   - Only sentinel variables (package-level) are exposed.
//   - Callers MUST use errors.Is(err, ErrX) to branch on semantics.
//   - Sentinels are never wrapped with formatted strings at definition site;
//     call sites attach context with fmt.Errorf("...: %w", ErrX).
package ir

import "errors"

// ErrEmptyName indicates a function, block, or global was given an empty name.
var ErrEmptyName = errors.New("ir: name is empty")

// ErrDuplicateFunction indicates a function name collides with one already in the module.
var ErrDuplicateFunction = errors.New("ir: duplicate function name")

// ErrDuplicateGlobal indicates a global name collides with one already in the module.
var ErrDuplicateGlobal = errors.New("ir: duplicate global name")

// ErrFunctionNotFound indicates a reference to a function absent from the module.
var ErrFunctionNotFound = errors.New("ir: function not found")

// ErrGlobalNotFound indicates a reference to a global absent from the module.
var ErrGlobalNotFound = errors.New("ir: global not found")

// ErrBlockNotFound indicates a reference to a block absent from its function.
var ErrBlockNotFound = errors.New("ir: block not found")

// ErrNoTerminator indicates a basic block has no terminating instruction.
var ErrNoTerminator = errors.New("ir: block has no terminator")

// ErrMultipleTerminators indicates a basic block has more than one terminator.
var ErrMultipleTerminators = errors.New("ir: block has multiple terminators")

// ErrDanglingBlockRef indicates a terminator refers to a block not owned by the function.
var ErrDanglingBlockRef = errors.New("ir: terminator targets a block outside its function")

// ErrDanglingValueRef indicates an instruction operand refers to a value that does not exist.
var ErrDanglingValueRef = errors.New("ir: operand references an undefined value")

// ErrTypeMismatch indicates an operation was attempted on operands of incompatible types.
var ErrTypeMismatch = errors.New("ir: type mismatch")

// ErrNotDeclaration indicates an operation expected a declaration-only function.
var ErrNotDeclaration = errors.New("ir: function is not a declaration")
