// Package ir defines the low-level instruction representation of a tensor
// computation: typed buffer declarations, a fixed set of instructions over
// them, and the Module that owns both.
//
// Among its features:
//
//   - A Builder with high-level operator constructors that compute output
//     shapes, allocate parameter/cache buffers, and emit the corresponding
//     instructions.
//   - Structural type interning: two buffers with the same element kind and
//     dimensions share the same *Type, so identity comparison is valid.
//   - A non-fatal verifier (Module.Verify) that re-derives every shape/type
//     relation the Builder enforced, so a Module can be re-checked after
//     rewriting by optimization passes.
//   - Written purely in Go, no C/C++ external dependencies.
//
// Construction is strictly sequential: instruction order is call order, and a
// Module is owned by a single goroutine while being built.
package ir
