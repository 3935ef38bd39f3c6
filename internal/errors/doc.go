// Package errors provides coded, user-facing diagnostics for the
// weft tools.
//
// Library code returns plain wrapped errors; this package is for the
// places where an error is the product (the migrate codemod, the
// update command, config loading) and should come with a code, a
// source location, and a fix suggestion:
//
//	return errors.New("W202").
//		WithLocation(file, line, col).
//		WithSuggestion("pass the signal itself instead of &c.Count")
//
// Codes are registered in registry.go: W0xx runtime, W06x protocol,
// W1xx config and tooling, W2xx migrate diagnostics.
package errors
