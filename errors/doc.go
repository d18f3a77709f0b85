// Package errors provides structured error types for the arcstore module.
//
// Errors are categorized by Phase (which operation raised them) and Kind (error
// category). Handle misuse is reported as one of two kinds:
//
//	KindUnknownHandle - identifier never allocated, or already purged
//	KindUseAfterFree  - strong operation on an object whose strong count is zero
//
// The remaining kinds cover malformed arguments and the scenario harness.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseStrong, errors.KindUseAfterFree).
//		Handle(uint64(id), "Person").
//		Detail("copy on finalized object").
//		Build()
//
// Match without caring about the phase through the sentinels:
//
//	if errors.Is(err, arcerrors.ErrUseAfterFree) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
