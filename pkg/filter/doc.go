// Package filter implements the dynamic plugin loading and invocation
// protocol between a streaming tensor pipeline host and externally-built
// filter modules.
//
// # Overview
//
// A module is a shared library exporting the TensorFilterV1 symbol: a
// CustomFilter capability table of mandatory and optional functions. The
// package loads the library once per filter instance, validates the table's
// contract, and gives the host a Handle through which it negotiates tensor
// shapes and dispatches per-buffer invocations.
//
// # Capability contract
//
// Validated once, at open time:
//
//	Init and Exit must both be present.
//	(GetInputShape and GetOutputShape) XOR SetShapes: a module either
//	declares fixed shapes or derives its output shape from a given input
//	shape, never a mix.
//	Invoke XOR InvokeAllocate: output buffers are either host-allocated or
//	module-allocated, never both.
//
// Both choices are recorded on the Handle as closed mode enums, so dispatch
// code never re-checks function presence per call.
//
// # Lifecycle
//
// The host serializes open -> negotiate -> run* -> close for a handle; the
// handle itself carries no locking. Library loads for the same module path
// are single-flighted process-wide. All contract and lifecycle violations
// surface as typed errors, never process termination.
//
// # Usage Example
//
//	h, err := filter.Open(&filter.Properties{
//		ModulePath:     "/usr/lib/filters/scaler.so",
//		CustomProperty: "320x240",
//		InputShape:     in,
//	})
//	if err != nil { ... }
//	defer h.Close()
//
//	out, err := h.NegotiateOutput(in)
//	if err != nil { ... }
//	result, err := h.Run(buf)
//
// # Related Packages
//
//   - pkg/element: host-side filter element wrapping a Handle
//   - pkg/filter/filtertest: in-memory modules for testing
package filter
