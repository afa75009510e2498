// Package element provides the host-side filter element that a streaming
// pipeline embeds. A Filter owns exactly one plugin handle, serializes its
// open -> negotiate -> process* -> close lifecycle behind a mutex, allocates
// and validates buffers, and reports metrics and structured logs per
// invocation.
//
// Open is idempotent: re-opening an already-open filter is a no-op success
// and never re-initializes the module. Close is terminal: any later call is
// a lifecycle error, not a silent no-op.
package element
