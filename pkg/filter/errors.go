package filter

import (
	"errors"
	"fmt"
)

// Sentinel errors for lifecycle misuse. Both are programmer errors on the
// host side and are surfaced immediately rather than recovered.
var (
	// ErrNotNegotiated is returned by Run when no shape negotiation has
	// succeeded in the handle's lifetime, leaving output sizing undefined.
	ErrNotNegotiated = errors.New("filter: output shape not negotiated")

	// ErrClosed is returned by any operation on a closed handle.
	ErrClosed = errors.New("filter: handle is closed")
)

// LoadStage identifies which step of module loading failed.
type LoadStage string

const (
	// LoadStageOpen covers the library file being missing, unreadable, or
	// failing to load as a dynamic module.
	LoadStageOpen LoadStage = "open"

	// LoadStageSymbol covers the entry symbol being absent or having an
	// incompatible type.
	LoadStageSymbol LoadStage = "symbol"

	// LoadStageInit covers the module's Init callback failing to produce
	// its private state.
	LoadStageInit LoadStage = "init"
)

// LoadError reports a failure to load a module as a dynamic library or to
// resolve its capability table symbol. It is fatal to the filter instance
// and never retried.
type LoadError struct {
	Path  string
	Stage LoadStage
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("filter: load %s (%s stage): %v", e.Path, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ContractViolationError reports a capability table violating the load-time
// invariants. It indicates a malformed module build: fatal, never retried,
// never downgraded.
type ContractViolationError struct {
	Path   string
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("filter: contract violation in %s: %s", e.Path, e.Reason)
}

// UnsupportedOperationError reports a negotiation call inapplicable to the
// module's discovery mode, e.g. NegotiateOutput on a static-mode module.
type UnsupportedOperationError struct {
	Op   string
	Mode DiscoveryMode
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("filter: %s is not supported in %s discovery mode", e.Op, e.Mode)
}

// InvocationError reports that the module's per-buffer call failed. The
// output buffer contents are undefined; the caller must discard the buffer
// and may continue with subsequent buffers.
type InvocationError struct {
	Path string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("filter: invoke failed for %s: %v", e.Path, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// SizeMismatchError reports a module-allocated output whose size disagrees
// with the negotiated output shape. It indicates a module/protocol contract
// bug and is not recoverable by retry.
type SizeMismatchError struct {
	Path string
	Want uint64
	Got  uint64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("filter: module %s allocated %d output bytes, negotiated shape requires %d",
		e.Path, e.Got, e.Want)
}
