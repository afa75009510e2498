package filter

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tensorplug/tensorplug/pkg/tensor"
)

// Handle owns a loaded module: the library resource, the validated
// capability table, and the module's private state. It is exclusively owned
// by one filter instance and is not safe for concurrent use; the host
// serializes open -> negotiate -> run* -> close.
type Handle struct {
	id    string
	props *Properties
	lib   Library
	caps  *CustomFilter

	private any

	discovery DiscoveryMode
	ownership OwnershipMode

	negotiated  bool
	inputShape  tensor.TensorsInfo
	outputShape tensor.TensorsInfo

	closed bool
	log    *logrus.Entry
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	opener LibraryOpener
	log    *logrus.Logger
}

// WithOpener replaces the library opener. Tests use this to serve in-memory
// modules instead of shared objects.
func WithOpener(opener LibraryOpener) Option {
	return func(o *openOptions) { o.opener = opener }
}

// WithLogger sets the logger used by the handle.
func WithLogger(log *logrus.Logger) Option {
	return func(o *openOptions) { o.log = log }
}

// Open loads the module at prop.ModulePath, validates its capability
// contract, and initializes the module's private state.
//
// Failures are typed: *LoadError if the library cannot be opened or the
// entry symbol cannot be resolved, *ContractViolationError if the table
// violates the exclusivity invariants. Both are fatal to the filter instance
// and must not be retried.
func Open(prop *Properties, opts ...Option) (*Handle, error) {
	options := openOptions{opener: OpenLibrary, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&options)
	}

	if prop == nil || prop.ModulePath == "" {
		return nil, &LoadError{Stage: LoadStageOpen, Err: fmt.Errorf("module path is empty")}
	}

	lib, err := openLibraryOnce(options.opener, prop.ModulePath)
	if err != nil {
		return nil, &LoadError{Path: prop.ModulePath, Stage: LoadStageOpen, Err: err}
	}

	caps, err := resolveTable(lib)
	if err != nil {
		return nil, &LoadError{Path: prop.ModulePath, Stage: LoadStageSymbol, Err: err}
	}

	h := &Handle{
		id:    uuid.NewString(),
		props: prop.Clone(),
		lib:   lib,
		caps:  caps,
	}
	h.log = options.log.WithFields(logrus.Fields{
		"module": prop.ModulePath,
		"handle": h.id,
	})

	if err := h.validateTable(); err != nil {
		return nil, err
	}

	private, err := caps.Init(h.props)
	if err != nil {
		return nil, &LoadError{Path: prop.ModulePath, Stage: LoadStageInit, Err: err}
	}
	h.private = private

	h.log.WithFields(logrus.Fields{
		"discovery": h.discovery.String(),
		"ownership": h.ownership.String(),
	}).Info("Loaded filter module")

	return h, nil
}

// validateTable enforces the capability exclusivity rules and records the
// discovery and ownership modes on the handle.
func (h *Handle) validateTable() error {
	caps := h.caps

	if caps.Init == nil || caps.Exit == nil {
		return &ContractViolationError{
			Path:   h.props.ModulePath,
			Reason: "Init and Exit are mandatory",
		}
	}

	hasGetIn := caps.GetInputShape != nil
	hasGetOut := caps.GetOutputShape != nil
	hasSet := caps.SetShapes != nil

	// A module either statically declares both shapes or dynamically derives
	// the output shape, never a mix of the two styles.
	if hasGetIn == hasSet || hasGetOut == hasSet {
		return &ContractViolationError{
			Path: h.props.ModulePath,
			Reason: fmt.Sprintf(
				"exactly one of {GetInputShape+GetOutputShape} or {SetShapes} must be provided (got GetInputShape=%t GetOutputShape=%t SetShapes=%t)",
				hasGetIn, hasGetOut, hasSet),
		}
	}
	if hasSet {
		h.discovery = DiscoveryDynamic
	} else {
		h.discovery = DiscoveryStatic
	}

	hasInvoke := caps.Invoke != nil
	hasAllocate := caps.InvokeAllocate != nil
	if hasInvoke == hasAllocate {
		return &ContractViolationError{
			Path: h.props.ModulePath,
			Reason: fmt.Sprintf(
				"exactly one of {Invoke} or {InvokeAllocate} must be provided (got Invoke=%t InvokeAllocate=%t)",
				hasInvoke, hasAllocate),
		}
	}
	if hasAllocate {
		h.ownership = ModuleAllocates
	} else {
		h.ownership = HostAllocates
	}

	return nil
}

// ID returns the handle's correlation ID.
func (h *Handle) ID() string { return h.id }

// DiscoveryMode returns the shape-discovery mode recorded at open time.
func (h *Handle) DiscoveryMode() DiscoveryMode { return h.discovery }

// OwnershipMode returns the output-ownership mode recorded at open time.
func (h *Handle) OwnershipMode() OwnershipMode { return h.ownership }

// Negotiated reports whether a shape negotiation has succeeded in the
// handle's lifetime.
func (h *Handle) Negotiated() bool { return h.negotiated }

// NegotiatedOutputShape returns the authoritative output shape established
// by the most recent successful negotiation, or nil.
func (h *Handle) NegotiatedOutputShape() tensor.TensorsInfo {
	return h.outputShape.Clone()
}

// Properties returns a copy of the handle's view of the filter
// configuration. Mutating it does not affect negotiated shapes or dispatch.
func (h *Handle) Properties() *Properties { return h.props.Clone() }

// Close calls the module's Exit, releases the private state, and invalidates
// the handle. Calling any operation afterwards fails with ErrClosed; calling
// Close twice is itself an ErrClosed error.
//
// The library resource stays resident: the Go runtime does not unload
// plugins. The handle drops its reference so the instance cannot reach it
// again.
func (h *Handle) Close() error {
	if h.closed {
		return ErrClosed
	}
	h.caps.Exit(h.private, h.props)
	h.private = nil
	h.lib = nil
	h.closed = true
	h.log.Info("Closed filter module")
	return nil
}
