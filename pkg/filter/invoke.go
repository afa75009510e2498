package filter

import (
	"fmt"
)

// Output is the result of one invocation. Exactly one ownership variant
// applies per handle, decided at load time.
type Output struct {
	// Buffer holds the output tensor bytes. In host-allocates mode it is the
	// caller-visible buffer the module filled; in module-allocates mode its
	// ownership transfers to the caller, which must not release it twice.
	Buffer []byte

	// Ownership records which variant produced the buffer.
	Ownership OwnershipMode
}

// Run dispatches one input buffer through the module.
//
// The input buffer length must equal the negotiated input shape's byte size,
// and a successful shape negotiation must have happened at least once in the
// handle's lifetime; otherwise Run fails with ErrNotNegotiated. Input and
// output buffers are never the same memory region: in-place transformation
// is disallowed by the protocol.
//
// In host-allocates mode Run allocates the output buffer from the negotiated
// output shape and the module fills it. In module-allocates mode the module
// returns its own buffer, whose length is verified against the negotiated
// output shape; a disagreement is a *SizeMismatchError, a protocol-level bug.
//
// A module-reported failure is an *InvocationError: the buffer contents are
// undefined and the caller must drop that buffer, not publish it downstream.
// Subsequent buffers may still be processed.
func (h *Handle) Run(in []byte) (*Output, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if !h.negotiated {
		return nil, ErrNotNegotiated
	}
	if want := h.inputShape.ByteSize(); uint64(len(in)) != want {
		return nil, fmt.Errorf("filter: input buffer is %d bytes, negotiated input shape requires %d", len(in), want)
	}

	wantOut := h.outputShape.ByteSize()

	switch h.ownership {
	case HostAllocates:
		out := make([]byte, wantOut)
		if err := h.caps.Invoke(h.private, h.props, in, out); err != nil {
			return nil, &InvocationError{Path: h.props.ModulePath, Err: err}
		}
		return &Output{Buffer: out, Ownership: HostAllocates}, nil

	case ModuleAllocates:
		out, err := h.caps.InvokeAllocate(h.private, h.props, in)
		if err != nil {
			return nil, &InvocationError{Path: h.props.ModulePath, Err: err}
		}
		if uint64(len(out)) != wantOut {
			return nil, &SizeMismatchError{Path: h.props.ModulePath, Want: wantOut, Got: uint64(len(out))}
		}
		return &Output{Buffer: out, Ownership: ModuleAllocates}, nil

	default:
		// Unreachable after validateTable.
		return nil, &ContractViolationError{Path: h.props.ModulePath, Reason: "no ownership mode recorded"}
	}
}
