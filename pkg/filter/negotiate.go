package filter

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tensorplug/tensorplug/pkg/tensor"
)

// InputShape returns the module's fixed declared input shape. Valid only in
// static discovery mode.
func (h *Handle) InputShape() (tensor.TensorsInfo, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if h.discovery != DiscoveryStatic {
		return nil, &UnsupportedOperationError{Op: "InputShape", Mode: h.discovery}
	}
	info, err := h.caps.GetInputShape(h.private, h.props)
	if err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: err}
	}
	if err := info.Validate(); err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: fmt.Errorf("module declared invalid input shape: %w", err)}
	}
	return info, nil
}

// OutputShape returns the module's fixed declared output shape and records
// it as the authoritative output shape for dispatch. Valid only in static
// discovery mode.
func (h *Handle) OutputShape() (tensor.TensorsInfo, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if h.discovery != DiscoveryStatic {
		return nil, &UnsupportedOperationError{Op: "OutputShape", Mode: h.discovery}
	}
	info, err := h.caps.GetOutputShape(h.private, h.props)
	if err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: err}
	}
	if err := info.Validate(); err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: fmt.Errorf("module declared invalid output shape: %w", err)}
	}

	// Static declarations are fixed for the module's lifetime, so reading
	// the output shape completes negotiation for dispatch purposes.
	in, err := h.caps.GetInputShape(h.private, h.props)
	if err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: err}
	}
	if err := in.Validate(); err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: fmt.Errorf("module declared invalid input shape: %w", err)}
	}
	h.inputShape = in.Clone()
	h.outputShape = info.Clone()
	h.props.InputShape = in.Clone()
	h.props.OutputShape = info.Clone()
	h.negotiated = true

	return info, nil
}

// NegotiateOutput asks the module to derive its output shape from the given
// input shape. Valid only in dynamic discovery mode. The result becomes the
// authoritative output shape used to size host-allocated output buffers; it
// may be re-established any number of times before or between invocations.
func (h *Handle) NegotiateOutput(in tensor.TensorsInfo) (tensor.TensorsInfo, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if h.discovery != DiscoveryDynamic {
		return nil, &UnsupportedOperationError{Op: "NegotiateOutput", Mode: h.discovery}
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("filter: invalid input shape for negotiation: %w", err)
	}

	out, err := h.caps.SetShapes(h.private, h.props, in)
	if err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: err}
	}
	if err := out.Validate(); err != nil {
		return nil, &InvocationError{Path: h.props.ModulePath, Err: fmt.Errorf("module derived invalid output shape: %w", err)}
	}

	h.inputShape = in.Clone()
	h.outputShape = out.Clone()
	h.props.InputShape = in.Clone()
	h.props.OutputShape = out.Clone()
	h.negotiated = true

	h.log.WithFields(logrus.Fields{
		"input":  in.String(),
		"output": out.String(),
	}).Debug("Negotiated shapes")

	return out, nil
}
