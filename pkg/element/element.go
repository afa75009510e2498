package element

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tensorplug/tensorplug/pkg/filter"
	"github.com/tensorplug/tensorplug/pkg/observability"
	"github.com/tensorplug/tensorplug/pkg/tensor"
)

// ErrNotOpen is returned by Process and shape accessors before Open has
// succeeded.
var ErrNotOpen = errors.New("element: filter is not open")

// Filter is a pipeline element backed by one dynamically loaded module.
type Filter struct {
	mu     sync.Mutex
	props  *filter.Properties
	handle *filter.Handle
	closed bool

	opener  filter.LibraryOpener
	log     *logrus.Logger
	metrics *observability.Metrics
}

// Option configures a Filter.
type Option func(*Filter)

// WithOpener replaces the library opener used when the module is loaded.
func WithOpener(opener filter.LibraryOpener) Option {
	return func(f *Filter) { f.opener = opener }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(f *Filter) { f.log = log }
}

// WithMetrics enables metric reporting.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Filter) { f.metrics = m }
}

// New creates a filter element for the given properties. The module is not
// loaded until Open.
func New(props *filter.Properties, opts ...Option) *Filter {
	f := &Filter{
		props:  props,
		opener: filter.OpenLibrary,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open loads and validates the module, initializes its state, and performs
// the initial shape negotiation. Calling Open on an already-open filter
// returns success without reloading or re-initializing the module. Calling
// Open after Close fails with filter.ErrClosed.
func (f *Filter) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return filter.ErrClosed
	}
	if f.handle != nil {
		return nil
	}

	h, err := filter.Open(f.props, filter.WithOpener(f.opener), filter.WithLogger(f.log))
	if err != nil {
		if f.metrics != nil {
			f.metrics.ModuleLoadsTotal.WithLabelValues("error").Inc()
			var cv *filter.ContractViolationError
			if errors.As(err, &cv) {
				f.metrics.ContractViolationsTotal.Inc()
			}
		}
		return err
	}
	if f.metrics != nil {
		f.metrics.ModuleLoadsTotal.WithLabelValues("ok").Inc()
		f.metrics.OpenHandles.Inc()
	}

	if err := f.negotiateLocked(h); err != nil {
		// Early negotiation failure still tears the module down cleanly.
		_ = h.Close()
		if f.metrics != nil {
			f.metrics.OpenHandles.Dec()
		}
		return err
	}

	f.handle = h
	return nil
}

// negotiateLocked establishes the authoritative output shape right after
// load: static modules declare it, dynamic modules derive it from the
// configured input shape.
func (f *Filter) negotiateLocked(h *filter.Handle) error {
	mode := h.DiscoveryMode()

	var err error
	switch mode {
	case filter.DiscoveryStatic:
		var out tensor.TensorsInfo
		out, err = h.OutputShape()
		if err == nil {
			f.props.OutputShape = out
			f.props.InputShape = h.Properties().InputShape.Clone()
		}
	case filter.DiscoveryDynamic:
		if len(f.props.InputShape) == 0 {
			err = fmt.Errorf("element: dynamic module %s requires an input shape for negotiation", f.props.ModulePath)
		} else {
			var out tensor.TensorsInfo
			out, err = h.NegotiateOutput(f.props.InputShape)
			if err == nil {
				f.props.OutputShape = out
			}
		}
	}

	if f.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		f.metrics.NegotiationsTotal.WithLabelValues(mode.String(), result).Inc()
	}
	return err
}

// Renegotiate re-derives the output shape from a new input shape. Valid only
// for dynamic-mode modules, any number of times between invocations.
func (f *Filter) Renegotiate(in tensor.TensorsInfo) (tensor.TensorsInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, filter.ErrClosed
	}
	if f.handle == nil {
		return nil, ErrNotOpen
	}

	out, err := f.handle.NegotiateOutput(in)
	if f.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		f.metrics.NegotiationsTotal.WithLabelValues(f.handle.DiscoveryMode().String(), result).Inc()
	}
	if err != nil {
		return nil, err
	}
	f.props.InputShape = in.Clone()
	f.props.OutputShape = out.Clone()
	return out, nil
}

// InputShape returns the negotiated input shape.
func (f *Filter) InputShape() (tensor.TensorsInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, filter.ErrClosed
	}
	if f.handle == nil {
		return nil, ErrNotOpen
	}
	return f.props.InputShape.Clone(), nil
}

// OutputShape returns the negotiated output shape.
func (f *Filter) OutputShape() (tensor.TensorsInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, filter.ErrClosed
	}
	if f.handle == nil {
		return nil, ErrNotOpen
	}
	return f.handle.NegotiatedOutputShape(), nil
}

// Process runs one input buffer through the module and returns the output
// buffer. On an *filter.InvocationError the buffer is dropped and the filter
// stays usable for subsequent buffers.
func (f *Filter) Process(in []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, filter.ErrClosed
	}
	if f.handle == nil {
		return nil, ErrNotOpen
	}

	mode := f.handle.OwnershipMode().String()
	start := time.Now()
	out, err := f.handle.Run(in)
	elapsed := time.Since(start)

	if err != nil {
		if f.metrics != nil {
			f.metrics.ObserveInvocation(mode, "error", elapsed, 0)
			var sm *filter.SizeMismatchError
			if errors.As(err, &sm) {
				f.metrics.SizeMismatchesTotal.Inc()
			}
		}
		f.log.WithError(err).WithField("module", f.props.ModulePath).Warn("Dropping buffer after failed invocation")
		return nil, err
	}

	if f.metrics != nil {
		f.metrics.ObserveInvocation(mode, "ok", elapsed, len(out.Buffer))
	}
	return out.Buffer, nil
}

// Close tears the module down. It must be called exactly once; a second
// Close, like any other call afterwards, fails with filter.ErrClosed.
func (f *Filter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return filter.ErrClosed
	}
	f.closed = true

	if f.handle == nil {
		return nil
	}
	err := f.handle.Close()
	f.handle = nil
	if f.metrics != nil {
		f.metrics.OpenHandles.Dec()
	}
	return err
}
