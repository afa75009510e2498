package filter

import (
	"github.com/tensorplug/tensorplug/pkg/tensor"
)

// SymbolName is the well-known exported symbol a module must provide. The V1
// suffix versions the table by name, so an incompatible module fails at
// symbol resolution rather than at call time.
const SymbolName = "TensorFilterV1"

// Properties is the filter configuration owned by the host. It is supplied
// at open time and passed unchanged into every module call. Modules must
// treat it as read-only except where shape negotiation populates the output
// shape.
type Properties struct {
	// ModulePath is the filesystem path of the shared library to load.
	ModulePath string

	// CustomProperty is an opaque string handed to the module uninterpreted,
	// for module-specific configuration.
	CustomProperty string

	// InputShape and OutputShape describe the tensors crossing the filter.
	// OutputShape may be populated by the module during negotiation rather
	// than supplied by the host.
	InputShape  tensor.TensorsInfo
	OutputShape tensor.TensorsInfo
}

// Clone returns an independent copy of the properties.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	return &Properties{
		ModulePath:     p.ModulePath,
		CustomProperty: p.CustomProperty,
		InputShape:     p.InputShape.Clone(),
		OutputShape:    p.OutputShape.Clone(),
	}
}

// CustomFilter is the capability table a module exports under SymbolName.
// Init and Exit are mandatory; every other field is optional, subject to the
// exclusivity rules validated at open time (see package documentation).
type CustomFilter struct {
	// Init is called once, before any other callback. The returned value is
	// module-owned state passed back into every subsequent call.
	Init func(prop *Properties) (any, error)

	// Exit releases module-owned state; no callback is made after it.
	Exit func(private any, prop *Properties)

	// GetInputShape and GetOutputShape declare the module's fixed shapes
	// (static discovery mode).
	GetInputShape  func(private any, prop *Properties) (tensor.TensorsInfo, error)
	GetOutputShape func(private any, prop *Properties) (tensor.TensorsInfo, error)

	// SetShapes derives the output shape from a host-supplied input shape in
	// one call (dynamic discovery mode). The host may call it repeatedly
	// with different inputs during negotiation; modules must not fix
	// internal state based on it.
	SetShapes func(private any, prop *Properties, in tensor.TensorsInfo) (tensor.TensorsInfo, error)

	// Invoke transforms in into the host-allocated out buffer, whose length
	// equals the negotiated output byte size (host-allocates mode).
	Invoke func(private any, prop *Properties, in, out []byte) error

	// InvokeAllocate transforms in and returns a module-allocated output
	// buffer (module-allocates mode). Ownership of the returned buffer
	// transfers to the caller.
	InvokeAllocate func(private any, prop *Properties, in []byte) ([]byte, error)
}

// DiscoveryMode is the shape-discovery style of a validated module, decided
// once at load time.
type DiscoveryMode int

const (
	// DiscoveryStatic means the module declares fixed input and output
	// shapes via GetInputShape/GetOutputShape.
	DiscoveryStatic DiscoveryMode = iota

	// DiscoveryDynamic means the module derives its output shape from a
	// host-supplied input shape via SetShapes.
	DiscoveryDynamic
)

func (m DiscoveryMode) String() string {
	switch m {
	case DiscoveryStatic:
		return "static"
	case DiscoveryDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// OwnershipMode is the output-buffer ownership convention of a validated
// module, decided once at load time.
type OwnershipMode int

const (
	// HostAllocates means the host pre-allocates output buffers and the
	// module fills them (Invoke present).
	HostAllocates OwnershipMode = iota

	// ModuleAllocates means the module allocates output buffers and hands
	// ownership to the caller (InvokeAllocate present).
	ModuleAllocates
)

func (m OwnershipMode) String() string {
	switch m {
	case HostAllocates:
		return "host-allocates"
	case ModuleAllocates:
		return "module-allocates"
	default:
		return "unknown"
	}
}
