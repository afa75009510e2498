// Package filtertest provides in-memory filter modules and a fake library
// opener so the plugin protocol can be exercised without compiling shared
// objects.
package filtertest

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/tensorplug/tensorplug/pkg/filter"
	"github.com/tensorplug/tensorplug/pkg/tensor"
)

// Library serves symbols from a map.
type Library struct {
	Symbols map[string]any
}

// Lookup implements filter.Library.
func (l *Library) Lookup(name string) (any, error) {
	sym, ok := l.Symbols[name]
	if !ok {
		return nil, fmt.Errorf("symbol %q not found", name)
	}
	return sym, nil
}

// ModuleOpener returns a filter.LibraryOpener serving the given capability
// tables keyed by module path. Unknown paths fail like a missing file.
func ModuleOpener(modules map[string]*filter.CustomFilter) filter.LibraryOpener {
	return func(path string) (filter.Library, error) {
		table, ok := modules[path]
		if !ok {
			return nil, fmt.Errorf("no such module: %s", path)
		}
		return &Library{Symbols: map[string]any{filter.SymbolName: table}}, nil
	}
}

// Calls counts lifecycle callbacks, for idempotence tests.
type Calls struct {
	Init atomic.Int32
	Exit atomic.Int32
}

// Counted wraps a table so Init and Exit invocations are counted.
func Counted(table *filter.CustomFilter, calls *Calls) *filter.CustomFilter {
	wrapped := *table
	innerInit := table.Init
	innerExit := table.Exit
	wrapped.Init = func(prop *filter.Properties) (any, error) {
		calls.Init.Add(1)
		return innerInit(prop)
	}
	wrapped.Exit = func(private any, prop *filter.Properties) {
		calls.Exit.Add(1)
		innerExit(private, prop)
	}
	return &wrapped
}

// StaticPassthrough returns a static-mode, host-allocates module that
// declares the given shape for both input and output and copies input bytes
// to output on invoke.
func StaticPassthrough(shape tensor.TensorsInfo) *filter.CustomFilter {
	return &filter.CustomFilter{
		Init: func(prop *filter.Properties) (any, error) { return struct{}{}, nil },
		Exit: func(private any, prop *filter.Properties) {},
		GetInputShape: func(private any, prop *filter.Properties) (tensor.TensorsInfo, error) {
			return shape.Clone(), nil
		},
		GetOutputShape: func(private any, prop *filter.Properties) (tensor.TensorsInfo, error) {
			return shape.Clone(), nil
		},
		Invoke: func(private any, prop *filter.Properties, in, out []byte) error {
			copy(out, in)
			return nil
		},
	}
}

// scalerState mirrors the reference scaler module: the custom property holds
// the target "WxH", zero meaning "keep the input dimension".
type scalerState struct {
	newX uint32
	newY uint32
}

func parseScalerProperty(property string) scalerState {
	var st scalerState
	parts := strings.FieldsFunc(property, func(r rune) bool {
		return strings.ContainsRune("xX:_/ ", r)
	})
	if len(parts) > 0 {
		if v, err := strconv.ParseUint(parts[0], 10, 32); err == nil {
			st.newX = uint32(v)
		}
	}
	if len(parts) > 1 {
		if v, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
			st.newY = uint32(v)
		}
	}
	return st
}

// scalerOutputShape derives the output shape: dimensions 1 and 2 are
// replaced by the configured target when non-zero, everything else is kept.
func scalerOutputShape(st *scalerState, in tensor.TensorsInfo) tensor.TensorsInfo {
	out := in.Clone()
	if st.newX > 0 {
		out[0].Dimensions[1] = st.newX
	}
	if st.newY > 0 {
		out[0].Dimensions[2] = st.newY
	}
	return out
}

// scale resamples dimensions 1 and 2 with nearest-neighbor lookup,
// preserving dimensions 0 and 3.
func scale(st *scalerState, prop *filter.Properties, in []byte, out []byte) error {
	inShape := prop.InputShape[0]
	outShape := prop.OutputShape[0]
	if inShape.Type != outShape.Type {
		return fmt.Errorf("scaler cannot change element type (%v -> %v)", inShape.Type, outShape.Type)
	}
	elem := uint32(inShape.Type.Width())

	ox := outShape.Dimensions[1]
	oy := outShape.Dimensions[2]

	oidx0 := outShape.Dimensions[0]
	oidx1 := oidx0 * outShape.Dimensions[1]
	oidx2 := oidx1 * outShape.Dimensions[2]

	iidx0 := inShape.Dimensions[0]
	iidx1 := iidx0 * inShape.Dimensions[1]
	iidx2 := iidx1 * inShape.Dimensions[2]

	for z := uint32(0); z < inShape.Dimensions[3]; z++ {
		for y := uint32(0); y < oy; y++ {
			iy := y * inShape.Dimensions[2] / oy
			for x := uint32(0); x < ox; x++ {
				ix := x * inShape.Dimensions[1] / ox
				for c := uint32(0); c < inShape.Dimensions[0]; c++ {
					dst := elem * (c + x*oidx0 + y*oidx1 + z*oidx2)
					src := elem * (c + ix*iidx0 + iy*iidx1 + z*iidx2)
					copy(out[dst:dst+elem], in[src:src+elem])
				}
			}
		}
	}
	return nil
}

// Scaler returns the dynamic-mode, host-allocates nearest-neighbor scaler.
// The custom property selects the target width and height as "WxH"; a zero
// or missing component keeps the input dimension.
func Scaler() *filter.CustomFilter {
	return &filter.CustomFilter{
		Init: func(prop *filter.Properties) (any, error) {
			st := parseScalerProperty(prop.CustomProperty)
			return &st, nil
		},
		Exit: func(private any, prop *filter.Properties) {},
		SetShapes: func(private any, prop *filter.Properties, in tensor.TensorsInfo) (tensor.TensorsInfo, error) {
			return scalerOutputShape(private.(*scalerState), in), nil
		},
		Invoke: func(private any, prop *filter.Properties, in, out []byte) error {
			return scale(private.(*scalerState), prop, in, out)
		},
	}
}

// AllocatingScaler is the module-allocates variant of Scaler: invoke
// allocates its own output buffer and transfers ownership to the caller.
func AllocatingScaler() *filter.CustomFilter {
	return &filter.CustomFilter{
		Init: func(prop *filter.Properties) (any, error) {
			st := parseScalerProperty(prop.CustomProperty)
			return &st, nil
		},
		Exit: func(private any, prop *filter.Properties) {},
		SetShapes: func(private any, prop *filter.Properties, in tensor.TensorsInfo) (tensor.TensorsInfo, error) {
			return scalerOutputShape(private.(*scalerState), in), nil
		},
		InvokeAllocate: func(private any, prop *filter.Properties, in []byte) ([]byte, error) {
			out := make([]byte, prop.OutputShape.ByteSize())
			if err := scale(private.(*scalerState), prop, in, out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// MisreportingAllocator returns a module-allocates module whose invoke
// returns a buffer padded by extra bytes beyond the negotiated output size,
// for SizeMismatch tests.
func MisreportingAllocator(extra int) *filter.CustomFilter {
	table := AllocatingScaler()
	inner := table.InvokeAllocate
	table.InvokeAllocate = func(private any, prop *filter.Properties, in []byte) ([]byte, error) {
		out, err := inner(private, prop, in)
		if err != nil {
			return nil, err
		}
		return append(out, make([]byte, extra)...), nil
	}
	return table
}

// FailingInvoke returns a static-mode module whose invoke always reports the
// given failure.
func FailingInvoke(shape tensor.TensorsInfo, err error) *filter.CustomFilter {
	table := StaticPassthrough(shape)
	table.Invoke = func(private any, prop *filter.Properties, in, out []byte) error {
		return err
	}
	return table
}
