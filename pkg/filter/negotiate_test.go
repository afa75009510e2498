package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplug/tensorplug/pkg/filter"
	"github.com/tensorplug/tensorplug/pkg/filter/filtertest"
	"github.com/tensorplug/tensorplug/pkg/tensor"
)

func TestStaticShapes_RoundTrip(t *testing.T) {
	declared := mustShape(t, tensor.ElementTypeUint8, 3, 160, 120, 1)
	h, err := openModule(t, "/plugins/static.so", filtertest.StaticPassthrough(declared), nil)
	require.NoError(t, err)
	defer h.Close()

	// Declared shapes are fixed: every call returns the same values.
	for i := 0; i < 3; i++ {
		in, err := h.InputShape()
		require.NoError(t, err)
		assert.True(t, declared.Equal(in))

		out, err := h.OutputShape()
		require.NoError(t, err)
		assert.True(t, declared.Equal(out))
	}

	assert.True(t, h.Negotiated())
	assert.True(t, declared.Equal(h.NegotiatedOutputShape()))
}

func TestStaticModule_RejectsNegotiateOutput(t *testing.T) {
	declared := mustShape(t, tensor.ElementTypeUint8, 3, 160, 120, 1)
	h, err := openModule(t, "/plugins/static.so", filtertest.StaticPassthrough(declared), nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.NegotiateOutput(declared)

	var unsupported *filter.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "NegotiateOutput", unsupported.Op)
	assert.Equal(t, filter.DiscoveryStatic, unsupported.Mode)
}

func TestDynamicModule_RejectsStaticAccessors(t *testing.T) {
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.InputShape()
	var unsupported *filter.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, filter.DiscoveryDynamic, unsupported.Mode)

	_, err = h.OutputShape()
	require.ErrorAs(t, err, &unsupported)
}

func TestNegotiateOutput_HalvesDimensions(t *testing.T) {
	prop := &filter.Properties{CustomProperty: "320x240"}
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), prop)
	require.NoError(t, err)
	defer h.Close()

	in := mustShape(t, tensor.ElementTypeUint8, 3, 640, 480, 1)
	out, err := h.NegotiateOutput(in)
	require.NoError(t, err)

	want := mustShape(t, tensor.ElementTypeUint8, 3, 320, 240, 1)
	assert.True(t, want.Equal(out), "got %s", out)
	assert.True(t, h.Negotiated())
	assert.True(t, want.Equal(h.NegotiatedOutputShape()))
}

func TestNegotiateOutput_KeepsDimensionsWithoutProperty(t *testing.T) {
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), nil)
	require.NoError(t, err)
	defer h.Close()

	in := mustShape(t, tensor.ElementTypeUint8, 3, 640, 480, 1)
	out, err := h.NegotiateOutput(in)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

func TestNegotiateOutput_Repeatable(t *testing.T) {
	// The host may probe different input shapes during negotiation; the last
	// successful call wins.
	prop := &filter.Properties{CustomProperty: "320x240"}
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), prop)
	require.NoError(t, err)
	defer h.Close()

	first := mustShape(t, tensor.ElementTypeUint8, 3, 640, 480, 1)
	_, err = h.NegotiateOutput(first)
	require.NoError(t, err)

	second := mustShape(t, tensor.ElementTypeUint8, 3, 1280, 960, 1)
	out, err := h.NegotiateOutput(second)
	require.NoError(t, err)

	want := mustShape(t, tensor.ElementTypeUint8, 3, 320, 240, 1)
	assert.True(t, want.Equal(out))
	assert.True(t, want.Equal(h.NegotiatedOutputShape()))
}

func TestNegotiateOutput_RejectsInvalidInput(t *testing.T) {
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.NegotiateOutput(tensor.TensorsInfo{})
	assert.Error(t, err)
	assert.False(t, h.Negotiated())
}
