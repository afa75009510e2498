package filter_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplug/tensorplug/pkg/filter"
	"github.com/tensorplug/tensorplug/pkg/filter/filtertest"
	"github.com/tensorplug/tensorplug/pkg/tensor"
)

func TestRun_BeforeNegotiation(t *testing.T) {
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Run(make([]byte, 640*480*3))
	assert.ErrorIs(t, err, filter.ErrNotNegotiated)
}

func TestRun_HostAllocates_ScalesBuffer(t *testing.T) {
	prop := &filter.Properties{CustomProperty: "320x240"}
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), prop)
	require.NoError(t, err)
	defer h.Close()

	in := mustShape(t, tensor.ElementTypeUint8, 3, 640, 480, 1)
	_, err = h.NegotiateOutput(in)
	require.NoError(t, err)

	out, err := h.Run(make([]byte, 640*480*3))
	require.NoError(t, err)

	assert.Equal(t, filter.HostAllocates, out.Ownership)
	assert.Len(t, out.Buffer, 320*240*3)
}

func TestRun_NearestNeighborContent(t *testing.T) {
	// One channel, 4x4 -> 2x2: output (x, y) samples input (2x, 2y).
	prop := &filter.Properties{CustomProperty: "2x2"}
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), prop)
	require.NoError(t, err)
	defer h.Close()

	in := mustShape(t, tensor.ElementTypeUint8, 1, 4, 4, 1)
	_, err = h.NegotiateOutput(in)
	require.NoError(t, err)

	input := []byte{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
		30, 31, 32, 33,
	}
	out, err := h.Run(input)
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 2, 20, 22}, out.Buffer)
}

func TestRun_InputSizeValidated(t *testing.T) {
	prop := &filter.Properties{CustomProperty: "320x240"}
	h, err := openModule(t, "/plugins/scaler.so", filtertest.Scaler(), prop)
	require.NoError(t, err)
	defer h.Close()

	in := mustShape(t, tensor.ElementTypeUint8, 3, 640, 480, 1)
	_, err = h.NegotiateOutput(in)
	require.NoError(t, err)

	_, err = h.Run(make([]byte, 100))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, filter.ErrNotNegotiated)
}

func TestRun_ModuleAllocates(t *testing.T) {
	prop := &filter.Properties{CustomProperty: "320x240"}
	h, err := openModule(t, "/plugins/allocscaler.so", filtertest.AllocatingScaler(), prop)
	require.NoError(t, err)
	defer h.Close()

	in := mustShape(t, tensor.ElementTypeUint8, 3, 640, 480, 1)
	_, err = h.NegotiateOutput(in)
	require.NoError(t, err)

	out, err := h.Run(make([]byte, 640*480*3))
	require.NoError(t, err)

	assert.Equal(t, filter.ModuleAllocates, out.Ownership)
	assert.Len(t, out.Buffer, 320*240*3)
}

func TestRun_SizeMismatch(t *testing.T) {
	prop := &filter.Properties{CustomProperty: "320x240"}
	h, err := openModule(t, "/plugins/misreport.so", filtertest.MisreportingAllocator(7), prop)
	require.NoError(t, err)
	defer h.Close()

	in := mustShape(t, tensor.ElementTypeUint8, 3, 640, 480, 1)
	_, err = h.NegotiateOutput(in)
	require.NoError(t, err)

	_, err = h.Run(make([]byte, 640*480*3))

	var mismatch *filter.SizeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint64(320*240*3), mismatch.Want)
	assert.Equal(t, uint64(320*240*3+7), mismatch.Got)
}

func TestRun_InvocationError(t *testing.T) {
	declared := mustShape(t, tensor.ElementTypeUint8, 3, 160, 120, 1)
	moduleErr := errors.New("inference engine unavailable")
	h, err := openModule(t, "/plugins/failing.so", filtertest.FailingInvoke(declared, moduleErr), nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.OutputShape()
	require.NoError(t, err)

	_, err = h.Run(make([]byte, declared.ByteSize()))

	var invErr *filter.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, err, moduleErr)
}

func TestRun_StaticPassthroughCopies(t *testing.T) {
	declared := mustShape(t, tensor.ElementTypeUint8, 2, 2, 1, 1)
	h, err := openModule(t, "/plugins/pass.so", filtertest.StaticPassthrough(declared), nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.OutputShape()
	require.NoError(t, err)

	input := []byte{9, 8, 7, 6}
	out, err := h.Run(input)
	require.NoError(t, err)

	assert.Equal(t, input, out.Buffer)
	assert.NotSame(t, &input[0], &out.Buffer[0], "in-place transformation is disallowed")
}

func TestRun_ContinuesAfterInvocationError(t *testing.T) {
	declared := mustShape(t, tensor.ElementTypeUint8, 2, 2, 1, 1)
	table := filtertest.StaticPassthrough(declared)
	fail := true
	table.Invoke = func(private any, prop *filter.Properties, in, out []byte) error {
		if fail {
			return errors.New("transient module failure")
		}
		copy(out, in)
		return nil
	}

	h, err := openModule(t, "/plugins/flaky.so", table, nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.OutputShape()
	require.NoError(t, err)

	_, err = h.Run([]byte{1, 2, 3, 4})
	var invErr *filter.InvocationError
	require.ErrorAs(t, err, &invErr)

	fail = false
	out, err := h.Run([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Buffer)
}
