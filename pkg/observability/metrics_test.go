package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersEverything(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	require.NotNil(t, m.ModuleLoadsTotal)
	require.NotNil(t, m.OpenHandles)
	require.NotNil(t, m.NegotiationsTotal)
	require.NotNil(t, m.InvocationsTotal)
	require.NotNil(t, m.InvocationDuration)
	require.NotNil(t, m.OutputBytes)
	require.NotNil(t, m.ContractViolationsTotal)
	require.NotNil(t, m.SizeMismatchesTotal)

	// Registering twice on the same registry must panic (already registered).
	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestObserveInvocation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveInvocation("host-allocates", "success", 2*time.Millisecond, 1024)
	m.ObserveInvocation("host-allocates", "success", 3*time.Millisecond, 1024)
	m.ObserveInvocation("module-allocates", "error", time.Millisecond, 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("host-allocates", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("module-allocates", "error")))

	// The failed invocation produced no output, so only the host-allocates
	// size series exists.
	assert.Equal(t, 1, testutil.CollectAndCount(m.OutputBytes, "tensorplug_output_bytes"))
}

func TestHandler_ServesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.ModuleLoadsTotal.WithLabelValues("success").Inc()
	m.OpenHandles.Set(3)

	server := httptest.NewServer(Handler(registry))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tensorplug_module_loads_total{result="success"} 1`)
	assert.Contains(t, string(body), "tensorplug_open_handles 3")
}
