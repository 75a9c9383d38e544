package supervisor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsCollector_StateTransitions(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.StateTransition(StateStopped, StateStarting)
	pmc.StateTransition(StateStarting, StateRunning)

	expected := `
		# HELP test_supervisor_state_transitions_total Total number of service state transitions
		# TYPE test_supervisor_state_transitions_total counter
		test_supervisor_state_transitions_total{from_state="Starting",to_state="Running"} 1
		test_supervisor_state_transitions_total{from_state="Stopped",to_state="Starting"} 1
	`
	err := testutil.GatherAndCompare(pmc.Registry(), strings.NewReader(expected), "test_supervisor_state_transitions_total")
	assert.NoError(t, err)

	expectedState := `
		# HELP test_supervisor_state Current service state (1 for the active state)
		# TYPE test_supervisor_state gauge
		test_supervisor_state{state="Running"} 1
		test_supervisor_state{state="Starting"} 0
		test_supervisor_state{state="Stopped"} 0
	`
	err = testutil.GatherAndCompare(pmc.Registry(), strings.NewReader(expectedState), "test_supervisor_state")
	assert.NoError(t, err)
}

func TestPrometheusMetricsCollector_Durations(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.StartDuration(time.Second, nil)
	pmc.StartDuration(2*time.Second, errors.New("timeout"))
	pmc.StopDuration(100*time.Millisecond, false)
	pmc.StopDuration(5*time.Second, true)

	count, err := testutil.GatherAndCount(pmc.Registry(), "test_supervisor_start_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(pmc.Registry(), "test_supervisor_stop_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPrometheusMetricsCollector_ErrorsAndRestarts(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("")

	pmc.Restart()
	pmc.Restart()
	pmc.ProcessError("PROCESS_START_TIMEOUT")
	pmc.HealthCheck(HealthHealthy, 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(pmc.restarts))
	assert.Equal(t, float64(1), testutil.ToFloat64(pmc.errors.WithLabelValues("PROCESS_START_TIMEOUT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pmc.healthChecks.WithLabelValues("healthy")))

	count, err := testutil.GatherAndCount(pmc.Registry(), "swaggermcp_supervisor_restarts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNoopMetricsCollector(t *testing.T) {
	mc := NewNoopMetricsCollector()
	assert.NotPanics(t, func() {
		mc.StateTransition(StateStopped, StateStarting)
		mc.StartDuration(time.Second, nil)
		mc.StopDuration(time.Second, true)
		mc.ProcessError("x")
		mc.Restart()
		mc.HealthCheck(HealthStopped, 0)
	})
}
