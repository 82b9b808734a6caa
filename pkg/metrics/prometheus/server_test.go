package prometheus

import (
	"testing"
	"time"

	"github.com/marmos91/cntfs/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*serverMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, ok := NewServerMetricsWith(reg).(*serverMetrics)
	require.True(t, ok)
	return m, reg
}

func TestNewServerMetricsDisabled(t *testing.T) {
	assert.Nil(t, NewServerMetrics())
}

func TestConnectionMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordConnectionAccepted()
	m.RecordConnectionAccepted()
	m.RecordConnectionClosed()
	m.RecordConnectionForceClosed()
	m.SetActiveConnections(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsForceClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsActive))
}

func TestCommandMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordCommand("upload", 200, 10*time.Millisecond)
	m.RecordCommand("upload", 409, time.Millisecond)
	m.RecordCommand("move", 403, time.Microsecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("upload", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("upload", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("move", "403")))

	n, err := testutil.GatherAndCount(reg, "cntfs_command_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAuthenticationMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordAuthentication("registered")
	m.RecordAuthentication("rejected")
	m.RecordAuthentication("rejected")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authTotal.WithLabelValues("registered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.authTotal.WithLabelValues("rejected")))
}

func TestTransferMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)
	start := time.Now()

	m.RecordTransfer(stats.NewTransfer("alice", stats.Upload, 5, start, start.Add(time.Second), time.Millisecond))
	m.RecordTransfer(stats.NewTransfer("bob", stats.Upload, 10, start, start.Add(time.Second), 0))
	m.RecordTransfer(stats.NewTransfer("alice", stats.Download, 5, start, start.Add(time.Second), 0))

	assert.Equal(t, 15.0, testutil.ToFloat64(m.transferBytes.WithLabelValues("upload")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("download")))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *serverMetrics
	assert.NotPanics(t, func() {
		m.RecordConnectionAccepted()
		m.RecordConnectionClosed()
		m.RecordConnectionForceClosed()
		m.SetActiveConnections(3)
		m.RecordCommand("dir", 200, time.Second)
		m.RecordAuthentication("verified")
		m.RecordTransfer(stats.Transfer{})
	})
}
