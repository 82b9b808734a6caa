package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/cntfs/pkg/metrics"
	"github.com/marmos91/cntfs/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	connectionsActive      prometheus.Gauge

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	authTotal *prometheus.CounterVec

	transferBytes    *prometheus.CounterVec
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	transferLatency  *prometheus.HistogramVec
}

// NewServerMetrics creates server metrics on the global registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewServerMetricsWith(metrics.GetRegistry())
}

// NewServerMetricsWith registers server metrics on reg. Registering twice on
// the same registry panics, as promauto does.
func NewServerMetricsWith(reg prometheus.Registerer) metrics.ServerMetrics {
	f := promauto.With(reg)

	return &serverMetrics{
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "cntfs_connections_accepted_total",
			Help: "Total number of accepted client connections",
		}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "cntfs_connections_closed_total",
			Help: "Total number of client connections that ended",
		}),
		connectionsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "cntfs_connections_force_closed_total",
			Help: "Total number of connections force-closed at shutdown",
		}),
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "cntfs_connections_active",
			Help: "Number of currently open client connections",
		}),
		commandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cntfs_commands_total",
				Help: "Total number of handled requests by command and response code",
			},
			[]string{"command", "code"},
		),
		commandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "cntfs_command_duration_seconds",
				Help: "Time spent handling a request, payload transfer included",
				Buckets: []float64{
					0.0005, // 500us - dir on a small tree, move
					0.001,
					0.005,
					0.01,
					0.05,
					0.1,
					0.5,
					1, // 1s - multi-megabyte transfers
					5,
					30,
				},
			},
			[]string{"command"},
		),
		authTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cntfs_authentications_total",
				Help: "Total number of connect attempts by outcome",
			},
			[]string{"outcome"},
		),
		transferBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cntfs_transfer_bytes_total",
				Help: "Total payload bytes transferred by direction",
			},
			[]string{"direction"},
		),
		transfersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cntfs_transfers_total",
				Help: "Total number of completed transfers by direction",
			},
			[]string{"direction"},
		),
		transferDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cntfs_transfer_duration_seconds",
				Help:    "Payload transfer duration by direction",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"direction"},
		),
		transferLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cntfs_transfer_latency_seconds",
				Help:    "Time between the go-ahead and the first payload byte",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"direction"},
		),
	}
}

func (m *serverMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *serverMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(count))
}

func (m *serverMetrics) RecordCommand(command string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, strconv.Itoa(code)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func (m *serverMetrics) RecordAuthentication(outcome string) {
	if m == nil {
		return
	}
	m.authTotal.WithLabelValues(outcome).Inc()
}

func (m *serverMetrics) RecordTransfer(t stats.Transfer) {
	if m == nil {
		return
	}
	dir := string(t.Direction)
	m.transfersTotal.WithLabelValues(dir).Inc()
	m.transferBytes.WithLabelValues(dir).Add(float64(t.Size))
	m.transferDuration.WithLabelValues(dir).Observe(t.DurationSecs)
	m.transferLatency.WithLabelValues(dir).Observe(t.LatencySecs)
}
