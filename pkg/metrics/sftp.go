package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SFTPMetrics provides observability for the SFTP adapter.
//
// The interface is optional: passing nil to the adapter yields a no-op
// implementation, so instrumented code never has to branch on whether
// metrics are enabled.
type SFTPMetrics interface {
	// RecordRequest records a completed request with its type name,
	// duration, and outcome.
	RecordRequest(requestType string, duration time.Duration, err error)

	// RecordBytesTransferred records payload bytes moved through READ or
	// WRITE requests. Direction is "read" or "write".
	RecordBytesTransferred(direction string, bytes int64)

	// SetActiveConnections updates the current connection gauge.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordSessionNegotiated records the protocol version agreed with a
	// client at INIT time.
	RecordSessionNegotiated(version uint32)
}

type sftpMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	bytesTransferred   *prometheus.CounterVec
	activeConnections  prometheus.Gauge
	connectionsOpened  prometheus.Counter
	connectionsClosed  prometheus.Counter
	sessionsNegotiated *prometheus.CounterVec
}

// NewSFTPMetrics creates a Prometheus-backed SFTPMetrics instance, or a
// no-op one when the registry was never initialized.
func NewSFTPMetrics() SFTPMetrics {
	if !IsEnabled() {
		return &NoopSFTPMetrics{}
	}

	reg := GetRegistry()

	return &sftpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpserver_requests_total",
				Help: "Total number of SFTP requests by type and status",
			},
			[]string{"type", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sftpserver_request_duration_seconds",
				Help:    "Duration of SFTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"type"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpserver_bytes_transferred_total",
				Help: "Total payload bytes moved through READ and WRITE requests",
			},
			[]string{"direction"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "sftpserver_active_connections",
				Help: "Current number of active SFTP connections",
			},
		),
		connectionsOpened: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sftpserver_connections_accepted_total",
				Help: "Total number of SFTP connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sftpserver_connections_closed_total",
				Help: "Total number of SFTP connections closed",
			},
		),
		sessionsNegotiated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpserver_sessions_negotiated_total",
				Help: "Total number of sessions by negotiated protocol version",
			},
			[]string{"version"},
		),
	}
}

func (m *sftpMetrics) RecordRequest(requestType string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(requestType, status).Inc()
	m.requestDuration.WithLabelValues(requestType).Observe(duration.Seconds())
}

func (m *sftpMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *sftpMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *sftpMetrics) RecordConnectionAccepted() {
	m.connectionsOpened.Inc()
}

func (m *sftpMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *sftpMetrics) RecordSessionNegotiated(version uint32) {
	m.sessionsNegotiated.WithLabelValues(versionLabel(version)).Inc()
}

func versionLabel(version uint32) string {
	switch version {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	default:
		return "other"
	}
}

// NoopSFTPMetrics is a zero-overhead SFTPMetrics implementation.
type NoopSFTPMetrics struct{}

func (NoopSFTPMetrics) RecordRequest(requestType string, duration time.Duration, err error) {}
func (NoopSFTPMetrics) RecordBytesTransferred(direction string, bytes int64)                {}
func (NoopSFTPMetrics) SetActiveConnections(count int32)                                    {}
func (NoopSFTPMetrics) RecordConnectionAccepted()                                           {}
func (NoopSFTPMetrics) RecordConnectionClosed()                                             {}
func (NoopSFTPMetrics) RecordSessionNegotiated(version uint32)                              {}
