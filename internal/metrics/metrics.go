package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "evangeline"

var (
	// Gateway
	GatewayConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_connects_total",
		Help:      "Gateway dial attempts by result (ok, error, rejected).",
	}, []string{"result"})
	GatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_events_total",
		Help:      "Events emitted by the gateway connection, by kind.",
	}, []string{"kind"})
	GatewayOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_open",
		Help:      "Number of gateway sessions currently open.",
	})
	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_heartbeats_sent_total",
		Help:      "PING frames written to the gateway.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_malformed_frames_total",
		Help:      "Inbound frames dropped because they could not be decoded.",
	})

	// REST / CDN
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "REST and CDN requests by route and status class.",
	}, []string{"route", "status"})
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "REST and CDN request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// Archive
	ArchiveRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_rows_written_total",
		Help:      "Messages inserted into the archive.",
	})
	ArchiveConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_conflicts_total",
		Help:      "Messages skipped because they were already archived.",
	})
	ArchiveFlushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_flush_errors_total",
		Help:      "Batch inserts that failed.",
	})
	ArchiveQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "archive_queue_depth",
		Help:      "Messages waiting to be batched.",
	})
)

// StatusClass buckets an HTTP status code as "2xx", "4xx", ... or "error" for transport failures.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
