package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	linkLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubelink",
			Subsystem: "link",
			Name:      "lines_total",
			Help:      "Inbound lines by outcome (decoded, discarded, overflow).",
		},
		[]string{"outcome"},
	)
	linkSessionEnds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubelink",
			Subsystem: "link",
			Name:      "session_ends_total",
			Help:      "Read loop terminations by cause.",
		},
		[]string{"cause"},
	)
	linkOutbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubelink",
			Subsystem: "link",
			Name:      "outbound_messages_total",
			Help:      "Messages written to the master controller.",
		},
		[]string{"method", "success"},
	)
	dispatchInbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubelink",
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Inbound messages by method and handling result.",
		},
		[]string{"method", "result"},
	)
	fleetUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubelink",
			Subsystem: "fleet",
			Name:      "status_updates_total",
			Help:      "Wall status writes by reported delivery status.",
		},
		[]string{"wall", "status"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubelink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cubelink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			linkLines,
			linkSessionEnds,
			linkOutbound,
			dispatchInbound,
			fleetUpdates,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordLinkLines(outcome string, n uint64) {
	RegisterMetrics()
	linkLines.WithLabelValues(outcome).Add(float64(n))
}

func RecordSessionEnd(cause string) {
	RegisterMetrics()
	linkSessionEnds.WithLabelValues(cause).Inc()
}

func RecordOutbound(method string, success bool) {
	RegisterMetrics()
	linkOutbound.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

// UnknownMethodLabel replaces the method label for unregistered inbound
// methods; names read off the wire are unbounded.
const UnknownMethodLabel = "_unknown"

// RecordDispatch counts one inbound message. result is handled, failed,
// unknown or panic.
func RecordDispatch(method, result string) {
	RegisterMetrics()
	if result == "unknown" {
		method = UnknownMethodLabel
	}
	dispatchInbound.WithLabelValues(method, result).Inc()
}

func RecordFleetUpdate(wall int, status string) {
	RegisterMetrics()
	fleetUpdates.WithLabelValues(strconv.Itoa(wall), status).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
