package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decode results.
const (
	ResultOK      = "ok"
	ResultAbsent  = "absent"
	ResultInvalid = "invalid"
)

var (
	// Decoder metrics
	decodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timecode_decode_total",
		Help: "Binary timecode decode attempts by wire format and result",
	}, []string{"format", "result"})

	decodeBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timecode_decode_input_bytes",
		Help:    "Size of binary timecode payloads submitted for decoding",
		Buckets: []float64{1, 2, 4, 8, 17, 32, 64, 256, 1024},
	}, []string{"format"})

	// Conversion metrics
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timecode_conversions_total",
		Help: "Timecode conversions by kind and frame rate",
	}, []string{"kind", "frame_rate"})

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timecode_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timecode_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
	}, []string{"route", "method"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timecode_ratelimit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"backend"})

	// Health metrics
	healthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timecode_health_check_up",
		Help: "Result of the last health check (1 healthy, 0 otherwise)",
	}, []string{"check"})
)

// RecordDecode counts one decode attempt of size bytes.
func RecordDecode(format, result string, size int) {
	decodeTotal.WithLabelValues(format, result).Inc()
	decodeBytes.WithLabelValues(format).Observe(float64(size))
}

// RecordConversion counts a conversion such as "frames" or "duration".
func RecordConversion(kind, frameRate string) {
	conversionsTotal.WithLabelValues(kind, frameRate).Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(route, method, status).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// IncrementRateLimited counts a request rejected by backend.
func IncrementRateLimited(backend string) {
	rateLimitedTotal.WithLabelValues(backend).Inc()
}

// SetHealthCheck publishes the latest result of a named health check.
func SetHealthCheck(check string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	healthCheckStatus.WithLabelValues(check).Set(v)
}
