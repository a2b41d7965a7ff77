// Package metrics defines the Prometheus collectors for storage
// I/O, ingestion, word-bank rebuilds and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interviewstats"

var registry = prometheus.NewRegistry()

var (
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Key-value store operations by key and outcome",
		},
		[]string{"op", "key", "status"},
	)

	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of key-value store operations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	CorruptBlobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrupt_blobs_total",
			Help:      "Persisted blobs that failed to decode and were treated as empty",
		},
		[]string{"key"},
	)

	SessionsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ingested_total",
			Help:      "Sessions appended to the collection by source",
		},
		[]string{"source"},
	)

	Sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions in the collection at the last load or save",
		},
	)

	WordBankRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wordbank_rebuilds_total",
			Help:      "Word bank rebuilds by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	WordBankTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wordbank_tokens",
			Help:      "Distinct tokens in the current word bank",
		},
	)

	InboxFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_files_total",
			Help:      "Inbox files processed by outcome",
		},
		[]string{"result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method and status code",
		},
		[]string{"method", "code"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		StoreOps,
		StoreLatency,
		CorruptBlobs,
		SessionsIngested,
		Sessions,
		WordBankRebuilds,
		WordBankTokens,
		InboxFiles,
		HTTPRequests,
		HTTPLatency,
	)
}

// Registry returns the registry every collector is registered on.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus exposition
// format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          registry,
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStoreOp starts timing a store operation. The returned
// func records the outcome.
func ObserveStoreOp(op, key string) func(error) {
	start := time.Now()
	return func(err error) {
		StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		StoreOps.WithLabelValues(op, key, status(err)).Inc()
	}
}

// RecordCorruptBlob counts a blob that failed to decode.
func RecordCorruptBlob(key string) {
	CorruptBlobs.WithLabelValues(key).Inc()
}

// RecordIngested counts n sessions appended from source.
func RecordIngested(source string, n int) {
	SessionsIngested.WithLabelValues(source).Add(float64(n))
}

// SetSessions records the collection size.
func SetSessions(n int) {
	Sessions.Set(float64(n))
}

// RecordRebuild counts a word bank rebuild and, on success,
// records the resulting token count.
func RecordRebuild(trigger string, tokens int, err error) {
	WordBankRebuilds.WithLabelValues(trigger, status(err)).Inc()
	if err == nil {
		WordBankTokens.Set(float64(tokens))
	}
}

// SetWordBankTokens records the size of the loaded word bank.
func SetWordBankTokens(n int) {
	WordBankTokens.Set(float64(n))
}

// RecordInboxFile counts one processed inbox file.
func RecordInboxFile(result string) {
	InboxFiles.WithLabelValues(result).Inc()
}

// RecordHTTP counts one API request.
func RecordHTTP(method string, code int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	HTTPLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}
