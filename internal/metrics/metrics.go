// Package metrics holds the Prometheus collectors for the synchronizer and
// the read API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync cycle outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeFetchError     = "fetch_error"
	OutcomeReconcileError = "reconcile_error"
)

var (
	// Sync metrics
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lnsync_sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"outcome"},
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lnsync_sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SyncFetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lnsync_sync_fetch_attempts_total",
			Help: "Total number of source fetch attempts by result",
		},
		[]string{"result"},
	)

	SyncNodesFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lnsync_sync_nodes_fetched",
			Help: "Number of node records returned by the last successful fetch",
		},
	)

	SyncRowsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lnsync_sync_rows_upserted_total",
			Help: "Total number of node rows inserted or updated",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lnsync_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync cycle",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lnsync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lnsync_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lnsync_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)
)

// RecordSyncCycle records the outcome of one sync cycle.
func RecordSyncCycle(outcome string, duration time.Duration, fetched int) {
	SyncCyclesTotal.WithLabelValues(outcome).Inc()
	SyncCycleDuration.Observe(duration.Seconds())
	if outcome != OutcomeFetchError {
		SyncNodesFetched.Set(float64(fetched))
	}
	if outcome == OutcomeSuccess {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordRowsUpserted adds the number of rows written by one upsert.
func RecordRowsUpserted(rows int64) {
	SyncRowsUpserted.Add(float64(rows))
}

// RecordFetchAttempt records a single source fetch attempt.
func RecordFetchAttempt(err error) {
	if err != nil {
		SyncFetchAttempts.WithLabelValues("error").Inc()
		return
	}
	SyncFetchAttempts.WithLabelValues("success").Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
