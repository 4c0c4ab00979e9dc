package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	requestsTotal          *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	transitionsTotal       *prometheus.CounterVec
	qrScansTotal           *prometheus.CounterVec
	notificationsTotal     *prometheus.CounterVec
	scanFeedClientsActive  prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outpass_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outpass_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outpass_transitions_total",
			Help: "Total number of outpass state transitions committed.",
		}, []string{"action"})

		qrScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outpass_qr_scans_total",
			Help: "Total number of QR scan attempts by outcome.",
		}, []string{"outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outpass_notifications_total",
			Help: "Total number of parent notifications dispatched by result.",
		}, []string{"result"})

		scanFeedClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outpass_scan_feed_clients_active",
			Help: "Number of websocket clients subscribed to the live scan feed.",
		})

		prometheus.MustRegister(requestsTotal, requestLatencySeconds, transitionsTotal, qrScansTotal, notificationsTotal, scanFeedClientsActive)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// Transitions exposes the counter for committed outpass transitions.
func Transitions() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionsTotal
}

// QRScans exposes the counter for QR scan attempts.
func QRScans() *prometheus.CounterVec {
	RegisterMetrics()
	return qrScansTotal
}

// Notifications exposes the counter for dispatched notifications.
func Notifications() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// ScanFeedClients exposes the gauge for active scan feed subscribers.
func ScanFeedClients() prometheus.Gauge {
	RegisterMetrics()
	return scanFeedClientsActive
}
