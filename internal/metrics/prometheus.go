// Package metrics provides Prometheus metrics for the bidder host
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auction metrics
	AuctionsTotal   *prometheus.CounterVec
	AuctionDuration prometheus.Histogram
	BidsReceived    *prometheus.CounterVec
	BidCPM          *prometheus.HistogramVec

	// Bidder metrics, labelled by the HTTP method of the call
	BidderRequests *prometheus.CounterVec
	BidderLatency  *prometheus.HistogramVec
	BidderErrors   *prometheus.CounterVec
	BidderTimeouts *prometheus.CounterVec

	// Outstream and sync metrics
	RenderersAttached *prometheus.CounterVec
	UserSyncs         *prometheus.CounterVec

	// Privacy metrics
	ConsentSignals *prometheus.CounterVec
}

// NewMetrics creates metrics registered on their own registry, so several
// instances can coexist in one process
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "hubvisor"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		AuctionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auctions_total",
				Help:      "Total number of auctions",
			},
			[]string{"status"},
		),
		AuctionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auction_duration_seconds",
				Help:      "Auction duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, .75, 1, 1.5, 2},
			},
		),
		BidsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bids_received_total",
				Help:      "Total number of bids received",
			},
			[]string{"bidder", "media_type"},
		),
		BidCPM: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bid_cpm",
				Help:      "Bid CPM distribution",
				Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 20, 50},
			},
			[]string{"bidder", "media_type"},
		),

		BidderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bidder_requests_total",
				Help:      "Total requests sent to bidders",
			},
			[]string{"bidder", "call"},
		),
		BidderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bidder_latency_seconds",
				Help:      "Bidder response latency in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .2, .3, .5, .75, 1},
			},
			[]string{"bidder", "call"},
		),
		BidderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bidder_errors_total",
				Help:      "Total bidder errors",
			},
			[]string{"bidder", "kind"},
		),
		BidderTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bidder_timeouts_total",
				Help:      "Total bidder calls that timed out",
			},
			[]string{"bidder", "call"},
		),

		RenderersAttached: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outstream_renderers_total",
				Help:      "Outstream renderers attached to video bids",
			},
			[]string{"bidder"},
		),
		UserSyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "user_syncs_total",
				Help:      "User sync directives returned to pages",
			},
			[]string{"bidder", "type"},
		),

		ConsentSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consent_signals_total",
				Help:      "Consent signals seen on auction requests",
			},
			[]string{"type", "has_consent"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.AuctionsTotal,
		m.AuctionDuration,
		m.BidsReceived,
		m.BidCPM,
		m.BidderRequests,
		m.BidderLatency,
		m.BidderErrors,
		m.BidderTimeouts,
		m.RenderersAttached,
		m.UserSyncs,
		m.ConsentSignals,
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordAuction records auction metrics
func (m *Metrics) RecordAuction(status string, duration time.Duration) {
	m.AuctionsTotal.WithLabelValues(status).Inc()
	m.AuctionDuration.Observe(duration.Seconds())
}

// RecordBid records a bid received from a bidder
func (m *Metrics) RecordBid(bidder, mediaType string, cpm float64) {
	m.BidsReceived.WithLabelValues(bidder, mediaType).Inc()
	m.BidCPM.WithLabelValues(bidder, mediaType).Observe(cpm)
}

// RecordBidderRequest records one call to a bidder
func (m *Metrics) RecordBidderRequest(bidder, call string, latency time.Duration, hasError, timedOut bool) {
	m.BidderRequests.WithLabelValues(bidder, call).Inc()
	m.BidderLatency.WithLabelValues(bidder, call).Observe(latency.Seconds())

	if hasError {
		m.BidderErrors.WithLabelValues(bidder, call).Inc()
	}
	if timedOut {
		m.BidderTimeouts.WithLabelValues(bidder, call).Inc()
	}
}

// RecordBidderError records an adapter error that is not tied to one call
func (m *Metrics) RecordBidderError(bidder, kind string) {
	m.BidderErrors.WithLabelValues(bidder, kind).Inc()
}

// RecordRenderer records an outstream renderer attached to a bid
func (m *Metrics) RecordRenderer(bidder string) {
	m.RenderersAttached.WithLabelValues(bidder).Inc()
}

// RecordUserSync records a sync directive handed to the page
func (m *Metrics) RecordUserSync(bidder, syncType string) {
	m.UserSyncs.WithLabelValues(bidder, syncType).Inc()
}

// RecordConsentSignal records a consent signal
func (m *Metrics) RecordConsentSignal(signalType string, hasConsent bool) {
	consent := "no"
	if hasConsent {
		consent = "yes"
	}
	m.ConsentSignals.WithLabelValues(signalType, consent).Inc()
}
