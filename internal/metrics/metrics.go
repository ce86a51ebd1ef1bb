// Package metrics provides Prometheus instrumentation for the PartyLink
// backend. It exposes counters and histograms for the recommendation engine,
// a gauge for realtime gateway connections, and a counter for API traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecommendationRequests counts recommendation calls, labeled by kind
	// ("events" or "people") and outcome ("ok", "empty", or "degraded" when
	// a data fetch failed and the call fell back to an empty result).
	RecommendationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partylink_recommendation_requests_total",
		Help: "Total number of recommendation requests",
	}, []string{"kind", "outcome"})

	// RecommendationLatency records end-to-end recommendation computation
	// latency in seconds, labeled by kind.
	RecommendationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partylink_recommendation_latency_seconds",
		Help:    "Recommendation computation latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"kind"})

	// CandidatePoolSize records how many candidates each recommendation
	// call scored, labeled by kind.
	CandidatePoolSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partylink_recommendation_candidates",
		Help:    "Number of candidates scored per recommendation request",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"kind"})

	// GatewayConnections tracks the current number of realtime gateway
	// WebSocket connections.
	GatewayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "partylink_gateway_connections",
		Help: "Current number of active gateway WebSocket connections",
	})

	// APIRequests counts HTTP API requests, labeled by route pattern and
	// status code.
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partylink_api_requests_total",
		Help: "Total number of HTTP API requests",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(
		RecommendationRequests,
		RecommendationLatency,
		CandidatePoolSize,
		GatewayConnections,
		APIRequests,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
