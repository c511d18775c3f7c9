// Package metrics holds the Prometheus collectors for the gateway.
//
// Collectors register on the default registry at init and are exposed by
// Handler at GET /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UpstreamRequests counts requests to the site and player hosts by kind
// (list, search, page, playlist, player, master) and result status.
var UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uakino_upstream_requests_total",
	Help: "Upstream requests by kind and status (HTTP code or \"error\").",
}, []string{"kind", "status"})

// UpstreamDuration tracks upstream latency by kind.
var UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "uakino_upstream_request_duration_seconds",
	Help:    "Upstream request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"kind"})

// SearchCache counts search cache lookups by result (hit, miss, expired).
var SearchCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uakino_search_cache_lookups_total",
	Help: "Search cache lookups by result.",
}, []string{"result"})

// StreamsResolved counts player pages by outcome (ok, no_variant, error).
var StreamsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uakino_streams_resolved_total",
	Help: "Player pages resolved to an HLS variant, by outcome.",
}, []string{"outcome"})

// HTTPRequests counts addon requests by route and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uakino_http_requests_total",
	Help: "Addon HTTP requests handled.",
}, []string{"route", "status"})

// HTTPDuration tracks addon request latency by route.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "uakino_http_request_duration_seconds",
	Help:    "Addon HTTP request latency in seconds.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
}, []string{"route"})

// ObserveUpstream records one upstream call. code 0 means a transport error.
func ObserveUpstream(kind string, code int, start time.Time) {
	status := "error"
	if code > 0 {
		status = strconv.Itoa(code)
	}
	UpstreamRequests.WithLabelValues(kind, status).Inc()
	UpstreamDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one addon request. route must be a templated path.
func ObserveHTTP(route string, code int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(dur.Seconds())
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
