// package metrics exposes Prometheus instrumentation for the proxy.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics manages the Prometheus collectors. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPLatency      *prometheus.HistogramVec
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	TokenRefreshes   *prometheus.CounterVec
	ArtistCache      *prometheus.CounterVec
	RateLimitHits    *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotify_feature_http_requests_total",
				Help: "Total number of handled HTTP requests.",
			},
			[]string{"route", "code"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spotify_feature_http_request_duration_seconds",
				Help:    "Latency of handled HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ProviderRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotify_feature_provider_requests_total",
				Help: "Total number of outbound requests to Spotify.",
			},
			[]string{"code", "method"},
		),
		ProviderLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spotify_feature_provider_request_duration_seconds",
				Help:    "Latency of outbound requests to Spotify.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		TokenRefreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotify_feature_token_refreshes_total",
				Help: "Total number of access token refresh attempts.",
			},
			[]string{"result"},
		),
		ArtistCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotify_feature_artist_cache_total",
				Help: "Artist cache lookups by result.",
			},
			[]string{"result"},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotify_feature_rate_limit_hits_total",
				Help: "Total number of requests rejected by a rate limiter.",
			},
			[]string{"route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records a handled inbound request.
func (m *Metrics) RecordRequest(route string, code int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRefresh records the outcome of a token refresh.
func (m *Metrics) RecordRefresh(ok bool) {
	m.TokenRefreshes.WithLabelValues(result(ok, "success", "failure")).Inc()
}

// RecordCache records an artist cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	m.ArtistCache.WithLabelValues(result(hit, "hit", "miss")).Inc()
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(route string) {
	m.RateLimitHits.WithLabelValues(route).Inc()
}

// InstrumentTransport wraps base so outbound requests are counted and timed.
// A nil base uses [http.DefaultTransport].
func (m *Metrics) InstrumentTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.ProviderRequests,
		promhttp.InstrumentRoundTripperDuration(m.ProviderLatency, base),
	)
}

// Client returns an [http.Client] with an instrumented transport and the given timeout.
func (m *Metrics) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: m.InstrumentTransport(nil), Timeout: timeout}
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
