// Package monitoring holds the predictor's Prometheus metrics and the live
// prediction feed.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trafficcast"

// Metrics holds the predictor's counters and histograms.
type Metrics struct {
	Predictions        *prometheus.CounterVec // labels: outcome={success,error}, channel={form,api,ws}
	PredictionDuration prometheus.Histogram
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss}
	HTTPRequests       *prometheus.CounterVec // labels: method, code
	HTTPDuration       *prometheus.HistogramVec
	ArtifactStale      prometheus.Gauge
	FeedClients        prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predict actions by outcome and channel.",
		}, []string{"outcome", "channel"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent transforming and scoring one input row.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ArtifactStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_stale",
			Help:      "1 when the model file changed on disk after it was loaded.",
		}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected live prediction feed clients.",
		}),
	}
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// means the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := newMetrics()
	reg.MustRegister(
		m.Predictions,
		m.PredictionDuration,
		m.CacheLookups,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ArtifactStale,
		m.FeedClients,
	)
	return m
}

// NewMetricsForTesting returns unregistered metrics, so tests can build as
// many services as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
