// Package metrics owns the Prometheus collectors. All methods are safe on a
// nil *Metrics so callers never branch on whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "job_recommender"

type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	responses     *prometheus.CounterVec
	relaxations   *prometheus.CounterVec
	rebuilds      *prometheus.CounterVec
	corpusSize    prometheus.Gauge
	builtAt       prometheus.Gauge

	httpDuration *prometheus.SummaryVec
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .2, .5, 1, 2.5, 5},
		}, []string{"stage"}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Recommendation responses by mode.",
		}, []string{"mode"}),
		relaxations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sieve_relaxations_total",
			Help:      "Filters dropped by the sieve relaxation.",
		}, []string{"filter"}),
		rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuilds_total",
			Help:      "Index rebuild attempts by result.",
		}, []string{"result"}),
		corpusSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_postings",
			Help:      "Postings in the published artifact.",
		}),
		builtAt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_built_timestamp_seconds",
			Help:      "Build time of the published artifact.",
		}),
		httpDuration: factory.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.95: 0.005,
				0.99: 0.001,
			},
		}, []string{"method", "path", "status_code"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) CountResponse(mode string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(mode).Inc()
}

func (m *Metrics) CountRelaxation(filters ...string) {
	if m == nil {
		return
	}
	for _, f := range filters {
		m.relaxations.WithLabelValues(f).Inc()
	}
}

func (m *Metrics) CountRebuild(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.rebuilds.WithLabelValues(result).Inc()
}

func (m *Metrics) SetArtifact(postings int, builtAt time.Time) {
	if m == nil {
		return
	}
	m.corpusSize.Set(float64(postings))
	m.builtAt.Set(float64(builtAt.Unix()))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware records duration and count of every request under the route
// template, not the raw path.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if m == nil {
			ctx.Next()
			return
		}
		start := time.Now()

		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = ctx.Request.URL.Path
		}
		statusCode := strconv.Itoa(ctx.Writer.Status())
		m.httpDuration.WithLabelValues(ctx.Request.Method, path, statusCode).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(ctx.Request.Method, path, statusCode).Inc()
	}
}
