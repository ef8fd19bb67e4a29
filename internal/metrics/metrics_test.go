package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCounters(t *testing.T) {
	m := New()
	m.CountResponse("degraded")
	m.CountResponse("degraded")
	m.CountRelaxation("skill_overlap", "province")
	m.CountRebuild(false)
	m.SetArtifact(42, time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.responses.WithLabelValues("degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relaxations.WithLabelValues("province")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("failure")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.corpusSize))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CountResponse("full-accuracy")
	m.ObserveStage("sieve", time.Millisecond)
	m.CountRebuild(true)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/v1/things/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/things/"+id, nil))
	}

	// Both requests land on the route template, keeping label cardinality low.
	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/v1/things/:id", "404"))
	assert.Equal(t, 2.0, got)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "job_recommender_http_requests_total")
}
