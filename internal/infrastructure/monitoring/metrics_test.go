package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/securevm/internal/membrane"
)

func TestMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.ContextCreated(2)
	assert.Equal(t, float64(1), testutil.ToFloat64(a.ContextsCreated))
	assert.Equal(t, float64(2), testutil.ToFloat64(a.SanitizationWarnings))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.ContextsCreated))
}

func TestEvaluationMetrics(t *testing.T) {
	m := NewMetrics()

	m.EvaluationFinished("ok", time.Millisecond)
	m.EvaluationFinished("ok", time.Millisecond)
	m.EvaluationFinished("interrupted", time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Evaluations.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Evaluations.WithLabelValues("interrupted")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.Evaluations)
	assert.Equal(t, int64(1), snap.FailedEvaluations)
}

func TestMembraneMetrics(t *testing.T) {
	m := NewMetrics()
	var obs membrane.Observer = m

	obs.Wrapped(membrane.Inward)
	obs.Wrapped(membrane.Inward)
	obs.Hit(membrane.Outward)
	obs.Unbridged(membrane.Outward)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.WrappersCreated.WithLabelValues("inward")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits.WithLabelValues("outward")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UnbridgedTotal.WithLabelValues("outward")))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("GET", "/health", "200", 10*time.Millisecond, 0, 10)
	m.RecordHTTPRequest("POST", "/v1/eval", "400", 30*time.Millisecond, 20, 10)
	m.SetSessionsActive(3)
	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.InDelta(t, 20.0, snap.AverageLatencyMs, 0.001)
	assert.Equal(t, int64(3), snap.ActiveSessions)
	assert.Equal(t, int64(1), snap.ActiveConnections)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WSConnections))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m, "/metrics"))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/ping", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	// The scrape itself is skipped
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestsTotal))
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "securevm_http_requests_total"))
	assert.True(t, strings.Contains(body, "securevm_uptime_seconds"))
}

func TestTimer(t *testing.T) {
	m := NewMetrics()

	timer := NewTimer(m, "sessions", "create")
	assert.GreaterOrEqual(t, timer.Stop("success"), time.Duration(0))

	// Nil metrics only measure
	NewTimer(nil, "sessions", "create").Stop("error")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ServiceCalls.WithLabelValues("sessions", "create", "success")))
}
