package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/welcome", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/welcome", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/welcome", "200")); got != 3 {
		t.Fatalf("welcome count = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched count = %v, want 1", got)
	}
}

func TestObserveAuthResults(t *testing.T) {
	m := New()
	m.ObserveLogin(ResultSuccess)
	m.ObserveLogin(ResultFailure)
	m.ObserveLogin(ResultFailure)
	m.ObserveRegistration(ResultSuccess)

	if got := testutil.ToFloat64(m.logins.WithLabelValues(ResultFailure)); got != 2 {
		t.Fatalf("login failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.registrations.WithLabelValues(ResultSuccess)); got != 1 {
		t.Fatalf("registrations = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLogin(ResultSuccess)
	m.ObserveRegistration(ResultFailure)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveLogin(ResultSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `gatehouse_logins_total{result="success"} 1`) {
		t.Fatalf("metrics output missing login counter:\n%s", rec.Body.String())
	}
}
