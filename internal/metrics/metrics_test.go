package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(recordsAppendedTotal)
	RecordAppend(4)
	if got := testutil.ToFloat64(recordsAppendedTotal); got != before+1 {
		t.Errorf("appended = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(chainLength); got != 4 {
		t.Errorf("chain length = %v, want 4", got)
	}

	corrupted := testutil.ToFloat64(validationsTotal.WithLabelValues("corrupted"))
	RecordValidation(false, 4, time.Millisecond)
	if got := testutil.ToFloat64(validationsTotal.WithLabelValues("corrupted")); got != corrupted+1 {
		t.Errorf("corrupted validations = %v, want %v", got, corrupted+1)
	}

	missing := testutil.ToFloat64(lookupsTotal.WithLabelValues("not_found"))
	RecordLookup(false)
	if got := testutil.ToFloat64(lookupsTotal.WithLabelValues("not_found")); got != missing+1 {
		t.Errorf("not_found lookups = %v, want %v", got, missing+1)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `landledger_requests_total{method="GET",path="/ping",status="200"}`) {
		t.Error("expected /ping request to be counted")
	}
}
