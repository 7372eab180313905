package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_RecordsPatternAndStatus(t *testing.T) {
	const pattern = "GET /test/rolls/{id}"
	h := Middleware(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, pattern, "418"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/rolls/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, pattern, "418")))
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	_, _ = rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rw.Status())
}

func TestObserveCache(t *testing.T) {
	hits := testutil.ToFloat64(cacheRequests.WithLabelValues("hit"))
	ObserveCache(true)
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheRequests.WithLabelValues("hit")))
}

func TestMiddleware_ExposesRoute(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	h := Middleware("GET /test/shops", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/test/shops", nil))

	assert.Equal(t, "GET /test/shops", rw.Route())
}
