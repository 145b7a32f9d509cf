package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clamsproject/dashboard/internal/ports"
	"github.com/clamsproject/dashboard/internal/testutils"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// TestRateLimitMiddleware verifies that requests beyond the burst are
// rejected without blocking.
func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(rate.Limit(0.5), 2)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "2", rr.Header().Get("Retry-After"))
			var body errorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, ports.ErrRateLimited.Error(), body.Error)
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

// TestRetryAfter covers rounding of the retry interval.
func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 1, retryAfter(rate.Limit(10)))
	assert.Equal(t, 1, retryAfter(rate.Limit(1)))
	assert.Equal(t, 5, retryAfter(rate.Limit(0.2)))
	assert.Equal(t, 1, retryAfter(rate.Inf))
	assert.Equal(t, 1, retryAfter(0))
}

// TestMetricsMiddleware verifies that requests are counted by matched route
// and status.
func TestMetricsMiddleware(t *testing.T) {
	metrics := testutils.NewMockMetrics()
	mux := http.NewServeMux()
	mux.Handle("GET /api/tasks/{name}", okHandler())
	h := Chain(mux,
		TracingMiddleware("dashboard-test"),
		LoggingMiddleware(zap.NewNop()),
		MetricsMiddleware(metrics),
	)

	for _, target := range []string{"/api/tasks/a", "/api/tasks/b", "/nope"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, 2.0, metrics.Counter(ports.MetricHTTPRequests, map[string]string{
		"route": "GET /api/tasks/{name}", "status": "200",
	}))
	assert.Equal(t, 1.0, metrics.Counter(ports.MetricHTTPRequests, map[string]string{
		"route": "GET unmatched", "status": "404",
	}))
	assert.Equal(t, 3, metrics.Latencies(ports.MetricHTTPRequest))
}

// TestChain_Order verifies that the first middleware is the outermost.
func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mark("a"), mark("b"), mark("c")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// TestWriteError checks the JSON error shape.
func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusNotFound, errors.New(`task "x": not found`))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error": "task \"x\": not found"}`, rr.Body.String())
}
