package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clamsproject/dashboard/internal/ports"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware so that the first one listed is the outermost.
// Middleware that reads the matched route must run inside TracingMiddleware,
// which replaces the request.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// route names a request by its matched pattern, falling back to the method
// and path for unmatched requests.
func route(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Method + " unmatched"
}

// RateLimitMiddleware rejects requests beyond a token bucket with 429. The
// limit parameter sets requests per second, while burst allows temporary
// spikes above the sustained rate. Unlike a client-side limiter it never
// blocks: a rejected caller simply retries later.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter(limit)))
				WriteError(w, http.StatusTooManyRequests, ports.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfter rounds the interval between tokens up to whole seconds.
func retryAfter(limit rate.Limit) int {
	if limit <= 0 || limit == rate.Inf {
		return 1
	}
	secs := int(1/float64(limit) + 0.999)
	return max(secs, 1)
}

// TracingMiddleware runs each request within an OpenTelemetry span named
// after the matched route.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "http.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
				),
			)
			defer span.End()

			// The mux records the matched pattern on the request it receives.
			req := r.WithContext(ctx)
			rec := record(w)
			next.ServeHTTP(rec, req)

			span.SetName(route(req))
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}

// MetricsMiddleware records request latency and a request counter labelled
// with route and status code.
func MetricsMiddleware(metrics ports.MetricsCollector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			rt := route(r)
			metrics.RecordLatency(ports.MetricHTTPRequest, time.Since(start), map[string]string{"route": rt})
			metrics.RecordCounter(ports.MetricHTTPRequests, 1, map[string]string{
				"route":  rt,
				"status": strconv.Itoa(rec.status),
			})
		})
	}
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error string `json:"error"`
}

// WriteError writes err as a JSON error body with the given status.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, errorBody{Error: err.Error()})
}

// WriteJSON writes v as indented JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
