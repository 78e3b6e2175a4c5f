package telemetry

import (
	"net/http"
	"time"
)

// HTTPMetrics is middleware recording RED metrics for every request.
// Tracing is handled separately by the otelhttp wrapper in main, so this
// layer only counts.
func HTTPMetrics(t *Telemetry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t == nil {
				next.ServeHTTP(w, r)

				return
			}

			start := time.Now()

			t.IncrementHTTPInFlight()
			defer t.DecrementHTTPInFlight()

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			// Status class keeps metric cardinality bounded.
			t.RecordHTTPRequest(r.Method, r.URL.Path, statusClass(wrapped.status), time.Since(start))
		})
	}
}

// statusClass returns the status class (2xx, 3xx, 4xx, 5xx) for a given
// status code.
func statusClass(statusCode int) string {
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return "2xx"
	case statusCode >= http.StatusMultipleChoices && statusCode < http.StatusBadRequest:
		return "3xx"
	case statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError:
		return "4xx"
	case statusCode >= http.StatusInternalServerError:
		return "5xx"
	default:
		return "unknown"
	}
}
