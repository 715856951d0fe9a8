package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/cadenza/pkg/metrics"
)

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware records request count and duration per endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		metrics.RecordHTTPRequest(endpoint, strconv.Itoa(rec.status))
		metrics.RecordHTTPRequestDuration(endpoint, float64(time.Since(start).Milliseconds()))
	}
}
