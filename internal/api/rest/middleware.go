package rest

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"costguardian/internal/metrics"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps one route with timeout, body limit, panic recovery,
// request logging and metrics labelled by route pattern
func instrument(route string, timeout time.Duration, log *logger.Logger, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		r.Body = http.MaxBytesReader(rec, r.Body, maxBodyBytes)

		defer func() {
			if p := recover(); p != nil {
				log.Errorw("Handler panicked",
					"route", route,
					"panic", p,
					"stack", string(debug.Stack()),
				)
				writeError(rec, log, errors.Wrapf(errors.ErrInternal, "panic: %v", p))
			}

			duration := time.Since(start)
			metrics.RecordHTTPRequest(route, rec.status, duration)
			log.Debugw("HTTP request",
				"route", route,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			)
		}()

		next(rec, r)
	})
}
