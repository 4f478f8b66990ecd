// Package trace logs inbound HTTP requests with their request id.
package trace

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	applog "gastos/internal/log"
)

// Middleware logs one record per request. Level follows the status code.
func Middleware(logger *applog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = applog.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelDebug
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			fields := applog.NewFields().
				WithRequestID(middleware.GetReqID(r.Context())).
				WithHTTPRequest(r.Method, r.URL.Path).
				WithHTTPResponse(status, time.Since(start).Milliseconds(), status < 400)
			logger.Log(r.Context(), level, "HTTP request completed", fields.ToSlice()...)
		})
	}
}
