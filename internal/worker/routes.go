package worker

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
)

// Routes serves health, status and Prometheus metrics from gatherer.
func (w *RateWatcher) Routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		trace.Middleware(w.logger),
		middleware.Recoverer,
		security.Headers,
	)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Get("/status", func(rw http.ResponseWriter, req *http.Request) {
		render.JSON(rw, req, w.Status())
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
