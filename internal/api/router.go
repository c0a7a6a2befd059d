package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter builds the HTTP handler.
//
//	POST   /batches                       start a batch
//	GET    /batches/{id}                  batch status and items
//	GET    /batches/{id}/report           XLSX report
//	PATCH  /batches/{id}/items/{itemID}   reviewer overrides
//	POST   /batches/{id}/commit           commit the batch
//	DELETE /batches/{id}                  cancel or discard
//	GET    /health
//	GET    /metrics
//
// A nil gatherer serves the default registry on /metrics.
func NewRouter(h *Handler, allowedOrigins []string, gatherer prometheus.Gatherer) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/batches", func(r chi.Router) {
		r.Post("/", h.StartBatch)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetBatch)
			r.Delete("/", h.CancelBatch)
			r.Get("/report", h.Report)
			r.Post("/commit", h.CommitBatch)
			r.Patch("/items/{itemID}", h.EditItem)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
