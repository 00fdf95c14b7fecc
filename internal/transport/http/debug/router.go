package debug

import (
	"net/http"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// NewRouter builds the debug surface a host app may mount.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(AccessLog(logger.Log))
	r.Use(Metrics)
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateWindow))
	}

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/debug", func(r chi.Router) {
		r.Get("/state", h.State)
		r.Get("/cache/{key}", h.GetCache)
		r.Delete("/cache/{key}", h.DeleteCache)
	})

	return r
}
