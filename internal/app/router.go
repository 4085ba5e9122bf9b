package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	"github.com/bartosz121/minerva/internal/auth"
	"github.com/bartosz121/minerva/internal/observability"
	"github.com/bartosz121/minerva/internal/platform/httpx"
)

// RouterParams collects everything required to assemble the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	DB          *bun.DB
	AuthHandler *auth.Handler
	Metrics     *observability.Metrics
}

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		DB:      params.DB,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"msg": "Minerva API"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/users", params.AuthHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
