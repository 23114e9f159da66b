package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/insiderwatch/insiderwatch/internal/activity"
	"github.com/insiderwatch/insiderwatch/internal/alerts"
	"github.com/insiderwatch/insiderwatch/internal/observability"
	"github.com/insiderwatch/insiderwatch/internal/platform/httpx"
	"github.com/insiderwatch/insiderwatch/internal/posture"
	"github.com/insiderwatch/insiderwatch/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	ActivityHandler *activity.Handler
	AlertsHandler   *alerts.Handler
	PostureHandler  *posture.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// NewRouter constructs the chi.Router with insiderwatch defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: ServiceName, Version: ServiceVersion})
	})

	if params.ActivityHandler != nil {
		params.ActivityHandler.MountRoutes(r)
	}
	if params.AlertsHandler != nil {
		params.AlertsHandler.MountRoutes(r)
	}
	if params.PostureHandler != nil {
		params.PostureHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
