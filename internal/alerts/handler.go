package alerts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insiderwatch/insiderwatch/internal/platform/httpx"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// Lister is the service surface used by the handler.
type Lister interface {
	List(ctx context.Context, q Query) ([]risk.Alert, error)
}

// Handler serves alert queries.
type Handler struct {
	logger  *slog.Logger
	service Lister
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Lister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/getAlerts", h.getAlerts)
}

// AlertResponse is one listed alert.
type AlertResponse struct {
	AlertID     int64      `json:"alert_id"`
	UserID      string     `json:"user_id"`
	RiskScore   int        `json:"risk_score"`
	AlertLevel  risk.Level `json:"alert_level"`
	Reasons     string     `json:"reasons"`
	GeneratedAt time.Time  `json:"generated_at"`
}

func (h *Handler) getAlerts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	alerts, err := h.service.List(r.Context(), Query{
		UserID: params.Get("user_id"),
		Level:  params.Get("alert_level"),
		From:   params.Get("from_time"),
		To:     params.Get("to_time"),
	})
	if err != nil {
		if !errors.Is(err, httpx.ErrValidation) {
			h.logger.Error("list alerts failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{
			AlertID:     a.ID,
			UserID:      a.UserID,
			RiskScore:   a.RiskScore,
			AlertLevel:  a.Level,
			Reasons:     a.Reasons,
			GeneratedAt: a.GeneratedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
