package posture

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insiderwatch/insiderwatch/internal/platform/httpx"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// Getter is the service surface used by the handler.
type Getter interface {
	Get(ctx context.Context, userID string) (risk.Posture, error)
}

// Handler serves user risk postures.
type Handler struct {
	logger  *slog.Logger
	service Getter
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Getter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers posture routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/getUserRisk/{user_id}", h.getUserRisk)
}

func (h *Handler) getUserRisk(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			h.logger.Error("get user risk failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
