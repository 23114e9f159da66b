package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/insiderwatch/insiderwatch/internal/platform/httpx"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// Ingester is the service surface used by the handler.
type Ingester interface {
	Ingest(ctx context.Context, ev risk.Event) (Result, error)
}

// Handler serves the ingestion endpoint.
type Handler struct {
	logger    *slog.Logger
	service   Ingester
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Ingester) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ingestion routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/logActivity", h.logActivity)
}

func (h *Handler) logActivity(w http.ResponseWriter, r *http.Request) {
	var req LogActivityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}

	result, err := h.service.Ingest(r.Context(), req.Event())
	if err != nil {
		h.logger.Error("ingest activity failed", slog.String("user_id", req.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, LogActivityResponse{
		Status:         result.Status,
		RiskScore:      result.RiskScore,
		AlertGenerated: result.AlertGenerated,
	})
}

var jsonFieldNames = map[string]string{
	"UserID":          "user_id",
	"Action":          "action",
	"Resource":        "resource",
	"RecordsAccessed": "records_accessed",
	"AccessTime":      "access_time",
	"SourceIP":        "source_ip",
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return httpx.Invalid(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := jsonFieldNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", name, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", name, fe.Param()))
		default:
			msgs = append(msgs, name+" is invalid")
		}
	}
	return httpx.Invalid(strings.Join(msgs, "; "))
}
