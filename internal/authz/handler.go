package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/farmwise/farmwise/internal/platform/httpx"
	"github.com/farmwise/farmwise/internal/shared"
)

// Handler exposes the read-only introspection surface: the role matrix
// and batch permission checks for screens rendering conditional
// controls.
type Handler struct {
	logger    *slog.Logger
	evaluator *Evaluator
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, evaluator *Evaluator) *Handler {
	return &Handler{
		logger:    logger,
		evaluator: evaluator,
		validator: validator.New(),
	}
}

// MountRoutes registers introspection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Post("/authz/check", h.batchCheck)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": h.evaluator.ListRoles()})
}

type batchCheckRequest struct {
	Checks []Check `json:"checks" validate:"required,min=1,max=50,dive"`
}

func (h *Handler) batchCheck(w http.ResponseWriter, r *http.Request) {
	var req batchCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	userID := shared.UserIDFromContext(r.Context())
	results := h.evaluator.BatchEvaluate(r.Context(), userID, req.Checks, CheckContext{
		IP:            r.RemoteAddr,
		UserAgent:     r.UserAgent(),
		CurrentUserID: userID,
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}
