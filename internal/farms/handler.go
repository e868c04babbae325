package farms

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/farmwise/farmwise/internal/audit"
	"github.com/farmwise/farmwise/internal/authz"
	"github.com/farmwise/farmwise/internal/platform/httpx"
	"github.com/farmwise/farmwise/internal/shared"
)

// Handler manages farm endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	evaluator *authz.Evaluator
	timeline  *audit.Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, evaluator *authz.Evaluator, timeline *audit.Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		evaluator: evaluator,
		timeline:  timeline,
		validator: validator.New(),
	}
}

// MountRoutes registers farm routes. Identity middleware must already
// have run; every permission check below re-resolves the caller's role
// for the addressed farm.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listFarms)
	r.Post("/", h.createFarm)
	r.Get("/memberships", h.listMyMemberships)
	r.Route("/{farmID}", func(r chi.Router) {
		r.Get("/", h.showFarm)
		r.Patch("/", h.updateFarm)
		r.Get("/members", h.listMembers)
		r.Post("/members", h.addMember)
		r.Patch("/members/{userID}", h.updateMember)
		r.Delete("/members/{userID}", h.removeMember)
		r.Get("/audit", h.decisionTimeline)
	})
}

func (h *Handler) listFarms(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserIDFromContext(r.Context())
	farms, err := h.service.ListFarms(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"farms": farms})
}

func (h *Handler) listMyMemberships(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserIDFromContext(r.Context())
	memberships, err := h.service.ListMyMemberships(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"memberships": memberships})
}

func (h *Handler) createFarm(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserIDFromContext(r.Context())
	var req CreateFarmRequest
	if !h.decode(w, r, &req) {
		return
	}
	farm, err := h.service.CreateFarm(r.Context(), userID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, farm)
}

func (h *Handler) showFarm(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmID")
	if !h.authorize(w, r, authz.ResourceFarm, authz.ActionRead, farmID) {
		return
	}
	farm, err := h.service.GetFarm(r.Context(), farmID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, farm)
}

func (h *Handler) updateFarm(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmID")
	if !h.authorize(w, r, authz.ResourceFarm, authz.ActionWrite, farmID) {
		return
	}
	var req UpdateFarmRequest
	if !h.decode(w, r, &req) {
		return
	}
	farm, err := h.service.UpdateFarm(r.Context(), farmID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, farm)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmID")
	if !h.authorize(w, r, authz.ResourceFarm, authz.ActionRead, farmID) {
		return
	}
	members, err := h.service.ListMembers(r.Context(), farmID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmID")
	decision, ok := h.authorizeDecision(w, r, authz.ResourceFarm, authz.ActionManage, farmID)
	if !ok {
		return
	}
	var req AddMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID := shared.UserIDFromContext(r.Context())
	change, err := h.service.AddMember(r.Context(), farmID, actorID, decision.Role, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, change)
}

func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmID")
	userID := chi.URLParam(r, "userID")
	decision, ok := h.authorizeDecision(w, r, authz.ResourceFarm, authz.ActionManage, farmID)
	if !ok {
		return
	}
	var req UpdateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	actorID := shared.UserIDFromContext(r.Context())
	change, err := h.service.UpdateMemberRole(r.Context(), farmID, actorID, userID, decision.Role, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmID")
	userID := chi.URLParam(r, "userID")
	if !h.authorize(w, r, authz.ResourceFarm, authz.ActionManage, farmID) {
		return
	}
	actorID := shared.UserIDFromContext(r.Context())
	change, err := h.service.RemoveMember(r.Context(), farmID, actorID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) decisionTimeline(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmID")
	if !h.authorize(w, r, authz.ResourceFarm, authz.ActionManage, farmID) {
		return
	}
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		FarmID:  farmID,
		UserID:  q.Get("user_id"),
		Outcome: q.Get("outcome"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	result, err := h.timeline.Timeline(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// authorize runs a permission check and writes the forbidden response
// itself when denied.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, resource authz.Resource, action authz.Action, farmID string) bool {
	_, ok := h.authorizeDecision(w, r, resource, action, farmID)
	return ok
}

func (h *Handler) authorizeDecision(w http.ResponseWriter, r *http.Request, resource authz.Resource, action authz.Action, farmID string) (authz.Decision, bool) {
	userID := shared.UserIDFromContext(r.Context())
	decision := h.evaluator.Evaluate(r.Context(), userID, resource, action, farmID, authz.CheckContext{
		IP:            r.RemoteAddr,
		UserAgent:     r.UserAgent(),
		CurrentUserID: userID,
	})
	if !decision.Authorized {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
		return decision, false
	}
	return decision, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var transition *TransitionError
	switch {
	case errors.As(err, &transition):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", string(transition.Verdict.Blocked))
	case errors.Is(err, authz.ErrOwnershipRestricted):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, authz.ErrDuplicateMembership):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, authz.ErrMembershipNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, authz.ErrUnknownRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("farms: request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
