package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/internal/jurisdictions"
	"github.com/JaimeStill/civic/pkg/auth"
	"github.com/JaimeStill/civic/pkg/handlers"
	"github.com/JaimeStill/civic/pkg/pagination"
	"github.com/JaimeStill/civic/pkg/routes"
)

type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "ledger"),
		pagination: pagination,
	}
}

// Routes exposes the ledger audit surface. Mutating routes require the admin role.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/ledger",
		Tags:    []string{"Ledger"},
		Schemas: schemas,
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/adjustments", Handler: h.Adjust, OpenAPI: ops.adjust},
			{Method: "POST", Pattern: "/reconcile", Handler: h.ReconcileAll, OpenAPI: ops.reconcileAll},
			{Method: "GET", Pattern: "/jurisdictions/{id}/events", Handler: h.Events, OpenAPI: ops.events},
			{Method: "GET", Pattern: "/jurisdictions/{id}/score", Handler: h.Score, OpenAPI: ops.score},
			{Method: "POST", Pattern: "/jurisdictions/{id}/reconcile", Handler: h.Reconcile, OpenAPI: ops.reconcile},
			{Method: "POST", Pattern: "/jurisdictions/{id}/repair", Handler: h.Repair, OpenAPI: ops.repair},
		},
	}
}

// LeaderboardRoutes is the public ranking view.
func (h *Handler) LeaderboardRoutes() routes.Group {
	return routes.Group{
		Prefix: "/leaderboard",
		Tags:   []string{"Leaderboard"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Leaderboard, OpenAPI: ops.leaderboard},
		},
	}
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := jurisdictions.FiltersFromQuery(r.URL.Query())

	result, err := h.sys.Leaderboard(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	result, err := h.sys.Events(r.Context(), id, page)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	score, err := h.sys.CurrentScore(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, Score{JurisdictionID: id, Score: score})
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	if !h.admin(w, r) {
		return
	}

	var cmd PostCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalid, err))
		return
	}
	cmd.Reason = ReasonManualAdjustment

	ev, posted, err := h.sys.Post(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	if !posted {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, ev)
}

// Reconcile reports a mismatch as 409 with the comparison as the body.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if !h.admin(w, r) {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.sys.Reconcile(r.Context(), id)
	if errors.Is(err, ErrLedgerInconsistency) {
		handlers.RespondJSON(w, http.StatusConflict, rec)
		return
	}
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	if !h.admin(w, r) {
		return
	}

	results, err := h.sys.ReconcileAll(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, results)
}

func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	if !h.admin(w, r) {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.sys.Repair(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) bool {
	if err := auth.Require(r.Context(), auth.RoleAdmin); err != nil {
		handlers.RespondError(w, h.logger, auth.MapHTTPStatus(err), err)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: malformed id", ErrInvalid))
		return uuid.Nil, false
	}
	return id, true
}
