package jurisdictions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

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

type SearchRequest struct {
	pagination.PageRequest
	Filters
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "jurisdictions"),
		pagination: pagination,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/jurisdictions",
		Tags:    []string{"Jurisdictions"},
		Schemas: schemas,
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: ops.list},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: ops.create},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: ops.search},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: ops.find},
			{Method: "GET", Pattern: "/{id}/stats", Handler: h.Stats, OpenAPI: ops.stats},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalid, err))
		return
	}

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	j, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, j)
}

// Create provisions a jurisdiction. Admin only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := auth.Require(r.Context(), auth.RoleAdmin); err != nil {
		handlers.RespondError(w, h.logger, auth.MapHTTPStatus(err), err)
		return
	}

	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalid, err))
		return
	}

	j, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, j)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	stats, err := h.sys.Stats(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: malformed id", ErrInvalid))
		return uuid.Nil, false
	}
	return id, true
}
