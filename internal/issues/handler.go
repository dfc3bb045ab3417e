package issues

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/auth"
	"github.com/JaimeStill/civic/pkg/formatting"
	"github.com/JaimeStill/civic/pkg/handlers"
	"github.com/JaimeStill/civic/pkg/pagination"
	"github.com/JaimeStill/civic/pkg/routes"
)

// Handler provides HTTP endpoints for the issue pipeline.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "issues"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the issue route group. Intake and reads are open to
// anonymous citizens.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/issues",
		Tags:    []string{"Issues"},
		Schemas: schemas,
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: ops.list},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: ops.create},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: ops.search},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: ops.find},
			{Method: "POST", Pattern: "/{id}/responses", Handler: h.Submit, OpenAPI: ops.submit},
			{Method: "POST", Pattern: "/{id}/dispute", Handler: h.Dispute, OpenAPI: ops.dispute},
		},
	}
}

// ResponseRoutes carries verification of submitted responses.
func (h *Handler) ResponseRoutes() routes.Group {
	return routes.Group{
		Prefix: "/responses",
		Tags:   []string{"Responses"},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/outcome", Handler: h.RecordOutcome, OpenAPI: ops.outcome},
			{Method: "POST", Pattern: "/{id}/verify", Handler: h.Verify, OpenAPI: ops.verify},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, fmt.Errorf("%w: %w", ErrValidation, err))
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	issue, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, issue)
}

// Create accepts a multipart report: image, latitude, longitude, description.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	lat, latErr := strconv.ParseFloat(r.FormValue("latitude"), 64)
	lng, lngErr := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if latErr != nil || lngErr != nil {
		h.fail(w, fmt.Errorf("%w: latitude and longitude required", ErrValidation))
		return
	}

	img, err := readImage(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	issue, err := h.sys.Create(r.Context(), CreateCommand{
		Latitude:    lat,
		Longitude:   lng,
		Description: r.FormValue("description"),
		Image:       img.data,
		Filename:    img.filename,
		ContentType: img.contentType,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, issue)
}

// Submit records a jurisdiction's response and then attempts verification.
// A verification failure still returns the submitted response.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	actor, err := actingJurisdiction(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	img, err := readImage(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp, err := h.sys.SubmitResponse(r.Context(), SubmitCommand{
		IssueID:        id,
		JurisdictionID: actor,
		Note:           r.FormValue("note"),
		Image:          img.data,
		Filename:       img.filename,
		ContentType:    img.contentType,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	verified, err := h.sys.Verify(r.Context(), resp.ID)
	if err != nil {
		h.logger.Warn("response left pending", "response", resp.ID, "error", err)
		handlers.RespondJSON(w, http.StatusCreated, resp)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, verified)
}

func (h *Handler) Dispute(w http.ResponseWriter, r *http.Request) {
	if err := auth.Require(r.Context(), auth.RoleAdmin); err != nil {
		h.fail(w, err)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	issue, err := h.sys.Dispute(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, issue)
}

// RecordOutcome applies a verification outcome delivered by a callback.
func (h *Handler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	if err := auth.Require(r.Context(), auth.RoleVerifier, auth.RoleAdmin); err != nil {
		h.fail(w, err)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var o Outcome
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		h.fail(w, fmt.Errorf("%w: %w", ErrValidation, err))
		return
	}

	resp, err := h.sys.RecordVerification(r.Context(), id, o)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}

// Verify retries the verification collaborator for a pending response.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := auth.Require(r.Context(), auth.RoleVerifier, auth.RoleAdmin); err != nil {
		h.fail(w, err)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	resp, err := h.sys.Verify(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := MapHTTPStatus(err)
	if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrForbidden) {
		status = auth.MapHTTPStatus(err)
	}
	handlers.RespondError(w, h.logger, status, err)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: upload exceeds %s", ErrValidation, formatting.FormatBytes(h.maxUploadSize, 1)))
			return false
		}
		h.fail(w, fmt.Errorf("%w: multipart form required", ErrValidation))
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.fail(w, fmt.Errorf("%w: malformed id", ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}

// actingJurisdiction is the principal's jurisdiction claim. Admins name
// the jurisdiction they act for in the jurisdiction_id form field.
func actingJurisdiction(r *http.Request) (uuid.UUID, error) {
	p := auth.FromContext(r.Context())
	if p == nil {
		return uuid.Nil, auth.ErrUnauthenticated
	}

	claim := p.JurisdictionID
	if p.HasRole(auth.RoleAdmin) {
		if v := r.FormValue("jurisdiction_id"); v != "" {
			claim = v
		}
	} else if !p.HasRole(auth.RoleJurisdiction) {
		return uuid.Nil, fmt.Errorf("%w: need one of %s, %s", auth.ErrForbidden, auth.RoleJurisdiction, auth.RoleAdmin)
	}

	if claim == "" {
		return uuid.Nil, fmt.Errorf("%w: jurisdiction_id required", ErrValidation)
	}
	id, err := uuid.Parse(claim)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed jurisdiction_id", ErrValidation)
	}
	return id, nil
}

type upload struct {
	data        []byte
	filename    string
	contentType string
}

func readImage(r *http.Request) (*upload, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: image required", ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable image", ErrValidation)
	}

	return &upload{
		data:        data,
		filename:    header.Filename,
		contentType: detectContentType(header.Header.Get("Content-Type"), data),
	}, nil
}

func detectContentType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}
