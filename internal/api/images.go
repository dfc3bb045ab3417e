package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JaimeStill/civic/pkg/handlers"
	"github.com/JaimeStill/civic/pkg/openapi"
	"github.com/JaimeStill/civic/pkg/routes"
	"github.com/JaimeStill/civic/pkg/storage"
)

// imageHandler serves stored issue and response photographs. The vision
// service fetches evidence through these links.
type imageHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newImageHandler(store storage.System, logger *slog.Logger) *imageHandler {
	return &imageHandler{
		store:  store,
		logger: logger.With("handler", "images"),
	}
}

var downloadOp = &openapi.Operation{
	Summary:    "Download a stored image",
	Parameters: []*openapi.Parameter{openapi.PathParam("key", "Storage key")},
	Responses: openapi.WithErrors(map[int]*openapi.Response{
		http.StatusOK: {
			Description: "Image bytes",
			Content: map[string]*openapi.MediaType{
				"image/*": {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
			},
		},
	}, http.StatusBadRequest, http.StatusNotFound),
}

func (h *imageHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/images",
		Tags:   []string{"Images"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{key...}", Handler: h.download, OpenAPI: downloadOp},
			{Method: "HEAD", Pattern: "/{key...}", Handler: h.exists},
		},
	}
}

func (h *imageHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	obj, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("image stream interrupted", "key", key, "error", err)
	}
}

// exists answers HEAD without streaming the blob.
func (h *imageHandler) exists(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.Exists(r.Context(), r.PathValue("key"))
	switch {
	case err != nil:
		w.WriteHeader(storage.MapHTTPStatus(err))
	case !ok:
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusOK)
	}
}
