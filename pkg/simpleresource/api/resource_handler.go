package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// maxTitleBytes bounds the title form field
const maxTitleBytes = 4 << 10

// ResourceResponse is the response body for a resource
type ResourceResponse struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	StorageReference string    `json:"storage_reference"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewResourceResponse maps a resource to its response body
func NewResourceResponse(resource *simpleresource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:               resource.ID,
		Title:            resource.Title,
		StorageReference: resource.StorageReference,
		CreatedAt:        resource.CreatedAt,
		UpdatedAt:        resource.UpdatedAt,
	}
}

// ErrorResponse is the response body for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResourceHandler handles HTTP requests for resources
type ResourceHandler struct {
	service         simpleresource.Service
	logger          *slog.Logger
	maxUploadBytes  int64
	referencePrefix string
}

// HandlerOption configures a ResourceHandler
type HandlerOption func(*ResourceHandler)

// WithHandlerLogger sets the logger used by the handler
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *ResourceHandler) {
		h.logger = logger
	}
}

// WithMaxUploadBytes limits the size of an upload request body. Zero
// disables the limit.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *ResourceHandler) {
		h.maxUploadBytes = n
	}
}

// WithUploadPrefix sets the URL prefix blobs are served under. It must
// match the storage reference prefix of the service.
func WithUploadPrefix(prefix string) HandlerOption {
	return func(h *ResourceHandler) {
		h.referencePrefix = strings.TrimSuffix(prefix, "/")
	}
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(service simpleresource.Service, options ...HandlerOption) *ResourceHandler {
	h := &ResourceHandler{
		service:         service,
		referencePrefix: simpleresource.DefaultReferencePrefix,
	}
	for _, option := range options {
		option(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Routes returns the routes for resources
func (h *ResourceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListResources)
	r.Post("/", h.CreateResource)
	r.Get("/{id}", h.GetResource)

	return r
}

// UploadRoutes returns the routes serving stored blobs
func (h *ResourceHandler) UploadRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/*", h.ServeBlob)
	r.Head("/*", h.HeadBlob)

	return r
}

// UploadPrefix returns the URL prefix blobs are served under
func (h *ResourceHandler) UploadPrefix() string {
	return h.referencePrefix
}

// Health reports that the server is up
func (h *ResourceHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

// CreateResource accepts a multipart upload with a title and a file. The
// file part is streamed into the service when the title precedes it and
// buffered otherwise.
func (h *ResourceHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		h.logger.Warn("Invalid multipart form", "error", err)
		h.writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var title, fileName string
	var hasTitle bool
	var buffered []byte
	var hasFile bool

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.handlePartError(w, r, err)
			return
		}

		switch part.FormName() {
		case "title":
			value, err := io.ReadAll(io.LimitReader(part, maxTitleBytes+1))
			if err != nil {
				h.handlePartError(w, r, err)
				return
			}
			if len(value) > maxTitleBytes {
				h.writeError(w, r, http.StatusBadRequest, "title is too long")
				return
			}
			title, hasTitle = string(value), true

		case "file":
			if hasFile {
				continue
			}
			hasFile = true
			fileName = part.FileName()
			if hasTitle {
				h.createResource(w, r, title, fileName, part)
				return
			}
			data, err := io.ReadAll(part)
			if err != nil {
				h.handleServiceError(w, r, "Failed to read upload", fmt.Errorf("%w: %w", simpleresource.ErrRead, err))
				return
			}
			buffered = data
		}
	}

	var payload io.Reader
	if hasFile {
		payload = bytes.NewReader(buffered)
	}
	h.createResource(w, r, title, fileName, payload)
}

func (h *ResourceHandler) createResource(w http.ResponseWriter, r *http.Request, title, fileName string, payload io.Reader) {
	resource, err := h.service.CreateResource(r.Context(), simpleresource.CreateResourceRequest{
		Title:    title,
		FileName: fileName,
		Payload:  payload,
	})
	if err != nil {
		h.handleServiceError(w, r, "Failed to create resource", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, NewResourceResponse(resource))
}

// handlePartError reports a failure to read the multipart envelope
func (h *ResourceHandler) handlePartError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.logger.Warn("Upload too large", "limit", maxErr.Limit)
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	h.logger.Warn("Invalid multipart form", "error", err)
	h.writeError(w, r, http.StatusBadRequest, "invalid multipart form")
}

// GetResource retrieves a resource by ID
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Warn("Invalid resource ID", "id", idStr, "error", err)
		h.writeError(w, r, http.StatusBadRequest, "invalid resource id")
		return
	}

	resource, err := h.service.GetResource(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, "Failed to get resource", err)
		return
	}

	render.JSON(w, r, NewResourceResponse(resource))
}

// ListResources returns every resource in creation order
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.ListResources(r.Context())
	if err != nil {
		h.handleServiceError(w, r, "Failed to list resources", err)
		return
	}

	resp := make([]ResourceResponse, 0, len(resources))
	for _, resource := range resources {
		resp = append(resp, NewResourceResponse(resource))
	}

	render.JSON(w, r, resp)
}

// ServeBlob streams the blob stored under the key in the URL path
func (h *ResourceHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		h.writeError(w, r, http.StatusNotFound, simpleresource.ErrNotFound.Error())
		return
	}

	rc, err := h.service.OpenBlob(r.Context(), h.referencePrefix+"/"+key)
	if err != nil {
		h.handleServiceError(w, r, "Failed to open blob", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", blobContentType(key))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("Failed to stream blob", "key", key, "error", err)
	}
}

// HeadBlob reports whether a blob is stored under the key in the URL path
func (h *ResourceHandler) HeadBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	exists, err := h.service.BlobExists(r.Context(), h.referencePrefix+"/"+key)
	if err != nil {
		h.logger.Error("Failed to check blob", "key", key, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", blobContentType(key))
	w.WriteHeader(http.StatusOK)
}

func blobContentType(key string) string {
	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

// handleServiceError maps service errors to status codes. Internal
// failures get a generic message so paths and driver errors stay in logs.
func (h *ResourceHandler) handleServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		h.logger.Warn("Upload too large", "limit", maxErr.Limit)
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, simpleresource.ErrInvalidInput):
		h.logger.Warn(msg, "error", err)
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, simpleresource.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, simpleresource.ErrNotFound.Error())
	default:
		h.logger.Error(msg, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func (h *ResourceHandler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
