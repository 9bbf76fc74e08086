package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/resource-hub/pkg/resourcehub"
)

// HelloMessage is the banner served by GET /hello
const HelloMessage = "College Resource Hub API is running! 🎓"

// DefaultMaxUploadBytes bounds the multipart body when no limit is configured
const DefaultMaxUploadBytes int64 = 50 << 20

// multipart parts above this size spill to temporary files
const maxMemoryBytes = 8 << 20

// ResourceHandler serves the resource endpoints
type ResourceHandler struct {
	service        resourcehub.Service
	maxUploadBytes int64
}

// NewResourceHandler creates a handler. maxUploadBytes <= 0 selects DefaultMaxUploadBytes.
func NewResourceHandler(service resourcehub.Service, maxUploadBytes int64) *ResourceHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ResourceHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the router for resource endpoints, meant to be mounted at /api/resources.
// The given middlewares wrap every endpoint except downloads, which stream for
// as long as the client keeps reading.
func (h *ResourceHandler) Routes(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middlewares...)
		r.Get("/hello", h.Hello)
		r.Post("/upload", h.UploadResource)
		r.Get("/", h.ListResources)
		r.Get("/{id}", h.GetResource)
	})
	r.Get("/download/{id}", h.DownloadResource)
	return r
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// Hello answers with a liveness banner
func (h *ResourceHandler) Hello(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, HelloMessage)
}

// UploadResource accepts a multipart form with title, subject, semester,
// type, optional uploaderName, and the file part
func (h *ResourceHandler) UploadResource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		slog.Error("Failed to parse multipart form", "error", err)
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	semesterStr := strings.TrimSpace(r.FormValue("semester"))
	semester, err := strconv.Atoi(semesterStr)
	if err != nil {
		slog.Error("Invalid semester", "semester", semesterStr, "error", err)
		writeError(w, r, http.StatusBadRequest, "semester must be an integer")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Missing file part", "error", err)
		writeError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	resource, err := h.service.UploadResource(r.Context(), resourcehub.UploadResourceRequest{
		Title:        r.FormValue("title"),
		Subject:      r.FormValue("subject"),
		Semester:     semester,
		Type:         r.FormValue("type"),
		UploaderName: r.FormValue("uploaderName"),
		FileName:     header.Filename,
		Reader:       file,
	})
	if err != nil {
		slog.Error("Failed to upload resource", "file_name", header.Filename, "error", err)
		writeServiceError(w, r, err)
		return
	}

	slog.Info("Resource uploaded", "resource_id", resource.ID, "file_size", resource.FileSize)
	render.JSON(w, r, resource)
}

// ListResources lists every resource, or searches when subject, semester
// or keyword query parameters are present
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := resourcehub.SearchResourcesRequest{
		Subject: strings.TrimSpace(query.Get("subject")),
		Keyword: strings.TrimSpace(query.Get("keyword")),
	}
	if semesterStr := strings.TrimSpace(query.Get("semester")); semesterStr != "" {
		semester, err := strconv.Atoi(semesterStr)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "semester must be an integer")
			return
		}
		req.Semester = &semester
	}

	var (
		resources []*resourcehub.Resource
		err       error
	)
	if req.IsEmpty() {
		resources, err = h.service.ListResources(r.Context())
	} else {
		resources, err = h.service.SearchResources(r.Context(), req)
	}
	if err != nil {
		slog.Error("Failed to list resources", "error", err)
		writeServiceError(w, r, err)
		return
	}

	render.JSON(w, r, resources)
}

// GetResource returns one resource record
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	resource, err := h.service.GetResource(r.Context(), id)
	if err != nil {
		if !resourcehub.IsNotFound(err) {
			slog.Error("Failed to get resource", "resource_id", id, "error", err)
		}
		writeServiceError(w, r, err)
		return
	}

	render.JSON(w, r, resource)
}

// DownloadResource streams the blob as an attachment and counts the download
func (h *ResourceHandler) DownloadResource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	download, err := h.service.ResolveDownload(r.Context(), id)
	if err != nil {
		if !resourcehub.IsNotFound(err) {
			slog.Error("Failed to resolve download", "resource_id", id, "error", err)
		}
		writeServiceError(w, r, err)
		return
	}
	defer download.Reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", contentDisposition(download.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(download.Size, 10))
	if !download.ModTime.IsZero() {
		w.Header().Set("Last-Modified", download.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, download.Reader); err != nil {
		slog.Warn("Download interrupted", "resource_id", id, "error", err)
	}
}

// contentDisposition builds an attachment header; non-ASCII names are
// encoded as RFC 2231 filename*
func contentDisposition(fileName string) string {
	if header := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); header != "" {
		return header
	}
	return "attachment"
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		slog.Error("Invalid resource ID", "resource_id", idStr)
		writeError(w, r, http.StatusBadRequest, "invalid resource id")
		return 0, false
	}
	return id, true
}

// writeServiceError maps service error kinds to HTTP status codes
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, resourcehub.ErrValidation):
		var validationErr *resourcehub.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, r, http.StatusBadRequest, validationErr.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, resourcehub.ErrResourceNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, resourcehub.ErrBlobNotFound):
		writeError(w, r, http.StatusNotFound, "resource file not found")
	case errors.Is(err, resourcehub.ErrStorageWrite):
		writeError(w, r, http.StatusInternalServerError, "failed to store file")
	default:
		writeError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}
