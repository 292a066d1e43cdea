package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/starford/folio/internal/models"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    ViewService
	search Searcher
}

// NewHandler creates a new Handler.
func NewHandler(svc ViewService, search Searcher) *Handler {
	return &Handler{svc: svc, search: search}
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody("invalid view id"))
		return uuid.Nil, false
	}
	return id, true
}

type validatable interface{ Validate() error }

func decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := dst.Validate(); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// CreateWorkspace handles POST /api/workspaces.
//
//	@Summary	Create a workspace with its starter views
//	@Tags		workspaces
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateWorkspaceRequest	true	"Workspace"
//	@Success	201		{object}	models.View
//	@Router		/workspaces [post]
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceRequest
	if !decode(w, r, &req) {
		return
	}
	root, err := h.svc.CreateWorkspace(r.Context(), userID(r), req.Name)
	if err != nil {
		writeError(w, r, "create workspace", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, root)
}

// WorkspaceViews handles GET /api/workspaces/{id}/views.
func (h *Handler) WorkspaceViews(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	views, err := h.svc.WorkspaceViews(r.Context(), id)
	if err != nil {
		writeError(w, r, "workspace views", err)
		return
	}
	writeJSON(w, r, http.StatusOK, ViewListResponse{Views: views})
}

// CreateView handles POST /api/views.
//
//	@Summary	Create a view with default or supplied content
//	@Tags		views
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateViewRequest	true	"View"
//	@Success	201		{object}	models.View
//	@Failure	400		{object}	errResponse
//	@Router		/views [post]
func (h *Handler) CreateView(w http.ResponseWriter, r *http.Request) {
	var req CreateViewRequest
	if !decode(w, r, &req) {
		return
	}
	ct, err := models.ParseContentType(req.ContentType)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var v *models.View
	if len(req.Data) == 0 {
		v, err = h.svc.CreateDefaultView(r.Context(), userID(r), req.ParentID, req.Name, req.Icon, ct)
	} else {
		v, _, err = h.svc.CreateView(r.Context(), userID(r), models.CreateViewParams{
			ParentID: req.ParentID,
			Name:     req.Name,
			Icon:     req.Icon,
			Type:     ct,
			Initial:  models.RawData(req.Data),
		})
	}
	if err != nil {
		writeError(w, r, "create view", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, v)
}

// GetView handles GET /api/views/{id}.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	v, err := h.svc.GetView(r.Context(), id)
	if err != nil {
		writeError(w, r, "get view", err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

// ListChildren handles GET /api/views/{id}/children.
func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	views, err := h.svc.ListChildren(r.Context(), id)
	if err != nil {
		writeError(w, r, "list children", err)
		return
	}
	writeJSON(w, r, http.StatusOK, ViewListResponse{Views: nonNil(views)})
}

// OpenView handles POST /api/views/{id}/open.
func (h *Handler) OpenView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.OpenView(r.Context(), id); err != nil {
		writeError(w, r, "open view", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseView handles POST /api/views/{id}/close.
func (h *Handler) CloseView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.CloseView(r.Context(), id); err != nil {
		writeError(w, r, "close view", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateContent handles PUT /api/views/{id}/content. The view must be open.
//
//	@Summary	Replace the content of an open view
//	@Tags		views
//	@Param		body	body	UpdateContentRequest	true	"New content"
//	@Success	204
//	@Failure	400	{object}	errResponse
//	@Failure	409	{object}	errResponse
//	@Router		/views/{id}/content [put]
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req UpdateContentRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.UpdateContent(r.Context(), id, models.ImportType(req.ImportType), []byte(req.Content)); err != nil {
		writeError(w, r, "update content", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateView handles POST /api/views/{id}/duplicate.
func (h *Handler) DuplicateView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	v, err := h.svc.DuplicateView(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, "duplicate view", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, v)
}

// DeleteView handles DELETE /api/views/{id}. Deleting a missing view succeeds.
func (h *Handler) DeleteView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteView(r.Context(), id); err != nil {
		writeError(w, r, "delete view", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportView handles POST /api/views/{id}/import, creating a child of {id}.
// The body is either JSON (ImportRequest) or multipart/form-data with a
// "file" field and an optional "import_type" field.
//
//	@Summary	Import content as a new child view
//	@Tags		views
//	@Success	201	{object}	ImportResponse
//	@Failure	400	{object}	errResponse
//	@Router		/views/{id}/import [post]
func (h *Handler) ImportView(w http.ResponseWriter, r *http.Request) {
	parentID, ok := idParam(w, r)
	if !ok {
		return
	}

	var req ImportRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if !readMultipartImport(w, r, &req) {
			return
		}
	} else if !decode(w, r, &req) {
		return
	}

	v, units, err := h.svc.ImportView(r.Context(), userID(r), parentID, req.Name,
		models.ImportType(req.ImportType), []byte(req.Content))
	if err != nil {
		writeError(w, r, "import view", err)
		return
	}
	resp := ImportResponse{View: v, Units: make([]ImportedUnitDTO, len(units))}
	for i, u := range units {
		resp.Units[i] = ImportedUnitDTO{ViewID: u.ViewID, ContentType: u.Type, Size: len(u.Snapshot.Payload)}
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

func readMultipartImport(w http.ResponseWriter, r *http.Request, req *ImportRequest) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody("failed to read file"))
		return false
	}

	base := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(base))
	req.Name = strings.TrimSuffix(base, filepath.Ext(base))
	if n := r.FormValue("name"); n != "" {
		req.Name = n
	}
	req.ImportType = r.FormValue("import_type")
	if req.ImportType == "" {
		req.ImportType = string(importTypeFromExt(ext))
	}
	req.Content = string(data)

	if err := req.Validate(); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

func importTypeFromExt(ext string) models.ImportType {
	switch ext {
	case ".md", ".markdown":
		return models.ImportTypeMarkdown
	case ".txt":
		return models.ImportTypePlainText
	case ".csv":
		return models.ImportTypeCSV
	default:
		return models.ImportTypeDocument
	}
}

// PublishView handles GET /api/views/{id}/publish. The body is the encoded
// snapshot envelope; X-Content-Type names the view's content type.
func (h *Handler) PublishView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	g, err := h.svc.PublishView(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, "publish view", err)
		return
	}
	body := g.Snapshot.Marshal()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Content-Type", g.Type.String())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Search handles GET /api/search.
//
//	@Summary	Full-text search across documents
//	@Tags		search
//	@Produce	json
//	@Param		q		query		string	true	"Search query"
//	@Param		limit	query		int		false	"Max results"
//	@Success	200		{object}	SearchResponse
//	@Router		/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, r, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.search.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, r, http.StatusOK, SearchResponse{Results: nonNil(results)})
}
