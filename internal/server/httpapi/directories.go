package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/doctree/internal/server/models"
	"github.com/dmitrijs2005/doctree/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type createDirectoryRequest struct {
	Path          string        `json:"path"`
	ParentID      string        `json:"parentId"`
	Owners        models.Grants `json:"owners"`
	PublicVisible bool          `json:"publicVisible"`
}

// updateDirectoryRequest renames and/or moves a directory.
type updateDirectoryRequest struct {
	Path     *string `json:"path"`
	ParentID *string `json:"parentId"`
}

func (h *Handler) GetDirectory(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	d, err := h.dirs.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) DirectoryChildren(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	children, err := h.dirs.Children(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *Handler) DirectoryFiles(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	found, err := h.files.VisibleFiles(r.Context(), p, chi.URLParam(r, "id"), r.URL.Query().Get("categoryId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileResponses(found))
}

func (h *Handler) DirectoryTree(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	tree, err := h.dirs.Tree(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) CreateDirectory(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var req createDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "malformed JSON body")
		return
	}

	d, err := h.dirs.Create(r.Context(), p, services.CreateDirectoryRequest{
		Path:          req.Path,
		ParentID:      req.ParentID,
		Owners:        req.Owners,
		PublicVisible: req.PublicVisible,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) UpdateDirectory(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "malformed JSON body")
		return
	}
	if req.Path == nil && req.ParentID == nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "nothing to update")
		return
	}

	var (
		d   *models.Directory
		err error
	)
	if req.ParentID != nil {
		if d, err = h.dirs.Move(r.Context(), p, id, *req.ParentID); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	if req.Path != nil {
		if d, err = h.dirs.Rename(r.Context(), p, id, *req.Path); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteDirectory(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	if err := h.dirs.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
