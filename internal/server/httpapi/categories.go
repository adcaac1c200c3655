package httpapi

import (
	"encoding/json"
	"net/http"
)

type createCategoryRequest struct {
	Type string `json:"type"`
}

// ListCategories returns every category, or the one named by ?type=.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if typ := r.URL.Query().Get("type"); typ != "" {
		c, err := h.categories.FindByType(r.Context(), typ)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}

	all, err := h.categories.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidationError, "malformed JSON body")
		return
	}

	c, err := h.categories.Create(r.Context(), p, req.Type)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
