package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/doctree/internal/server/notify"
)

type sessionResponse struct {
	Name     string `json:"name"`
	Sessions int    `json:"sessions"`
}

// OpenSession marks the caller as connected.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	n := h.sessions.Register(p.Name)
	writeJSON(w, http.StatusCreated, sessionResponse{Name: p.Name, Sessions: n})
}

// CloseSession ends one session of the caller. The logout is announced once
// the caller has no sessions left.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	if h.sessions.Unregister(p.Name) {
		h.notifier.Notify(r.Context(), notify.LogoutMessage(h.now(), p.Name))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	if !p.Admin {
		WriteError(w, http.StatusForbidden, CodeForbidden, "administrator privileges required")
		return
	}
	writeJSON(w, http.StatusOK, h.sessions.Active())
}
