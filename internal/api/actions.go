package api

import (
	"net/http"

	"buskalo-bff/internal/auth"
)

// Actions lists the state of every tracked action of the caller's session.
func (h *Handler) Actions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.actions.Snapshot(auth.SessionID(r.Context())+"/"))
}
