package api

import (
	"context"
	"net/http"
	"strconv"

	"buskalo-bff/internal/action"
	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/catalog"
	"buskalo-bff/internal/geo"
	"buskalo-bff/internal/imaging"
	"buskalo-bff/internal/media"
	"buskalo-bff/internal/models"
	"buskalo-bff/internal/services"
	"buskalo-bff/internal/session"

	"github.com/gorilla/mux"
)

type Deps struct {
	Services      *services.ServiceClient
	Catalog       *catalog.Catalog
	Sessions      *session.Registry
	Media         *media.Store
	Geo           *geo.Client
	Actions       *action.Tracker
	DropdownLimit int
	// MaxUploadBytes caps a picked image. Zero means imaging.MaxUploadBytes.
	MaxUploadBytes int64
}

type Handler struct {
	svc       *services.ServiceClient
	catalog   *catalog.Catalog
	sessions  *session.Registry
	media     *media.Store
	geo       *geo.Client
	actions   *action.Tracker
	dropdown  int
	maxUpload int64
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		svc:      d.Services,
		catalog:  d.Catalog,
		sessions: d.Sessions,
		media:    d.Media,
		geo:      d.Geo,
		actions:  d.Actions,
		dropdown: d.DropdownLimit,
	}
	h.maxUpload = d.MaxUploadBytes
	if h.maxUpload <= 0 {
		h.maxUpload = imaging.MaxUploadBytes
	}
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session returns the caller's session once bootstrap has settled.
func (h *Handler) session(r *http.Request) (*session.Session, error) {
	return h.sessions.Ready(r.Context(), auth.SessionID(r.Context()))
}

// authorized returns the session and its bearer token, or errNotAuthenticated.
func (h *Handler) authorized(r *http.Request) (*session.Session, string, error) {
	sess, err := h.session(r)
	if err != nil {
		return nil, "", err
	}
	token := sess.Token()
	if token == "" {
		return nil, "", errNotAuthenticated
	}
	return sess, token, nil
}

// currentUser returns the session's profile, loading it when the login's
// background fetch has not landed.
func (h *Handler) currentUser(r *http.Request) (*session.Session, string, *models.User, error) {
	sess, token, err := h.authorized(r)
	if err != nil {
		return nil, "", nil, err
	}
	if user := sess.Snapshot().User; user != nil {
		return sess, token, user, nil
	}
	user, err := h.svc.GetProfile(r.Context(), token)
	if err != nil {
		return nil, "", nil, err
	}
	sess.SetUser(user)
	return sess, token, user, nil
}

// track runs a mutation through the session's action tracker.
func (h *Handler) track(r *http.Request, name string, fn func(context.Context) (any, error)) (any, error) {
	return h.actions.Do(r.Context(), action.Key(auth.SessionID(r.Context()), name), fn)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", raw)
	}
	return id, nil
}
