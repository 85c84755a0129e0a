package api

import (
	"context"
	"net/http"

	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/forms"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/models"
	"buskalo-bff/internal/session"

	"go.uber.org/zap"
)

// Login authenticates upstream and starts the session's two-phase login.
// ?wait=false answers 202 as soon as the token is acquired.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, err = h.track(r, "auth.login", func(ctx context.Context) (any, error) {
		pair, err := h.svc.Login(ctx, req)
		if err != nil {
			return nil, err
		}
		return nil, h.startSession(r, sess, pair.Access)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if r.URL.Query().Get("wait") == "false" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, sess.Snapshot().Model())
}

// Register creates the account and logs straight into it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, err = h.track(r, "auth.register", func(ctx context.Context) (any, error) {
		if _, err := h.svc.Register(ctx, req); err != nil {
			return nil, err
		}
		pair, err := h.svc.Login(ctx, models.LoginRequest{Username: req.Username, Password: req.Password})
		if err != nil {
			return nil, err
		}
		return nil, h.startSession(r, sess, pair.Access)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot().Model())
}

func (h *Handler) startSession(r *http.Request, sess *session.Session, token string) error {
	pending := sess.Login(r.Context(), token)
	if r.URL.Query().Get("wait") == "false" {
		return nil
	}
	if _, err := pending.Wait(r.Context()); err != nil {
		// The token stays; the profile loads on the next request that needs it.
		logger.FromContext(r.Context()).Warn("Profile not loaded after login", zap.Error(err))
	}
	return nil
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	h.actions.Forget(auth.SessionID(r.Context()) + "/")
	writeJSON(w, http.StatusOK, sess.Snapshot().Model())
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r.Context(), auth.SessionID(r.Context()))
	if r.URL.Query().Get("wait") != "false" {
		if err := sess.WaitReady(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.Snapshot().Model())
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	_, _, user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Bio          string `json:"bio"`
	AvatarUpload string `json:"avatar_upload"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, token, err := h.authorized(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sid := auth.SessionID(r.Context())

	user, err := h.track(r, "profile.update", func(ctx context.Context) (any, error) {
		draft := &forms.ProfileDraft{
			Username:  req.Username,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Bio:       req.Bio,
		}
		if req.AvatarUpload != "" {
			avatar, err := h.media.Attachment(ctx, sid, req.AvatarUpload, "avatar")
			if err != nil {
				return nil, err
			}
			draft.Avatar = avatar
		}

		user, err := h.svc.UpdateProfile(ctx, token, draft.Form())
		if err != nil {
			return nil, err
		}
		sess.SetUser(user)
		if req.AvatarUpload != "" {
			h.media.Discard(ctx, sid, req.AvatarUpload)
		}
		return user, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
