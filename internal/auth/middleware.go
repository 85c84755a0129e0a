package auth

import (
	"context"
	"net/http"
	"strings"

	"buskalo-bff/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CookieName   = "buskalo_session"
	TicketHeader = "X-Session-Ticket"
)

type contextKey struct{}

type Middleware struct {
	tickets *Tickets
	secure  bool
}

func NewMiddleware(tickets *Tickets, secureCookie bool) *Middleware {
	return &Middleware{
		tickets: tickets,
		secure:  secureCookie,
	}
}

// WithSession resolves the session id from the ticket cookie or a Bearer
// header. Requests without a valid ticket get a fresh session.
func (m *Middleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticket := ticketFromRequest(r)

		sid := ""
		if ticket != "" {
			id, err := m.tickets.Parse(ticket)
			if err != nil {
				logger.FromContext(r.Context()).Warn("Invalid session ticket", zap.Error(err))
			} else {
				sid = id
			}
		}

		if sid == "" {
			sid = uuid.NewString()
			issued, err := m.tickets.Issue(sid)
			if err != nil {
				logger.FromContext(r.Context()).Error("Failed to issue session ticket", zap.Error(err))
				http.Error(w, `{"detail":"session unavailable"}`, http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    issued,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(m.tickets.ttl.Seconds()),
			})
			w.Header().Set(TicketHeader, issued)
		}

		ctx := WithSessionID(r.Context(), sid)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("session_id", sid)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ticketFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, contextKey{}, sid)
}

// SessionID returns the id stored by WithSession, or "" outside it.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(contextKey{}).(string)
	return sid
}
