package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidTicket = errors.New("invalid session ticket")

const ticketIssuer = "buskalo-bff"

// Tickets signs and verifies the browser's session ticket. The ticket's
// jti is the session id.
type Tickets struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTickets(secret string, ttl time.Duration) *Tickets {
	return &Tickets{
		secretKey: []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (t *Tickets) Issue(sessionID string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    ticketIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign session ticket: %w", err)
	}
	return signed, nil
}

// Parse returns the session id carried by a valid ticket.
func (t *Tickets) Parse(ticket string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secretKey, nil
	},
		jwt.WithIssuer(ticketIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing session id", ErrInvalidTicket)
	}
	return claims.ID, nil
}

// TokenExpiry reads the exp claim of an upstream access token without
// verifying it. ok is false when the token is not a JWT or carries no exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	date, err := claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}
