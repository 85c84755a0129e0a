package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"buskalo-bff/internal/action"
	"buskalo-bff/internal/geo"
	"buskalo-bff/internal/imaging"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/media"
	"buskalo-bff/internal/resilience"
	"buskalo-bff/internal/services"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errNotAuthenticated = errors.New("Authentication credentials were not provided.")

type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Error("JSON encode error", zap.Error(err))
	}
}

// writeError answers {"detail": msg} with the status the error maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := services.Message(err)

	log := logger.FromContext(r.Context())
	if status >= 500 {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("Request rejected", zap.Int("status", status), zap.String("detail", msg))
	}
	writeJSON(w, status, map[string]string{"detail": msg})
}

func statusOf(err error) int {
	var reqErr *requestError
	var apiErr *services.APIError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.As(err, &apiErr):
		return apiErr.Status
	case errors.Is(err, errNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, action.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrNotFound), errors.Is(err, geo.ErrNoResults):
		return http.StatusNotFound
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// inputString accepts a JSON string or number and keeps it as typed text,
// so number inputs go through the same keystroke rules as the form fields.
type inputString string

func (s *inputString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = inputString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = inputString(n.String())
	return nil
}
