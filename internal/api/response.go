package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to an HTTP status. Dataset failures come from the
// origin or a cache tier, so anything unclassified is a bad gateway.
func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidKind, apperrors.ErrCodeInvalidSlug:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusBadGateway
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := string(apperrors.GetCode(err))
	if code == "" {
		code = string(apperrors.ErrCodeInternal)
		if status == http.StatusGatewayTimeout {
			code = string(apperrors.ErrCodeTimeout)
		}
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "err", err)
	}
	writeJSON(w, status, errorBody{
		Error:     apperrors.UserMessage(err),
		Code:      code,
		RequestID: RequestID(r.Context()),
	})
}

// query reads typed query parameters, remembering the first parse error.
type query struct {
	r   *http.Request
	err error
}

func (q *query) str(name string) string {
	return q.r.URL.Query().Get(name)
}

func (q *query) integer(name string, def, lo, hi int) int {
	raw := q.str(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		q.fail("%s must be an integer between %d and %d", name, lo, hi)
		return def
	}
	return n
}

func (q *query) boolean(name string) bool {
	raw := q.str(name)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail("%s must be a boolean", name)
	}
	return b
}

func (q *query) fail(format string, args ...any) {
	if q.err == nil {
		q.err = apperrors.New(apperrors.ErrCodeInvalidInput, format, args...)
	}
}
