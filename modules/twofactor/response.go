package twofactor

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/twofactor/pkg/jwt"
	"github.com/dmitrymomot/twofactor/pkg/logger"
	tf "github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// Response is the JSON envelope of every reply.
type Response struct {
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError pairs a status code with a stable error key.
type HTTPError struct {
	Status int
	Key    string
}

func (e HTTPError) Error() string { return e.Key }

var (
	ErrBadRequest      = HTTPError{Status: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized    = HTTPError{Status: http.StatusUnauthorized, Key: "unauthorized"}
	ErrTooManyRequests = HTTPError{Status: http.StatusTooManyRequests, Key: "too_many_requests"}
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{tf.ErrInvalidInput, http.StatusBadRequest},
	{tf.ErrInvalidSecret, http.StatusBadRequest},
	{tf.ErrInvalidToken, http.StatusUnauthorized},
	{tf.ErrInvalidBackupCode, http.StatusUnauthorized},
	{tf.ErrWrongPassword, http.StatusUnauthorized},
	{tf.ErrAlreadyEnabled, http.StatusConflict},
	{tf.ErrNotEnabled, http.StatusConflict},
	{tf.ErrConflict, http.StatusConflict},
	{tf.ErrTooManyAttempts, http.StatusTooManyRequests},
}

// errorFor resolves err to a status and a detail safe to show to clients.
// Causes joined to a sentinel are never exposed.
func errorFor(err error) (int, ErrorDetail) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status, ErrorDetail{Code: httpErr.Key, Message: http.StatusText(httpErr.Status)}
	}
	if errors.Is(err, jwt.ErrMissingToken) || errors.Is(err, jwt.ErrInvalidToken) || errors.Is(err, jwt.ErrExpiredToken) || errors.Is(err, jwt.ErrInvalidSubject) {
		return http.StatusUnauthorized, ErrorDetail{Code: ErrUnauthorized.Key, Message: http.StatusText(http.StatusUnauthorized)}
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, ErrorDetail{Code: tf.ErrorCode(s.err), Message: s.err.Error()}
		}
	}
	return http.StatusInternalServerError, ErrorDetail{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) success(w http.ResponseWriter, code string, data any) {
	writeJSON(w, http.StatusOK, Response{Code: code, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorFor(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeJSON(w, status, Response{Code: detail.Code, Error: &detail})
}

// Unauthorized writes the envelope for a rejected bearer token. It fits jwt.ErrorHandler.
func Unauthorized(w http.ResponseWriter, _ *http.Request, _ error) {
	detail := ErrorDetail{Code: ErrUnauthorized.Key, Message: http.StatusText(http.StatusUnauthorized)}
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, Response{Code: detail.Code, Error: &detail})
}

// TooManyRequests writes the envelope for a request rejected by a rate limiter.
func TooManyRequests(w http.ResponseWriter, _ *http.Request) {
	detail := ErrorDetail{Code: ErrTooManyRequests.Key, Message: http.StatusText(http.StatusTooManyRequests)}
	writeJSON(w, http.StatusTooManyRequests, Response{Code: detail.Code, Error: &detail})
}
