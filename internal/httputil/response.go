package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/model"
)

// Error codes in the error envelope
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = "VALIDATION_FAILED"
	ErrCodeAuthRequired = model.CodeAuthRequired
	ErrCodeTokenExpired = model.CodeTokenExpired
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse is {"error": {"code": "...", "message": "..."}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable tells the client the same request may succeed later.
	Retryable bool `json:"retryable,omitempty"`
}

func logger() *zerolog.Logger { l := logging.For("HTTP"); return &l }

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger().Warn().Err(err).Int("status", status).Msg("encode response FAILED")
		}
	}
}

func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeAuthRequired, message)
}

// WriteDomainError maps err's kind to a status and code. Upstream failures are
// 503 and marked retryable. Anything without a kind is logged and hidden
// behind a generic 500.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		code := ErrCodeValidation
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			code = model.CodeFileTooLarge
		case errors.Is(err, model.ErrInvalidImageType):
			code = model.CodeInvalidImageType
		}
		WriteError(w, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, model.ErrUnauthenticated):
		code := ErrCodeAuthRequired
		switch {
		case errors.Is(err, model.ErrSessionExpired):
			code = ErrCodeTokenExpired
		case errors.Is(err, model.ErrRefreshTokenReused):
			code = model.CodeTokenReused
		case errors.Is(err, model.ErrRefreshTokenNotFound), errors.Is(err, model.ErrRefreshTokenExpired):
			code = model.CodeTokenInvalid
		}
		WriteError(w, http.StatusUnauthorized, code, err.Error())
	case errors.Is(err, model.ErrPermissionDenied):
		WriteError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		WriteError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, model.ErrUpstream):
		logger().Warn().Err(err).Str("path", r.URL.Path).Msg("upstream FAILED")
		WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: ErrorDetail{
			Code:      ErrCodeUnavailable,
			Message:   "A backing service is unavailable, please retry",
			Retryable: true,
		}})
	default:
		logger().Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request FAILED")
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}

// DecodeJSON reads the request body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// QueryInt parses an optional integer query parameter; absent means 0.
func QueryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
