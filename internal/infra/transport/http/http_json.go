package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes bounds the size of decoded request bodies.
const MaxBodyBytes = 1 << 20

// ErrInvalidBody is returned when a request body is not a single JSON value.
var ErrInvalidBody = errors.New("invalid request body")

// ErrorCode is the stable, machine-readable identifier of an API error.
type ErrorCode string

const (
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeInvalidDayKey      ErrorCode = "INVALID_DAY_KEY"
	CodeMaxPerDayReached   ErrorCode = "MAX_PER_DAY_REACHED"
	CodeUsernameTaken      ErrorCode = "USERNAME_TAKEN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeMethodNotAllowed   ErrorCode = "METHOD_NOT_ALLOWED"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// ErrorBody is the payload of an error response.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// FieldErrors maps request fields to their validation messages.
type FieldErrors map[string][]string

// Add records a message for field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Empty reports whether no errors were recorded.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// WriteError writes the error envelope. Details are omitted when nil.
func WriteError(w http.ResponseWriter, status int, code ErrorCode, message string, details any) {
	_ = WriteJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// Unauthorized writes 401 UNAUTHORIZED.
func Unauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized", nil)
}

// ValidationError writes 400 VALIDATION_ERROR with field details.
func ValidationError(w http.ResponseWriter, message string, details FieldErrors) {
	if message == "" {
		message = "Invalid input"
	}

	var d any
	if len(details) > 0 {
		d = details
	}

	WriteError(w, http.StatusBadRequest, CodeValidation, message, d)
}

// InvalidDayKey writes 400 INVALID_DAY_KEY.
func InvalidDayKey(w http.ResponseWriter, dayKey string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidDayKey, "Invalid dayKey", map[string]string{"dayKey": dayKey})
}

// MethodNotAllowed writes 405 METHOD_NOT_ALLOWED and advertises allow.
func MethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
}

// InternalError writes 500 INTERNAL_ERROR without any detail about the cause.
func InternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "Server error", nil)
}

// ReadJSON decodes a bounded JSON body into dst. Unknown fields are ignored.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(dst); err != nil {
		return errors.Join(ErrInvalidBody, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrInvalidBody)
	}

	return nil
}
