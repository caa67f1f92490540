package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/lib/pq"
)

// ErrKind classifies a failure for the HTTP layer. The set is closed:
// the translator switches over every kind and anything else is internal.
type ErrKind int

const (
	KindInternal ErrKind = iota
	KindValidation
	KindAuthentication
	KindPermission
	KindNotFound
	KindConflict
	KindUploadTooLarge
	KindRateLimited
	KindUpstream
)

// AppError is a classified failure carrying the client-visible message.
// The wrapped cause is only ever shown outside production mode.
type AppError struct {
	Kind       ErrKind
	Message    string
	RetryAfter int   // seconds, set for KindRateLimited
	Err        error // wrapped cause
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func appErr(kind ErrKind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

func wrapErr(kind ErrKind, msg string, err error) *AppError {
	return &AppError{Kind: kind, Message: msg, Err: err}
}

// Envelope is the uniform JSON failure response.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Status     int    `json:"status"`
	Details    string `json:"details,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func statusFor(kind ErrKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// classify maps an arbitrary error onto the closed kind set. Postgres
// constraint violations surface as conflicts; a body rejected by
// http.MaxBytesReader surfaces as an upload limit failure.
func classify(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return wrapErr(KindConflict, "Resource already exists", err)
		case "23503":
			return wrapErr(KindConflict, "Referenced resource does not exist", err)
		}
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return wrapErr(KindUploadTooLarge, "Uploaded file is too large", err)
	}
	return wrapErr(KindInternal, "Internal server error", err)
}

// Translate converts any failure into exactly one envelope. In
// production mode details are stripped and 500s get a generic message.
func Translate(err error, production bool) Envelope {
	ae := classify(err)
	status := statusFor(ae.Kind)
	env := Envelope{
		Success:    false,
		Message:    ae.Message,
		Status:     status,
		RetryAfter: ae.RetryAfter,
	}
	if production {
		if status == http.StatusInternalServerError {
			env.Message = "Something went wrong"
		}
		return env
	}
	if ae.Err != nil {
		env.Details = ae.Err.Error()
	}
	return env
}

// writeFailure is the single terminal point for failed requests.
func (a *App) writeFailure(w http.ResponseWriter, err error) {
	env := Translate(err, a.Production)
	if env.Status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	if env.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(env.RetryAfter))
	}
	writeJSON(w, env.Status, env)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
