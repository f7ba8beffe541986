// Package apperrors defines sentinel errors shared across the engine.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrBadRequest indicates a malformed or invalid request payload.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized indicates a missing or non-owning caller identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller is authenticated but not permitted.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUpstream indicates a model provider or collaborator failure.
	ErrUpstream = errors.New("upstream provider error")
	// ErrConfiguration indicates an unusable server or model configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Status maps a sentinel error to its HTTP status code.
// Unclassified errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable error code used in JSON error responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "internal_error"
	}
}
