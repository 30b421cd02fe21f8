package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/tapp/internal/app"
	"github.com/okian/tapp/internal/domain/match"
	"github.com/okian/tapp/internal/domain/transfer"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// badRequest wraps err as an ErrBadRequest.
func badRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

// writeServiceError maps service and domain errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		conflict *service.ConflictError
		netErr   *service.NetworkError
		parseErr *transfer.ParseError
	)
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "conflict", Message: err.Error(), Conflicts: conflict.Items})
	case errors.As(err, &netErr):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err)
	case errors.Is(err, transfer.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.As(err, &parseErr):
		writeError(w, http.StatusUnprocessableEntity, "invalid_import", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, service.ErrUnknownKey), errors.Is(err, service.ErrUnknownPosition):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotDraft):
		writeError(w, http.StatusConflict, "not_draft", err)
	case errors.Is(err, service.ErrInFlight):
		writeError(w, http.StatusConflict, "in_flight", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrEmptySelection),
		errors.Is(err, match.ErrInvalidKey),
		errors.Is(err, match.ErrInvalidHours):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
