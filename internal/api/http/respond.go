package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to write response body", "error", err)
	}
}

// statusFor maps a domain error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.WithRequest(r.Method, r.URL.Path, requestID(r))
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
		// persistence details stay in the log
		msg = "internal error"
	} else {
		log.Debug("Request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
