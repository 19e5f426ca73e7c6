package http

import (
	"errors"
	"io"
	"net/http"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/gateway/momo"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/metrics"
	"feepay-backend/internal/service"
)

type WebhookHandler struct {
	topUpSvc service.TopUpService
	secret   string
}

// NewWebhookHandler builds the mobile money callback endpoint. When secret is empty the
// signature header is not checked.
func NewWebhookHandler(topUpSvc service.TopUpService, secret string) *WebhookHandler {
	return &WebhookHandler{topUpSvc: topUpSvc, secret: secret}
}

func (h *WebhookHandler) MomoCollection(w http.ResponseWriter, r *http.Request) {
	log := logger.WithRequest(r.Method, r.URL.Path, requestID(r))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}
	if h.secret != "" && !momo.VerifySignature(h.secret, body, r.Header.Get("X-Callback-Signature")) {
		log.Warn("Rejected callback with bad signature")
		metrics.ObserveCallback("webhook", "bad_signature")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
		return
	}

	cb, err := momo.ParseCallback(r.Header, body)
	if err != nil {
		metrics.ObserveCallback("webhook", "malformed")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	outcome, err := h.topUpSvc.HandleGatewayCallback(r.Context(), service.GatewayStatusUpdate{
		Reference:              cb.ReferenceID,
		Status:                 cb.Status,
		FinancialTransactionID: cb.FinancialTransactionID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		// a 5xx makes the provider retry the delivery
		log.Error("Callback processing failed", "reference", cb.ReferenceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	log.Info("Callback processed", "reference", cb.ReferenceID, "status", cb.Status, "outcome", outcome)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
