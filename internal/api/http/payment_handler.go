package http

import (
	"net/http"
	"strings"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type PaymentHandler struct {
	settlementSvc service.SettlementService
	walletSvc     service.WalletService
	validate      *validator.Validate
}

func NewPaymentHandler(settlementSvc service.SettlementService, walletSvc service.WalletService) *PaymentHandler {
	return &PaymentHandler{settlementSvc: settlementSvc, walletSvc: walletSvc, validate: newValidator()}
}

// SettlePayment records a fee payment. Students pay for themselves; staff name the student.
func (h *PaymentHandler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req settlePaymentRequest
	if err := decodeBody(r, h.validate, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" && caller.Role == domain.RoleStudent {
		studentID = caller.StudentID
	}
	res, err := h.settlementSvc.SettlePayment(r.Context(), caller, service.SettlementRequest{
		StudentID:      studentID,
		FeeStructureID: req.FeeStructureID,
		Amount:         req.Amount,
		Method:         domain.PaymentMethod(req.Method),
		Reference:      req.Reference,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *PaymentHandler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req payInvoiceRequest
	if err := decodeBody(r, h.validate, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.walletSvc.PayFromWallet(r.Context(), caller, mux.Vars(r)["id"], req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *PaymentHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.walletSvc.GetInvoice(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
