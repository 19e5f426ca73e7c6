package http

import (
	"net/http"

	"feepay-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type FeeHandler struct {
	feeSvc   service.FeeService
	validate *validator.Validate
}

func NewFeeHandler(feeSvc service.FeeService) *FeeHandler {
	return &FeeHandler{feeSvc: feeSvc, validate: newValidator()}
}

// BroadcastFee creates a fee for one school, or for every school when school_id is "ALL".
func (h *FeeHandler) BroadcastFee(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req broadcastFeeRequest
	if err := decodeBody(r, h.validate, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	details, err := req.details()
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.feeSvc.BroadcastFee(r.Context(), caller, req.SchoolID, details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *FeeHandler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req feeRequest
	if err := decodeBody(r, h.validate, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	details, err := req.details()
	if err != nil {
		writeError(w, r, err)
		return
	}
	fee, err := h.feeSvc.UpdateFee(r.Context(), caller, mux.Vars(r)["id"], details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fee)
}
