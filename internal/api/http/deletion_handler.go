package http

import (
	"context"
	"net/http"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type DeletionHandler struct {
	deletionSvc service.DeletionService
	validate    *validator.Validate
}

func NewDeletionHandler(deletionSvc service.DeletionService) *DeletionHandler {
	return &DeletionHandler{deletionSvc: deletionSvc, validate: newValidator()}
}

func (h *DeletionHandler) DeleteFee(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.deletionSvc.DeleteFee)
}

func (h *DeletionHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.deletionSvc.DeleteStudent)
}

type deleteFunc func(ctx context.Context, caller domain.Identity, id, reason string) (*service.DeletionOutcome, error)

// delete answers 200 when the resource is gone and 202 when a request was queued for approval.
func (h *DeletionHandler) delete(w http.ResponseWriter, r *http.Request, del deleteFunc) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req deleteRequest
	if err := decodeBody(r, h.validate, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := del(r.Context(), caller, mux.Vars(r)["id"], req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out.Deleted {
		writeJSON(w, http.StatusOK, out)
		return
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (h *DeletionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reqs, err := h.deletionSvc.ListPending(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []domain.DeletionRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (h *DeletionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.deletionSvc.Approve)
}

func (h *DeletionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.deletionSvc.Reject)
}

func (h *DeletionHandler) resolve(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, caller domain.Identity, requestID string) (*domain.DeletionRequest, error)) {
	caller, err := IdentityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := fn(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
